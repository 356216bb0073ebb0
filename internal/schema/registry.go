package schema

// 集合条目与配置行的类型名。
const (
	CollectionItem = "collection_item"
	ConfigEntry    = "config_entry"
)

var (
	infoViews    = []string{"col_centered_view", "col_left_view", "row_view"}
	dynamicViews = []string{"list_view", "grid_view", "card_view", "minimal_list_view"}
)

func enabled() FieldDef { return FieldDef{Name: "enabled", Kind: KindBoolean, Default: true} }

func sectionType(typ string) FieldDef {
	return FieldDef{Name: "section_type", Kind: KindSingleChoice, Aliases: []string{"Section Type"}, Options: []string{typ}}
}

func section(typ, titleField string, fields ...FieldDef) SectionTypeDef {
	fields = append(fields, enabled(), sectionType(typ))
	return SectionTypeDef{Type: typ, Section: true, TitleField: titleField, Fields: fields}
}

var registry = map[string]SectionTypeDef{
	"info_section": section("info_section", "",
		FieldDef{Name: "title", Kind: KindTitle, Aliases: []string{"Title"}},
		FieldDef{Name: "description", Kind: KindText, Aliases: []string{"Description"}},
		FieldDef{Name: "link", Kind: KindURL, Aliases: []string{"Link"}},
		FieldDef{Name: "media", Kind: KindFile, Aliases: []string{"image", "Image"}},
		FieldDef{Name: "view_type", Kind: KindSingleChoice, Aliases: []string{"View Type"}, Default: "col_centered_view", Options: infoViews},
	),
	"dynamic_section": section("dynamic_section", "section_title",
		FieldDef{Name: "collection_name", Kind: KindTitle},
		FieldDef{Name: "section_title", Kind: KindText},
		FieldDef{Name: "view_type", Kind: KindSingleChoice, Aliases: []string{"View Type"}, Default: "list_view", Options: dynamicViews},
	),
	"html_section": section("html_section", "title",
		FieldDef{Name: "title", Kind: KindTitle, Aliases: []string{"Title"}},
		FieldDef{Name: "html_code", Kind: KindEmbeddedCode},
	),
	"iframe_section": section("iframe_section", "title",
		FieldDef{Name: "title", Kind: KindTitle, Aliases: []string{"Title"}},
		FieldDef{Name: "url", Kind: KindURL, Aliases: []string{"URL"}},
	),
	"video_embed_section": section("video_embed_section", "title",
		FieldDef{Name: "title", Kind: KindTitle, Aliases: []string{"Title"}},
		FieldDef{Name: "url", Kind: KindURL, Aliases: []string{"URL"}},
	),
	"mail_based_comment_section": section("mail_based_comment_section", "",
		FieldDef{Name: "topic_title", Kind: KindTitle},
		FieldDef{Name: "author_email", Kind: KindText},
	),

	CollectionItem: {
		Type: CollectionItem,
		Fields: []FieldDef{
			{Name: "Title", Kind: KindTitle, Aliases: []string{"Name", "Project Name", "title"}},
			{Name: "Description", Kind: KindText, Aliases: []string{"description"}},
			{Name: "Slug", Kind: KindText, Aliases: []string{"slug"}},
			{Name: "Order", Kind: KindNumber, Aliases: []string{"order_priority", "order"}, Default: 0.0},
			{Name: "Image", Kind: KindFile, Aliases: []string{"Thumbnail", "Cover", "image"}},
			{Name: "Tags", Kind: KindText, Aliases: []string{"Tools", "tags"}},
			{Name: "Link", Kind: KindURL, Aliases: []string{"link"}},
			{Name: "Status", Kind: KindSingleChoice, Options: []string{"Draft", "Reviewing", "Published", "Archived"}},
			{Name: "Author", Kind: KindText, Aliases: []string{"author_username"}},
			{Name: "Video", Kind: KindURL, Aliases: []string{"video_embed_link"}},
		},
	},
	ConfigEntry: {
		Type: ConfigEntry,
		Fields: []FieldDef{
			{Name: "Name", Kind: KindTitle, Aliases: []string{"field"}},
			{Name: "Value", Kind: KindText, Aliases: []string{"value"}},
			{Name: "Media", Kind: KindFile, Aliases: []string{"media"}},
		},
	},
}
