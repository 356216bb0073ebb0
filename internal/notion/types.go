// 包 notion 为工作区 REST API 的薄封装：列出子块、查询数据库、创建/更新数据库与页面、追加子块。
// 所有列表调用均自动翻页，结果保持远端返回顺序。
package notion

import (
	"encoding/json"
	"strings"
)

// 远端属性类型；schema 中每个字段恰好对应其中之一。
const (
	TypeTitle       = "title"
	TypeRichText    = "rich_text"
	TypeCheckbox    = "checkbox"
	TypeSelect      = "select"
	TypeMultiSelect = "multi_select"
	TypeURL         = "url"
	TypeNumber      = "number"
	TypeFiles       = "files"
	TypeDate        = "date"
)

type Annotations struct {
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Color         string `json:"color,omitempty"`
}

type Link struct {
	URL string `json:"url"`
}

type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// RichText 为一段带格式的文本。
type RichText struct {
	Type        string       `json:"type,omitempty"`
	Text        *TextContent `json:"text,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	PlainText   string       `json:"plain_text,omitempty"`
	Href        string       `json:"href,omitempty"`
}

// Plain 返回文本内容，优先使用 API 给出的 plain_text。
func (r RichText) Plain() string {
	if r.PlainText != "" {
		return r.PlainText
	}
	if r.Text != nil {
		return r.Text.Content
	}
	return ""
}

// MaxTextLength 为单段 rich text 的长度上限。
const MaxTextLength = 2000

// Text 构造 rich text，按 MaxTextLength 切段；空串返回空切片。
func Text(content string) []RichText {
	out := []RichText{}
	runes := []rune(content)
	for len(runes) > 0 {
		n := min(len(runes), MaxTextLength)
		out = append(out, RichText{Type: "text", Text: &TextContent{Content: string(runes[:n])}})
		runes = runes[n:]
	}
	return out
}

// PlainText 拼接所有段的文本。
func PlainText(rt []RichText) string {
	var b strings.Builder
	for _, r := range rt {
		b.WriteString(r.Plain())
	}
	return b.String()
}

type SelectOption struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type FileURL struct {
	URL        string `json:"url"`
	ExpiryTime string `json:"expiry_time,omitempty"`
}

// File 为 files 属性的条目，或媒体块的内容。
type File struct {
	Name     string     `json:"name,omitempty"`
	Type     string     `json:"type,omitempty"`
	External *FileURL   `json:"external,omitempty"`
	File     *FileURL   `json:"file,omitempty"`
	Caption  []RichText `json:"caption,omitempty"`
}

// URL 优先返回托管地址，否则返回外链。
func (f File) URL() string {
	if f.File != nil && f.File.URL != "" {
		return f.File.URL
	}
	if f.External != nil {
		return f.External.URL
	}
	return ""
}

func ExternalFile(name, url string) File {
	return File{Name: name, Type: "external", External: &FileURL{URL: url}}
}

type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// PropertyValue 为数据库行的带类型属性值，仅 Type 对应的字段有意义。
type PropertyValue struct {
	ID          string         `json:"id,omitempty"`
	Type        string         `json:"type"`
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Checkbox    bool           `json:"checkbox,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	URL         *string        `json:"url,omitempty"`
	Number      *float64       `json:"number,omitempty"`
	Files       []File         `json:"files,omitempty"`
	Date        *DateValue     `json:"date,omitempty"`
}

// MarshalJSON 输出按类型标记的写入形态，如 {"checkbox":false}、{"url":null}。
func (p PropertyValue) MarshalJSON() ([]byte, error) {
	var v any
	switch p.Type {
	case TypeTitle:
		v = nonNilText(p.Title)
	case TypeRichText:
		v = nonNilText(p.RichText)
	case TypeCheckbox:
		v = p.Checkbox
	case TypeSelect:
		v = p.Select
	case TypeMultiSelect:
		if p.MultiSelect == nil {
			v = []SelectOption{}
		} else {
			v = p.MultiSelect
		}
	case TypeURL:
		v = p.URL
	case TypeNumber:
		v = p.Number
	case TypeFiles:
		if p.Files == nil {
			v = []File{}
		} else {
			v = p.Files
		}
	case TypeDate:
		v = p.Date
	default:
		return nil, &json.UnsupportedValueError{Str: "property type " + p.Type}
	}
	return json.Marshal(map[string]any{p.Type: v})
}

// UnmarshalJSON 同时接受带 "type" 的读取形态与仅含值键的写入形态。
func (p *PropertyValue) UnmarshalJSON(b []byte) error {
	type plain PropertyValue
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.Type == "" {
		v.Type = impliedType(b)
	}
	*p = PropertyValue(v)
	return nil
}

func impliedType(b []byte) string {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return ""
	}
	for k := range keys {
		if k != "id" && k != "name" && k != "type" {
			return k
		}
	}
	return ""
}

func nonNilText(rt []RichText) []RichText {
	if rt == nil {
		return []RichText{}
	}
	return rt
}

func TitleValue(s string) PropertyValue { return PropertyValue{Type: TypeTitle, Title: Text(s)} }
func RichTextValue(s string) PropertyValue {
	return PropertyValue{Type: TypeRichText, RichText: Text(s)}
}
func CheckboxValue(b bool) PropertyValue { return PropertyValue{Type: TypeCheckbox, Checkbox: b} }
func NumberValue(n float64) PropertyValue {
	return PropertyValue{Type: TypeNumber, Number: &n}
}

// SelectValue 传空串表示清空。
func SelectValue(name string) PropertyValue {
	if name == "" {
		return PropertyValue{Type: TypeSelect}
	}
	return PropertyValue{Type: TypeSelect, Select: &SelectOption{Name: name}}
}

// URLValue 传空串表示清空。
func URLValue(u string) PropertyValue {
	if u == "" {
		return PropertyValue{Type: TypeURL}
	}
	return PropertyValue{Type: TypeURL, URL: &u}
}

func FilesValue(files ...File) PropertyValue {
	return PropertyValue{Type: TypeFiles, Files: files}
}

// PropertySchema 为数据库列定义；写入时只发送类型键及其选项。
type PropertySchema struct {
	ID     string        `json:"id,omitempty"`
	Name   string        `json:"name,omitempty"`
	Type   string        `json:"type"`
	Select *SelectSchema `json:"select,omitempty"`
	Number *NumberSchema `json:"number,omitempty"`
}

type SelectSchema struct {
	Options []SelectOption `json:"options"`
}

type NumberSchema struct {
	Format string `json:"format,omitempty"`
}

func (s PropertySchema) MarshalJSON() ([]byte, error) {
	var v any = struct{}{}
	switch s.Type {
	case TypeSelect, TypeMultiSelect:
		if s.Select != nil {
			v = s.Select
		}
	case TypeNumber:
		if s.Number != nil {
			v = s.Number
		}
	}
	return json.Marshal(map[string]any{s.Type: v})
}

func (s *PropertySchema) UnmarshalJSON(b []byte) error {
	type plain PropertySchema
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.Type == "" {
		v.Type = impliedType(b)
	}
	*s = PropertySchema(v)
	return nil
}

// Parent 指定新页面/数据库所在的容器。
type Parent struct {
	Type       string `json:"type,omitempty"`
	PageID     string `json:"page_id,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
	BlockID    string `json:"block_id,omitempty"`
}

func PageParent(id string) Parent     { return Parent{Type: "page_id", PageID: id} }
func DatabaseParent(id string) Parent { return Parent{Type: "database_id", DatabaseID: id} }

type Icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji,omitempty"`
}

func Emoji(e string) *Icon {
	if e == "" {
		return nil
	}
	return &Icon{Type: "emoji", Emoji: e}
}

// Page 为页面或数据库行。
type Page struct {
	Object         string                   `json:"object,omitempty"`
	ID             string                   `json:"id"`
	CreatedTime    string                   `json:"created_time,omitempty"`
	LastEditedTime string                   `json:"last_edited_time,omitempty"`
	Archived       bool                     `json:"archived,omitempty"`
	Parent         *Parent                  `json:"parent,omitempty"`
	Icon           *Icon                    `json:"icon,omitempty"`
	URL            string                   `json:"url,omitempty"`
	Properties     map[string]PropertyValue `json:"properties,omitempty"`
}

// Database 为数据库及其列定义。
type Database struct {
	Object     string                    `json:"object,omitempty"`
	ID         string                    `json:"id"`
	Title      []RichText                `json:"title,omitempty"`
	IsInline   bool                      `json:"is_inline,omitempty"`
	Parent     *Parent                   `json:"parent,omitempty"`
	Icon       *Icon                     `json:"icon,omitempty"`
	Properties map[string]PropertySchema `json:"properties,omitempty"`
}

// TextBlock 为段落、标题、列表项、引用、callout、toggle 共用的内容。
type TextBlock struct {
	RichText []RichText `json:"rich_text"`
	Color    string     `json:"color,omitempty"`
	Icon     *Icon      `json:"icon,omitempty"`
	Children []Block    `json:"children,omitempty"`
}

type ToDoBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

type CodeBlock struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language"`
	Caption  []RichText `json:"caption,omitempty"`
}

type LinkBlock struct {
	URL     string     `json:"url"`
	Caption []RichText `json:"caption,omitempty"`
}

type ChildRef struct {
	Title string `json:"title"`
}

// Block 为页面正文中的一个节点。
type Block struct {
	Object           string     `json:"object,omitempty"`
	ID               string     `json:"id,omitempty"`
	Type             string     `json:"type"`
	HasChildren      bool       `json:"has_children,omitempty"`
	CreatedTime      string     `json:"created_time,omitempty"`
	LastEditedTime   string     `json:"last_edited_time,omitempty"`
	Paragraph        *TextBlock `json:"paragraph,omitempty"`
	Heading1         *TextBlock `json:"heading_1,omitempty"`
	Heading2         *TextBlock `json:"heading_2,omitempty"`
	Heading3         *TextBlock `json:"heading_3,omitempty"`
	BulletedListItem *TextBlock `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextBlock `json:"numbered_list_item,omitempty"`
	Quote            *TextBlock `json:"quote,omitempty"`
	Callout          *TextBlock `json:"callout,omitempty"`
	Toggle           *TextBlock `json:"toggle,omitempty"`
	ToDo             *ToDoBlock `json:"to_do,omitempty"`
	Code             *CodeBlock `json:"code,omitempty"`
	Image            *File      `json:"image,omitempty"`
	Video            *File      `json:"video,omitempty"`
	FileBlock        *File      `json:"file,omitempty"`
	PDF              *File      `json:"pdf,omitempty"`
	Bookmark         *LinkBlock `json:"bookmark,omitempty"`
	Embed            *LinkBlock `json:"embed,omitempty"`
	Divider          *struct{}  `json:"divider,omitempty"`
	ChildPage        *ChildRef  `json:"child_page,omitempty"`
	ChildDatabase    *ChildRef  `json:"child_database,omitempty"`
}

// Text 返回文本类块的内容，其它类型返回 nil。
func (b *Block) Text() *TextBlock {
	switch b.Type {
	case "paragraph":
		return b.Paragraph
	case "heading_1":
		return b.Heading1
	case "heading_2":
		return b.Heading2
	case "heading_3":
		return b.Heading3
	case "bulleted_list_item":
		return b.BulletedListItem
	case "numbered_list_item":
		return b.NumberedListItem
	case "quote":
		return b.Quote
	case "callout":
		return b.Callout
	case "toggle":
		return b.Toggle
	}
	return nil
}

// Media 返回媒体类块的文件，其它类型返回 nil。
func (b *Block) Media() *File {
	switch b.Type {
	case "image":
		return b.Image
	case "video":
		return b.Video
	case "file":
		return b.FileBlock
	case "pdf":
		return b.PDF
	}
	return nil
}

func newTextBlock(typ, content string) Block {
	tb := &TextBlock{RichText: Text(content)}
	b := Block{Object: "block", Type: typ}
	switch typ {
	case "heading_1":
		b.Heading1 = tb
	case "heading_2":
		b.Heading2 = tb
	case "heading_3":
		b.Heading3 = tb
	case "bulleted_list_item":
		b.BulletedListItem = tb
	case "numbered_list_item":
		b.NumberedListItem = tb
	case "quote":
		b.Quote = tb
	case "callout":
		b.Callout = tb
	case "toggle":
		b.Toggle = tb
	default:
		b.Type = "paragraph"
		b.Paragraph = tb
	}
	return b
}

func Paragraph(content string) Block       { return newTextBlock("paragraph", content) }
func Heading(level int, text string) Block {
	switch level {
	case 1:
		return newTextBlock("heading_1", text)
	case 2:
		return newTextBlock("heading_2", text)
	}
	return newTextBlock("heading_3", text)
}
func BulletItem(content string) Block   { return newTextBlock("bulleted_list_item", content) }
func NumberedItem(content string) Block { return newTextBlock("numbered_list_item", content) }
func QuoteBlock(content string) Block   { return newTextBlock("quote", content) }

func Code(content, language string) Block {
	if language == "" {
		language = "plain text"
	}
	return Block{Object: "block", Type: "code", Code: &CodeBlock{RichText: Text(content), Language: language}}
}

func Image(url, caption string) Block {
	f := ExternalFile("", url)
	f.Caption = Text(caption)
	return Block{Object: "block", Type: "image", Image: &f}
}

func Divider() Block { return Block{Object: "block", Type: "divider", Divider: &struct{}{}} }

// listResponse 为列表接口共用的游标分页信封。
type listResponse[T any] struct {
	Object     string  `json:"object"`
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

// Query 为数据库查询条件，Filter 原样透传给 API。
type Query struct {
	Filter any    `json:"filter,omitempty"`
	Sorts  []Sort `json:"sorts,omitempty"`
}

type queryRequest struct {
	Filter      any    `json:"filter,omitempty"`
	Sorts       []Sort `json:"sorts,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

type CreateDatabaseRequest struct {
	Parent     Parent                    `json:"parent"`
	Title      []RichText                `json:"title"`
	IsInline   bool                      `json:"is_inline,omitempty"`
	Icon       *Icon                     `json:"icon,omitempty"`
	Properties map[string]PropertySchema `json:"properties"`
}

type UpdateDatabaseRequest struct {
	Title      []RichText                `json:"title,omitempty"`
	Icon       *Icon                     `json:"icon,omitempty"`
	Properties map[string]PropertySchema `json:"properties,omitempty"`
}

type CreatePageRequest struct {
	Parent     Parent                   `json:"parent"`
	Icon       *Icon                    `json:"icon,omitempty"`
	Properties map[string]PropertyValue `json:"properties"`
	Children   []Block                  `json:"children,omitempty"`
}

type appendRequest struct {
	Children []Block `json:"children"`
}

type updatePageRequest struct {
	Properties map[string]PropertyValue `json:"properties"`
}
