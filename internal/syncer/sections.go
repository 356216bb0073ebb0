package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"go-swan/internal/assets"
	"go-swan/internal/logx"
	"go-swan/internal/model"
	"go-swan/internal/notion"
	"go-swan/internal/schema"
	"go-swan/internal/slug"
)

// syncConfig 将配置库的全部行读为键值（media 行下载素材）并写出 site.json。
func (s *Syncer) syncConfig(ctx context.Context, c containers) error {
	if c.config == "" {
		return fmt.Errorf("%w: %s", errSkipped, model.ContainerConfig)
	}
	def, err := schema.DefinitionFor(schema.ConfigEntry)
	if err != nil {
		return err
	}
	rows, err := s.api.QueryDatabase(ctx, c.config, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", model.ContainerConfig, err)
	}
	info := make(map[string]string, len(rows))
	for _, row := range rows {
		v := def.Decode(row.Properties)
		key := strings.TrimSpace(v.String("Name"))
		if key == "" {
			continue
		}
		if _, dup := info[key]; dup {
			logx.Warnf("配置项重复，后者覆盖前者：%s", key)
			s.buf.Warn()
		}
		val := v.String("Value")
		if media := v.String("Media"); media != "" {
			val = s.fetch(ctx, media, assets.Filename("site", slug.Make(key), media))
		}
		info[key] = val
	}
	return s.writeJSON(ctx, "config", s.dataPath("site.json"), c.config, model.DataFile{Info: info, Sections: []model.Section{}})
}

// syncHome 读取首页下的内联数据库，逐个分类解码为 section 并写出 home.json。
// 单个数据库无法分类时跳过；远端错误时整份 home.json 保持旧版本。
func (s *Syncer) syncHome(ctx context.Context, c containers) error {
	if c.home == "" {
		return fmt.Errorf("%w: %s", errSkipped, model.ContainerHome)
	}
	kids, err := s.api.ListChildren(ctx, c.home)
	if err != nil {
		return fmt.Errorf("list %s: %w", model.ContainerHome, err)
	}
	sections, err := s.sections(ctx, model.ContainerHome, kids)
	if err != nil {
		return err
	}
	logx.Infof("首页 section：%d", len(sections))
	return s.writeJSON(ctx, "home", s.dataPath("home.json"), c.home, model.DataFile{Sections: sections})
}

// sections 处理 blocks 中的全部内联数据库；返回的错误合并了所有远端失败。
func (s *Syncer) sections(ctx context.Context, owner string, blocks []notion.Block) ([]model.Section, error) {
	out := []model.Section{}
	var errs []error
	for _, b := range blocks {
		if b.Type != "child_database" || b.ChildDatabase == nil {
			continue
		}
		sec, err := s.section(ctx, b.ID, b.ChildDatabase.Title)
		switch {
		case err == nil:
			out = append(out, sec)
		case errors.Is(err, ErrUnclassifiable), errors.Is(err, schema.ErrUnknownSectionType), errors.Is(err, errEmptyDatabase):
			logx.With("container", owner, "database", b.ChildDatabase.Title).Warn(fmt.Sprintf("跳过数据库：%v", err))
			s.buf.Warn()
		default:
			errs = append(errs, fmt.Errorf("%s/%s: %w", owner, b.ChildDatabase.Title, err))
		}
	}
	return out, errors.Join(errs...)
}

var errEmptyDatabase = errors.New("database has no rows")

// section 读取单个 section 数据库：首行决定类型与字段值，多余行只警告。
func (s *Syncer) section(ctx context.Context, dbID, dbTitle string) (model.Section, error) {
	rows, err := s.api.QueryDatabase(ctx, dbID, nil)
	if err != nil {
		return model.Section{}, err
	}
	if len(rows) == 0 {
		return model.Section{}, errEmptyDatabase
	}
	row := rows[0]
	typ, err := s.classify(ctx, dbID, row)
	if err != nil {
		return model.Section{}, err
	}
	def, err := schema.DefinitionFor(typ)
	if err != nil {
		return model.Section{}, err
	}
	if len(rows) > 1 {
		logx.Warnf("单行 section 数据库有多行，仅使用第一行：%s（%d 行）", dbTitle, len(rows))
		s.buf.Warn()
	}

	v := def.Decode(row.Properties)
	if code := def.FieldsOf(schema.KindEmbeddedCode); len(code) > 0 {
		body, err := s.api.ListChildren(ctx, row.ID)
		if err != nil {
			return model.Section{}, fmt.Errorf("read body of %s: %w", dbTitle, err)
		}
		for _, f := range code {
			v[f.Name] = schema.CodeFromBlocks(body)
		}
	}
	files := def.FieldsOf(schema.KindFile)
	for _, f := range files {
		remote := v.String(f.Name)
		if remote == "" {
			continue
		}
		owner := shortID(dbID)
		if len(files) > 1 {
			owner += "-" + f.Name
		}
		v[f.Name] = s.fetch(ctx, remote, assets.Filename(def.AssetPrefix(), owner, remote))
	}

	sec := model.Section{Type: typ, ID: dbID, Enabled: v.Bool("enabled")}
	delete(v, "enabled")
	delete(v, "section_type")
	sec.Fields = v
	sec.Title = sectionTitle(def, v, dbTitle)
	return sec, nil
}

// classify 优先读取首行的 section_type；没有时按库的列推断。
func (s *Syncer) classify(ctx context.Context, dbID string, row notion.Page) (string, error) {
	for _, name := range []string{"section_type", "Section Type"} {
		if pv, ok := row.Properties[name]; ok && pv.Select != nil && pv.Select.Name != "" {
			return pv.Select.Name, nil
		}
	}
	db, err := s.api.RetrieveDatabase(ctx, dbID)
	if err != nil {
		return "", err
	}
	has := func(name string) bool { _, ok := db.Properties[name]; return ok }
	switch {
	case has("collection_name"):
		return "dynamic_section", nil
	case has("description") && has("title"), has("Description") && has("Title"):
		return "info_section", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnclassifiable, notion.PlainText(db.Title))
}

// sectionTitle 取类型的标题字段；html_section 为空时从代码中提取；最后回退到库标题。
func sectionTitle(def schema.SectionTypeDef, v schema.Values, dbTitle string) string {
	if def.TitleField != "" {
		if t := strings.TrimSpace(v.String(def.TitleField)); t != "" {
			return t
		}
	}
	if def.Type == "html_section" {
		if t := htmlTitle(v.String("html_code")); t != "" {
			return t
		}
	}
	return dbTitle
}

// htmlTitle 返回 <title> 或第一个标题元素的文本。
func htmlTitle(code string) string {
	if strings.TrimSpace(code) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(code))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1, h2, h3").First().Text())
}

func (s *Syncer) fetch(ctx context.Context, remote, filename string) string {
	if s.media == nil {
		return remote
	}
	return s.media.Fetch(ctx, remote, filename)
}

// shortID 取 ID 去掉连字符后的前 8 位。
func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
