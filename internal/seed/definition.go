package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"go-swan/internal/notion"
	"go-swan/internal/schema"
)

//go:embed defaults.yaml
var defaultSite []byte

// Site 为种子站点定义：配置项、首页 section、导航页与集合。
type Site struct {
	Config      []ConfigEntry   `yaml:"config"`
	Home        []SectionDef    `yaml:"home"`
	Navbar      []NavbarPageDef `yaml:"navbar"`
	Collections []CollectionDef `yaml:"collections"`
}

// ConfigEntry 为配置库中的一行：field 为键，media 非空时写入文件属性。
type ConfigEntry struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
	Media string `yaml:"media"`
}

// SectionDef 为一个 section 实例：建为内联数据库并写入一行。
type SectionDef struct {
	Type    string         `yaml:"type"`
	Title   string         `yaml:"title"`
	Enabled *bool          `yaml:"enabled"`
	Data    map[string]any `yaml:"data"`
}

// IsEnabled 未声明时视为启用。
func (s SectionDef) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// Values 返回写入远端的字段值：data + enabled，标题字段为空时取 section 标题。
func (s SectionDef) Values(def schema.SectionTypeDef) schema.Values {
	v := make(schema.Values, len(s.Data)+1)
	for k, x := range s.Data {
		v[k] = x
	}
	v["enabled"] = s.IsEnabled()
	for _, f := range def.FieldsOf(schema.KindTitle) {
		if _, ok := v[f.Name]; !ok {
			v[f.Name] = s.Title
		}
	}
	return v
}

type NavbarPageDef struct {
	Title    string       `yaml:"title"`
	Icon     string       `yaml:"icon"`
	Content  []BlockDef   `yaml:"content"`
	Sections []SectionDef `yaml:"sections"`
}

type CollectionDef struct {
	Name  string    `yaml:"name"`
	Icon  string    `yaml:"icon"`
	Items []ItemDef `yaml:"items"`
}

// ItemDef 为集合中的一条：除 icon/content 外的键均为 collection_item 字段（可用别名）。
type ItemDef struct {
	Icon    string         `yaml:"icon"`
	Content []BlockDef     `yaml:"content"`
	Fields  map[string]any `yaml:",inline"`
}

// BlockDef 为正文块的简写形式。
type BlockDef struct {
	Type     string `yaml:"type"`
	Content  string `yaml:"content"`
	Language string `yaml:"language"`
	URL      string `yaml:"url"`
	Caption  string `yaml:"caption"`
}

// Block 转换为远端块；未知类型按段落处理。
func (b BlockDef) Block() notion.Block {
	switch b.Type {
	case "heading_1":
		return notion.Heading(1, b.Content)
	case "heading_2":
		return notion.Heading(2, b.Content)
	case "heading_3":
		return notion.Heading(3, b.Content)
	case "bullet_list_item", "bulleted_list_item":
		return notion.BulletItem(b.Content)
	case "numbered_list_item":
		return notion.NumberedItem(b.Content)
	case "quote":
		return notion.QuoteBlock(b.Content)
	case "code":
		return notion.Code(b.Content, b.Language)
	case "image":
		return notion.Image(b.URL, b.Caption)
	case "divider":
		return notion.Divider()
	}
	return notion.Paragraph(b.Content)
}

func blocks(defs []BlockDef) []notion.Block {
	if len(defs) == 0 {
		return nil
	}
	out := make([]notion.Block, len(defs))
	for i, d := range defs {
		out[i] = d.Block()
	}
	return out
}

// Default 返回内置的默认站点定义。
func Default() (*Site, error) {
	return Parse(defaultSite)
}

// Load 从文件读取站点定义。
func Load(path string) (*Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open site definition %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read site definition %s: %w", path, err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("site definition %s: %w", path, err)
	}
	return s, nil
}

// Parse 解析 YAML 并校验。
func Parse(b []byte) (*Site, error) {
	var s Site
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal site definition: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 检查集合名与配置键；未知 section 类型不在此报错，seed 时警告跳过。
func (s *Site) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, c := range s.Collections {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("collections[%d]: name required", i))
			continue
		}
		if seen[strings.ToLower(name)] {
			errs = append(errs, fmt.Errorf("collections[%d]: duplicate name %q", i, name))
		}
		seen[strings.ToLower(name)] = true
	}
	for i, e := range s.Config {
		if strings.TrimSpace(e.Field) == "" {
			errs = append(errs, fmt.Errorf("config[%d]: field required", i))
		}
	}
	for i, p := range s.Navbar {
		if strings.TrimSpace(p.Title) == "" {
			errs = append(errs, fmt.Errorf("navbar[%d]: title required", i))
		}
	}
	return errors.Join(errs...)
}
