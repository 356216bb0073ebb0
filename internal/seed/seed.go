// 包 seed 将站点定义推送到空白的远端根页面：
//   - 写入前检查根页面为空（仅允许空白文本块），否则整体拒绝，不做任何写入
//   - 固定顺序创建：首页 -> 导航页容器 -> 集合容器与各集合库 -> 配置库
//   - 任一写入失败即中止，已创建的容器保留（非事务）
package seed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go-swan/internal/logx"
	"go-swan/internal/model"
	"go-swan/internal/notion"
	"go-swan/internal/schema"
)

// ErrPreconditionViolated 表示根页面已有内容，拒绝 seed。
var ErrPreconditionViolated = errors.New("seed precondition violated: root page is not empty")

// Writer 为 seed 需要的远端操作子集。
type Writer interface {
	ListChildren(ctx context.Context, blockID string) ([]notion.Block, error)
	CreateDatabase(ctx context.Context, req notion.CreateDatabaseRequest) (*notion.Database, error)
	UpdateDatabase(ctx context.Context, databaseID string, req notion.UpdateDatabaseRequest) (*notion.Database, error)
	CreatePage(ctx context.Context, req notion.CreatePageRequest) (*notion.Page, error)
	AppendBlocks(ctx context.Context, blockID string, blocks []notion.Block) ([]notion.Block, error)
}

// Result 汇总本次创建的容器与行数。
type Result struct {
	Home        string
	Navbar      string
	Collections string
	Config      string
	Sections    int
	Rows        int
	Skipped     int
}

type Seeder struct {
	api Writer
	res Result
}

func New(api Writer) *Seeder { return &Seeder{api: api} }

// Seed 检查根页面后按固定顺序创建全部内容。
func (s *Seeder) Seed(ctx context.Context, rootID string, site *Site) (Result, error) {
	s.res = Result{}
	if site == nil {
		return s.res, errors.New("seed: nil site definition")
	}
	if err := s.CheckRoot(ctx, rootID); err != nil {
		return s.res, err
	}
	steps := []struct {
		name string
		fn   func(context.Context, string, *Site) error
	}{
		{"home", s.home},
		{"navbar", s.navbar},
		{"collections", s.collections},
		{"config", s.config},
	}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return s.res, fmt.Errorf("seed %s: %w", st.name, err)
		}
		logx.Infof("开始创建：%s", st.name)
		if err := st.fn(ctx, rootID, site); err != nil {
			return s.res, fmt.Errorf("seed %s: %w", st.name, err)
		}
	}
	logx.Infof("seed 完成：section=%d 行=%d 跳过=%d", s.res.Sections, s.res.Rows, s.res.Skipped)
	return s.res, nil
}

// CheckRoot 根页面只含空白文本块（或为空）时返回 nil。
func (s *Seeder) CheckRoot(ctx context.Context, rootID string) error {
	kids, err := s.api.ListChildren(ctx, rootID)
	if err != nil {
		return fmt.Errorf("check root %s: %w", rootID, err)
	}
	n := 0
	for _, b := range kids {
		if !IsBlank(b) {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%w (%d of %d blocks have content)", ErrPreconditionViolated, n, len(kids))
	}
	if len(kids) > 0 {
		logx.Infof("根页面有 %d 个空白块，继续 seed", len(kids))
	}
	return nil
}

var blankTypes = []string{"paragraph", "heading_1", "heading_2", "heading_3", "quote", "callout"}

// IsBlank 判断块是否为可忽略的空白文本块。
func IsBlank(b notion.Block) bool {
	if !slices.Contains(blankTypes, b.Type) {
		return false
	}
	tb := b.Text()
	if tb == nil {
		return true
	}
	for _, rt := range tb.RichText {
		if strings.TrimSpace(rt.Plain()) != "" {
			return false
		}
	}
	return true
}

func (s *Seeder) home(ctx context.Context, rootID string, site *Site) error {
	id, err := s.page(ctx, rootID, model.ContainerHome, "🏠", nil)
	if err != nil {
		return err
	}
	s.res.Home = id
	return s.sections(ctx, id, site.Home, true)
}

func (s *Seeder) navbar(ctx context.Context, rootID string, site *Site) error {
	id, err := s.page(ctx, rootID, model.ContainerNavbar, "📑", nil)
	if err != nil {
		return err
	}
	s.res.Navbar = id
	for _, p := range site.Navbar {
		pid, err := s.page(ctx, id, p.Title, p.Icon, blocks(p.Content))
		if err != nil {
			return err
		}
		logx.Infof("已创建导航页：%s", p.Title)
		if err := s.sections(ctx, pid, p.Sections, false); err != nil {
			return fmt.Errorf("navbar page %q: %w", p.Title, err)
		}
	}
	return nil
}

func (s *Seeder) collections(ctx context.Context, rootID string, site *Site) error {
	id, err := s.page(ctx, rootID, model.ContainerCollections, "🗂️", nil)
	if err != nil {
		return err
	}
	s.res.Collections = id
	props, err := schema.PropertiesToCreate(schema.CollectionItem)
	if err != nil {
		return err
	}
	def, err := schema.DefinitionFor(schema.CollectionItem)
	if err != nil {
		return err
	}
	for _, c := range site.Collections {
		dbID, err := s.database(ctx, id, c.Name, c.Icon, props, false)
		if err != nil {
			return fmt.Errorf("collection %q: %w", c.Name, err)
		}
		for i, it := range c.Items {
			rowProps, children, err := def.Encode(it.Fields)
			if err != nil {
				return fmt.Errorf("collection %q item %d: %w", c.Name, i, err)
			}
			children = append(children, blocks(it.Content)...)
			if err := s.row(ctx, dbID, rowProps, children, notion.Emoji(it.Icon)); err != nil {
				return fmt.Errorf("collection %q item %d: %w", c.Name, i, err)
			}
		}
		logx.Infof("已创建集合：%s（%d 条）", c.Name, len(c.Items))
	}
	return nil
}

func (s *Seeder) config(ctx context.Context, rootID string, site *Site) error {
	props, err := schema.PropertiesToCreate(schema.ConfigEntry)
	if err != nil {
		return err
	}
	def, err := schema.DefinitionFor(schema.ConfigEntry)
	if err != nil {
		return err
	}
	id, err := s.database(ctx, rootID, model.ContainerConfig, "⚙️", props, false)
	if err != nil {
		return err
	}
	s.res.Config = id
	// 倒序写入：第一项最后创建，在远端默认“最新在前”的视图中排在最上面
	for i := len(site.Config) - 1; i >= 0; i-- {
		e := site.Config[i]
		rowProps, _, err := def.Encode(schema.Values{"Name": e.Field, "Value": e.Value, "Media": e.Media})
		if err != nil {
			return fmt.Errorf("config %q: %w", e.Field, err)
		}
		if err := s.row(ctx, id, rowProps, nil, nil); err != nil {
			return fmt.Errorf("config %q: %w", e.Field, err)
		}
	}
	return nil
}

// sections 在 parentID 下为每个 section 建内联库并写入一行；spacer 为 true 时在库之间插入空段落。
func (s *Seeder) sections(ctx context.Context, parentID string, defs []SectionDef, spacer bool) error {
	for i, sec := range defs {
		def, err := schema.DefinitionFor(sec.Type)
		if err != nil {
			logx.Warnf("跳过 section：%s 错误=%v", sec.Title, err)
			s.res.Skipped++
			continue
		}
		if spacer && i > 0 {
			if _, err := s.api.AppendBlocks(ctx, parentID, []notion.Block{notion.Paragraph("")}); err != nil {
				return err
			}
		}
		props, err := schema.PropertiesToCreate(sec.Type)
		if err != nil {
			return err
		}
		dbID, err := s.database(ctx, parentID, sec.Title, "", props, true)
		if err != nil {
			return fmt.Errorf("section %q: %w", sec.Title, err)
		}
		rowProps, children, err := def.Encode(sec.Values(def))
		if err != nil {
			return fmt.Errorf("section %q: %w", sec.Title, err)
		}
		if err := s.row(ctx, dbID, rowProps, children, nil); err != nil {
			return fmt.Errorf("section %q: %w", sec.Title, err)
		}
		s.res.Sections++
		logx.Debugf("已创建 section：%s (%s)", sec.Title, sec.Type)
	}
	return nil
}

func (s *Seeder) page(ctx context.Context, parentID, title, icon string, children []notion.Block) (string, error) {
	p, err := s.api.CreatePage(ctx, notion.CreatePageRequest{
		Parent:     notion.PageParent(parentID),
		Icon:       notion.Emoji(icon),
		Properties: map[string]notion.PropertyValue{"title": notion.TitleValue(title)},
		Children:   children,
	})
	if err != nil {
		return "", fmt.Errorf("create page %q: %w", title, err)
	}
	return p.ID, nil
}

// database 建库，图标在建库后单独设置。
func (s *Seeder) database(ctx context.Context, parentID, title, icon string, props map[string]notion.PropertySchema, inline bool) (string, error) {
	db, err := s.api.CreateDatabase(ctx, notion.CreateDatabaseRequest{
		Parent:     notion.PageParent(parentID),
		Title:      notion.Text(title),
		IsInline:   inline,
		Properties: props,
	})
	if err != nil {
		return "", fmt.Errorf("create database %q: %w", title, err)
	}
	if ic := notion.Emoji(icon); ic != nil {
		if _, err := s.api.UpdateDatabase(ctx, db.ID, notion.UpdateDatabaseRequest{Icon: ic}); err != nil {
			return "", fmt.Errorf("set icon on %q: %w", title, err)
		}
	}
	return db.ID, nil
}

func (s *Seeder) row(ctx context.Context, dbID string, props map[string]notion.PropertyValue, children []notion.Block, icon *notion.Icon) error {
	if _, err := s.api.CreatePage(ctx, notion.CreatePageRequest{
		Parent:     notion.DatabaseParent(dbID),
		Icon:       icon,
		Properties: props,
		Children:   children,
	}); err != nil {
		return fmt.Errorf("create row: %w", err)
	}
	s.res.Rows++
	return nil
}
