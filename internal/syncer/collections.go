package syncer

import (
	"context"
	"fmt"
	"strings"

	"go-swan/internal/assets"
	"go-swan/internal/logx"
	"go-swan/internal/model"
	"go-swan/internal/notion"
	"go-swan/internal/schema"
	"go-swan/internal/slug"
)

type itemJob struct {
	row   notion.Page
	vals  schema.Values
	title string
	slug  string
}

// syncCollections 同步集合容器下的每个数据库；集合之间顺序执行，集合内的条目并发处理。
func (s *Syncer) syncCollections(ctx context.Context, c containers) error {
	if c.collections == "" {
		return fmt.Errorf("%w: %s", errSkipped, model.ContainerCollections)
	}
	kids, err := s.api.ListChildren(ctx, c.collections)
	if err != nil {
		s.buf.Failed("collections")
		return fmt.Errorf("list %s: %w", model.ContainerCollections, err)
	}
	def, err := schema.DefinitionFor(schema.CollectionItem)
	if err != nil {
		return err
	}
	names := slug.NewAllocator()
	failed := 0
	for _, b := range kids {
		if b.Type != "child_database" || b.ChildDatabase == nil {
			continue
		}
		if ctx.Err() != nil {
			s.buf.Failed("collections")
			return ctx.Err()
		}
		title := b.ChildDatabase.Title
		coll, changed := names.Assign(slug.Make(title))
		if changed {
			logx.Warnf("集合目录名冲突，改用：%s -> %s", title, coll)
			s.buf.Warn()
		}
		if err := s.collection(ctx, def, b.ID, title, coll); err != nil {
			logx.Errorf("集合同步失败，保留旧文件：%s 错误=%v", title, err)
			s.buf.Failed(scopeCollection + coll)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d collection(s) failed", failed)
	}
	return nil
}

// collection 按 Order 升序读取全部行，顺序分配 slug 后并发写出条目。
func (s *Syncer) collection(ctx context.Context, def schema.SectionTypeDef, dbID, title, coll string) error {
	scope := scopeCollection + coll
	q, err := s.orderQuery(ctx, def, dbID, title)
	if err != nil {
		return err
	}
	rows, err := s.api.QueryDatabase(ctx, dbID, q)
	if err != nil {
		return err
	}

	alloc := slug.NewAllocator()
	jobs := make([]itemJob, 0, len(rows))
	for _, row := range rows {
		v := def.Decode(row.Properties)
		t := strings.TrimSpace(v.String("Title"))
		if t == "" {
			t = "Untitled"
		}
		// 显式 Slug 也必须是合法 slug，否则可能写出集合目录之外
		raw := strings.TrimSpace(v.String("Slug"))
		want := slug.Make(raw)
		if raw != "" && want != raw {
			logx.With("collection", title, "field", "Slug").Warn(fmt.Sprintf("条目 slug 不合法，改用 %q（原为 %q）", want, raw))
			s.buf.Warn()
		}
		if want == "" {
			want = slug.Make(t)
		}
		sl, changed := alloc.Assign(want)
		if changed {
			logx.With("collection", title, "field", "Slug").Warn(fmt.Sprintf("条目 slug 冲突，改用 %s（原为 %q）", sl, want))
			s.buf.Warn()
		}
		jobs = append(jobs, itemJob{row: row, vals: v, title: t, slug: sl})
	}

	s.each(ctx, len(jobs), func(i int) {
		if err := s.item(ctx, coll, jobs[i]); err != nil {
			logx.Errorf("条目同步失败，保留旧文件：%s/%s 错误=%v", coll, jobs[i].slug, err)
			s.buf.Failed(scope)
		}
	})
	if ctx.Err() != nil {
		s.buf.Failed(scope)
		return ctx.Err()
	}
	if !s.buf.Clean(scope) {
		return fmt.Errorf("collection %s: some items failed", title)
	}
	logx.Infof("集合 %s：%d 条", title, len(jobs))
	return nil
}

// orderQuery 按库中存在的排序列（Order 或其别名）升序；都不存在时保持远端顺序。
func (s *Syncer) orderQuery(ctx context.Context, def schema.SectionTypeDef, dbID, title string) (*notion.Query, error) {
	db, err := s.api.RetrieveDatabase(ctx, dbID)
	if err != nil {
		return nil, err
	}
	f, _ := def.Field("Order")
	for _, name := range append([]string{f.Name}, f.Aliases...) {
		if p, ok := db.Properties[name]; ok && p.Type == notion.TypeNumber {
			return &notion.Query{Sorts: []notion.Sort{{Property: name, Direction: "ascending"}}}, nil
		}
	}
	logx.With("collection", title, "field", "Order").Warn("集合没有数值排序列，按远端顺序同步")
	s.buf.Warn()
	return nil, nil
}

// item 转换正文、下载封面后写出条目文件；正文无法读取时不写出。
func (s *Syncer) item(ctx context.Context, coll string, job itemJob) error {
	body, err := s.conv.Convert(ctx, job.row.ID)
	if err != nil {
		return err
	}
	v := job.vals
	image := ""
	if remote := v.String("Image"); remote != "" {
		image = s.fetch(ctx, remote, assets.ItemFilename(coll, job.slug, remote))
	}
	tags := splitTags(v.String("Tags"))
	order, _ := v.Number("Order")
	front := model.Item{
		Slug:           job.slug,
		Title:          job.title,
		Collection:     coll,
		Date:           job.row.CreatedTime,
		Description:    v.String("Description"),
		Image:          image,
		Cover:          model.Cover{Image: image, Alt: job.title},
		Thumbnail:      image,
		Tags:           tags,
		Link:           v.String("Link"),
		Tools:          strings.Join(tags, ", "),
		Order:          order,
		Status:         v.String("Status"),
		Author:         v.String("Author"),
		VideoEmbedLink: v.String("Video"),
	}
	return s.writeMarkdown(ctx, scopeCollection+coll, s.contentPath(coll, job.slug), job.row.ID, front, body)
}

// splitTags 拆分逗号分隔的标签，去掉空白项。
func splitTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
