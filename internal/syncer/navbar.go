package syncer

import (
	"context"
	"fmt"

	"go-swan/internal/logx"
	"go-swan/internal/model"
	"go-swan/internal/notion"
	"go-swan/internal/slug"
)

type navbarJob struct {
	block notion.Block
	slug  string
}

// syncNavbar 为导航页容器下的每个子页面写出一个 Markdown 文件；页内的内联数据库作为 sections 写入 front matter。
func (s *Syncer) syncNavbar(ctx context.Context, c containers) error {
	if c.navbar == "" {
		return fmt.Errorf("%w: %s", errSkipped, model.ContainerNavbar)
	}
	kids, err := s.api.ListChildren(ctx, c.navbar)
	if err != nil {
		s.buf.Failed(scopeNavbar)
		return fmt.Errorf("list %s: %w", model.ContainerNavbar, err)
	}
	alloc := slug.NewAllocator()
	var jobs []navbarJob
	for _, b := range kids {
		if b.Type != "child_page" || b.ChildPage == nil {
			continue
		}
		sl, changed := alloc.Assign(slug.Make(b.ChildPage.Title))
		if changed {
			logx.Warnf("导航页 slug 冲突，改用：%s -> %s", b.ChildPage.Title, sl)
			s.buf.Warn()
		}
		jobs = append(jobs, navbarJob{block: b, slug: sl})
	}

	s.each(ctx, len(jobs), func(i int) {
		if err := s.navbarPage(ctx, jobs[i]); err != nil {
			logx.Errorf("导航页同步失败，保留旧文件：%s 错误=%v", jobs[i].block.ChildPage.Title, err)
			s.buf.Failed(scopeNavbar)
		}
	})
	if ctx.Err() != nil {
		s.buf.Failed(scopeNavbar)
		return ctx.Err()
	}
	if !s.buf.Clean(scopeNavbar) {
		return fmt.Errorf("%s: some pages failed", model.ContainerNavbar)
	}
	logx.Infof("导航页：%d", len(jobs))
	return nil
}

func (s *Syncer) navbarPage(ctx context.Context, job navbarJob) error {
	title := job.block.ChildPage.Title
	blocks, err := s.api.ListChildren(ctx, job.block.ID)
	if err != nil {
		return err
	}
	sections, err := s.sections(ctx, title, blocks)
	if err != nil {
		return err
	}
	front := model.NavbarPage{
		Title:    title,
		Slug:     job.slug,
		Date:     job.block.LastEditedTime,
		Menu:     "main",
		Sections: sections,
	}
	body := s.conv.Blocks(ctx, blocks)
	return s.writeMarkdown(ctx, scopeNavbar, s.contentPath(model.NavbarCollection, job.slug), job.block.ID, front, body)
}
