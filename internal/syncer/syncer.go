// 包 syncer 负责主流程编排（远端 -> 本地内容缓存）：
//   - 在根页面下按标题定位配置库、首页、导航页容器、集合容器
//   - 依次同步 config / home / navbar / collections，单步失败只记录日志，对应文件保持旧版本
//   - 集合条目与导航页按上限并发处理，每个条目的素材与正文完成后才原子写出
//   - 成功的步骤结束后清理上一次运行写出、本次未再生成的文件
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"go-swan/internal/assets"
	"go-swan/internal/export"
	"go-swan/internal/logx"
	"go-swan/internal/markdown"
	"go-swan/internal/model"
	"go-swan/internal/notion"
	"go-swan/internal/store"
)

// ErrUnclassifiable 表示无法判断数据库的 section 类型，跳过并警告。
var ErrUnclassifiable = errors.New("unclassifiable database")

// Reader 为同步需要的远端只读操作。
type Reader interface {
	ListChildren(ctx context.Context, blockID string) ([]notion.Block, error)
	QueryDatabase(ctx context.Context, databaseID string, q *notion.Query) ([]notion.Page, error)
	RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Database, error)
}

// Options 本地输出位置与并发。
type Options struct {
	ContentDir  string
	DataDir     string
	Concurrency int
	// Prune 为 true 时删除远端已不存在的实体对应的旧文件（需要状态库）
	Prune bool
}

// Syncer 同步执行器，持有远端客户端/素材下载/状态库。
type Syncer struct {
	api    Reader
	assets *assets.Fetcher
	conv   *markdown.Converter
	store  *store.SQLite
	opts   Options

	// 单次运行状态
	runID string
	buf   *Collector
	media *assets.Fetcher
}

// Report 为一次运行的结果。
type Report struct {
	RunID    string
	State    string
	Steps    []model.Step
	Written  []string
	Pruned   []string
	Warnings int
}

// OK 所有子步骤都成功时为 true。
func (r Report) OK() bool {
	for _, st := range r.Steps {
		if st.State == model.StepFailed {
			return false
		}
	}
	return r.State == model.StateDone
}

// New 创建 Syncer；st 可为 nil（不记录运行状态，也不清理旧文件）。
func New(api Reader, fetcher *assets.Fetcher, st *store.SQLite, opts Options) *Syncer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	s := &Syncer{api: api, assets: fetcher, store: st, opts: opts}
	s.useMedia(fetcher)
	return s
}

// useMedia 切换本次运行使用的素材下载器；fetcher 可被多个 Syncer 共享，只读不改。
func (s *Syncer) useMedia(f *assets.Fetcher) {
	s.media = f
	// 不能把 nil 指针装进接口
	if f != nil {
		s.conv = markdown.New(s.api, f)
	} else {
		s.conv = markdown.New(s.api, nil)
	}
}

// containers 为根页面下的固定容器 ID，缺失时为空。
type containers struct {
	config, home, navbar, collections string
}

// Run 执行一轮同步。仅当根页面无法读取或 ctx 被取消时返回错误。
func (s *Syncer) Run(ctx context.Context, rootID string) (Report, error) {
	s.runID = uuid.NewString()
	s.buf = NewCollector()
	rep := Report{RunID: s.runID, State: model.StateIdle}
	if s.assets != nil {
		s.useMedia(s.assets.WithRecorder(s.recordAsset(ctx)))
	}
	s.beginRun(ctx, rootID)

	s.setState(ctx, &rep, model.StateResolving, "")
	c, err := s.resolve(ctx, rootID)
	if err != nil {
		s.setState(ctx, &rep, model.StateFailed, err.Error())
		return rep, err
	}

	steps := []struct {
		name  string
		state string
		fn    func(context.Context, containers) error
	}{
		{"config", model.StateConfig, s.syncConfig},
		{"home", model.StateHome, s.syncHome},
		{"navbar", model.StateNavbar, s.syncNavbar},
		{"collections", model.StateCollect, s.syncCollections},
	}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			s.setState(ctx, &rep, model.StateFailed, err.Error())
			return rep, fmt.Errorf("sync cancelled before %s: %w", st.name, err)
		}
		s.setState(ctx, &rep, st.state, "")
		step := model.Step{RunID: s.runID, Name: st.name, State: model.StepOK}
		if err := st.fn(ctx, c); err != nil {
			switch {
			case errors.Is(err, errSkipped):
				step.State = model.StepSkipped
				logx.Warnf("跳过步骤：%s 原因=%v", st.name, err)
			default:
				step.State = model.StepFailed
				step.Error = err.Error()
				logx.Errorf("步骤失败，相关文件保持旧版本：%s 错误=%v", st.name, err)
			}
		}
		step.Artifacts = s.buf.Count(st.name)
		rep.Steps = append(rep.Steps, step)
		s.recordStep(ctx, step)
	}

	if ctx.Err() == nil {
		rep.Pruned = s.prune(ctx, c)
	}
	rep.Written, rep.Warnings = s.buf.Snapshot()
	s.setState(ctx, &rep, model.StateDone, "")
	logx.Infof("同步完成：写出=%d 清理=%d 警告=%d", len(rep.Written), len(rep.Pruned), rep.Warnings)
	return rep, nil
}

var errSkipped = errors.New("container not found")

// resolve 列出根页面子块并按标题定位固定容器；同名容器取第一个。
func (s *Syncer) resolve(ctx context.Context, rootID string) (containers, error) {
	var c containers
	kids, err := s.api.ListChildren(ctx, rootID)
	if err != nil {
		return c, fmt.Errorf("resolve root %s: %w", rootID, err)
	}
	set := func(dst *string, name, id string) {
		if *dst != "" {
			logx.Warnf("根页面下有多个同名容器，使用第一个：%s", name)
			s.buf.Warn()
			return
		}
		*dst = id
	}
	for _, b := range kids {
		switch {
		case b.ChildDatabase != nil && b.ChildDatabase.Title == model.ContainerConfig:
			set(&c.config, model.ContainerConfig, b.ID)
		case b.ChildPage != nil && b.ChildPage.Title == model.ContainerHome:
			set(&c.home, model.ContainerHome, b.ID)
		case b.ChildPage != nil && b.ChildPage.Title == model.ContainerNavbar:
			set(&c.navbar, model.ContainerNavbar, b.ID)
		case b.ChildPage != nil && b.ChildPage.Title == model.ContainerCollections:
			set(&c.collections, model.ContainerCollections, b.ID)
		}
	}
	logx.Debugf("容器定位：config=%q home=%q navbar=%q collections=%q", c.config, c.home, c.navbar, c.collections)
	return c, nil
}

// each 以 sem + WaitGroup 限制并发；ctx 取消后不再启动新任务，已启动的任务执行完毕。
func (s *Syncer) each(ctx context.Context, n int, fn func(i int)) {
	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}()
	}
	wg.Wait()
}

// writeJSON/writeMarkdown 写出文件并登记到当前运行。
func (s *Syncer) writeJSON(ctx context.Context, scope, path, entityID string, v any) error {
	if err := export.JSON(path, v); err != nil {
		return err
	}
	s.written(ctx, scope, path, entityID)
	return nil
}

func (s *Syncer) writeMarkdown(ctx context.Context, scope, path, entityID string, front any, body string) error {
	if err := export.Markdown(path, front, body); err != nil {
		return err
	}
	s.written(ctx, scope, path, entityID)
	return nil
}

func (s *Syncer) written(ctx context.Context, scope, path, entityID string) {
	s.buf.Written(stepOf(scope), path)
	if s.store == nil {
		return
	}
	if err := s.store.RecordArtifact(ctx, s.runID, scope, path, entityID); err != nil {
		logx.Warnf("登记文件失败：%s 错误=%v", path, err)
	}
}

// stepOf 将作用域映射到步骤名：collection:<slug> -> collections。
func stepOf(scope string) string {
	if strings.HasPrefix(scope, scopeCollection) {
		return "collections"
	}
	return scope
}

const (
	scopeCollection = "collection:"
	scopeNavbar     = "navbar"
)

// prune 删除可清理作用域中本次未写出的旧文件。
// 导航页：步骤内无失败时清理；集合：各集合无失败时清理，远端已删除的集合在集合容器可读时整体清理。
func (s *Syncer) prune(ctx context.Context, c containers) []string {
	if !s.opts.Prune || s.store == nil {
		return nil
	}
	var scopes []string
	if c.navbar != "" && s.buf.Clean(scopeNavbar) {
		scopes = append(scopes, scopeNavbar)
	}
	if c.collections != "" && s.buf.Clean("collections") {
		known, err := s.store.Scopes(ctx, scopeCollection)
		if err != nil {
			logx.Warnf("读取集合作用域失败：%v", err)
		}
		for _, sc := range known {
			if s.buf.Clean(sc) {
				scopes = append(scopes, sc)
			}
		}
	}
	var pruned []string
	for _, sc := range scopes {
		stale, err := s.store.StaleArtifacts(ctx, sc, s.runID)
		if err != nil {
			logx.Warnf("查询过期文件失败：%s 错误=%v", sc, err)
			continue
		}
		for _, p := range stale {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				logx.Warnf("删除过期文件失败：%s 错误=%v", p, err)
				continue
			}
			if err := s.store.ForgetArtifact(ctx, p); err != nil {
				logx.Warnf("移除文件索引失败：%s 错误=%v", p, err)
			}
			logx.Infof("已清理远端已删除的条目：%s", p)
			pruned = append(pruned, p)
		}
	}
	return pruned
}

func (s *Syncer) beginRun(ctx context.Context, rootID string) {
	if s.store == nil {
		return
	}
	if err := s.store.BeginRun(context.WithoutCancel(ctx), model.Run{ID: s.runID, Kind: "sync", Root: rootID}); err != nil {
		logx.Warnf("记录运行失败：%v", err)
	}
}

func (s *Syncer) setState(ctx context.Context, rep *Report, state, errMsg string) {
	rep.State = state
	logx.Debugf("状态：%s", state)
	if s.store == nil {
		return
	}
	// 取消后仍需写入最终状态
	if err := s.store.SetRunState(context.WithoutCancel(ctx), s.runID, state, errMsg); err != nil {
		logx.Warnf("记录运行状态失败：%v", err)
	}
}

func (s *Syncer) recordStep(ctx context.Context, st model.Step) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordStep(context.WithoutCancel(ctx), st); err != nil {
		logx.Warnf("记录步骤失败：%s 错误=%v", st.Name, err)
	}
}

func (s *Syncer) recordAsset(ctx context.Context) func(assets.Asset, error) {
	return func(a assets.Asset, err error) {
		if s.store == nil {
			return
		}
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		if e := s.store.RecordAsset(context.WithoutCancel(ctx), s.runID, a.File, a.RemoteURL, a.LocalPath, a.MIME, a.Size, msg); e != nil {
			logx.Warnf("登记素材失败：%s 错误=%v", a.File, e)
		}
	}
}

func (s *Syncer) contentPath(collection, slug string) string {
	return filepath.Join(s.opts.ContentDir, collection, slug+".md")
}

func (s *Syncer) dataPath(name string) string {
	return filepath.Join(s.opts.DataDir, name)
}
