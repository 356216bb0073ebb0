// 包 assets 负责下载远端媒体到本地目录：
//   - 每次同步都重新下载（远端多为短期签名 URL，本地已存在不代表新鲜）
//   - 文件名由所属实体决定（{前缀}-{ID 或 slug}{扩展名}，集合条目为 {集合}--{slug}{扩展名}），重复同步覆盖而非累积
//   - 下载失败时返回原始 URL，页面仍可渲染（降级而非失败）
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"go-swan/internal/export"
	"go-swan/internal/fetch"
	"go-swan/internal/logx"
)

// maxAssetSize 单个素材的大小上限。
const maxAssetSize = 64 << 20

// Asset 为一次成功下载的结果。
type Asset struct {
	RemoteURL string
	// LocalPath 为页面中引用的路径，如 /images/projects-alpha.png
	LocalPath string
	File      string
	MIME      string
	Size      int64
}

// DownloadError 表示素材下载失败；只记录日志，不向流水线传播。
type DownloadError struct {
	URL  string
	File string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s -> %s: %v", e.URL, e.File, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

var errNotMedia = errors.New("payload is not media")

// Fetcher 可并发使用；同一文件名的并发写入以最后一次为准。
type Fetcher struct {
	http      *fetch.Client
	dir       string
	urlPrefix string
	// Record 在每次下载结束后回调（成功时 err 为 nil），用于写入状态库
	Record func(a Asset, err error)
}

func New(hc *fetch.Client, dir, urlPrefix string) *Fetcher {
	if urlPrefix == "" {
		urlPrefix = "/images"
	}
	return &Fetcher{http: hc, dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

// WithRecorder 返回带回调的浅拷贝，原 Fetcher 不变，可供多个同步并发共享。
func (f *Fetcher) WithRecorder(fn func(a Asset, err error)) *Fetcher {
	cp := *f
	cp.Record = fn
	return &cp
}

// Fetch 下载 remoteURL 并保存为 filename，返回本地引用路径；失败时原样返回 remoteURL。
func (f *Fetcher) Fetch(ctx context.Context, remoteURL, filename string) string {
	if remoteURL == "" {
		return ""
	}
	a, err := f.Download(ctx, remoteURL, filename)
	if f.Record != nil {
		f.Record(a, err)
	}
	if err != nil {
		logx.Warnf("素材下载失败，回退为远端地址：%s 错误=%v", filename, err)
		return remoteURL
	}
	logx.Debugf("已下载素材：%s (%s, %d 字节)", a.File, a.MIME, a.Size)
	return a.LocalPath
}

// Download 下载并原子写入；错误类型为 *DownloadError。
func (f *Fetcher) Download(ctx context.Context, remoteURL, filename string) (Asset, error) {
	a := Asset{RemoteURL: remoteURL, File: filename}
	fail := func(err error) (Asset, error) {
		return a, &DownloadError{URL: remoteURL, File: filename, Err: err}
	}
	if filename == "" || filename != filepath.Base(filename) {
		return fail(fmt.Errorf("invalid filename %q", filename))
	}
	resp, err := f.http.Get(ctx, remoteURL)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return fail(fmt.Errorf("read body: %w", err))
	}
	if len(body) > maxAssetSize {
		return fail(fmt.Errorf("asset larger than %d bytes", maxAssetSize))
	}
	// 部分图床在资源失效时仍返回 200 + HTML 页面
	mt := mimetype.Detect(body)
	if mt.Is("text/html") || mt.Is("application/json") {
		return fail(fmt.Errorf("%w: %s", errNotMedia, mt.String()))
	}
	if err := export.WriteFile(filepath.Join(f.dir, filename), body); err != nil {
		return fail(err)
	}
	a.MIME = mt.String()
	a.Size = int64(len(body))
	a.LocalPath = f.urlPrefix + "/" + filename
	return a, nil
}

// Ext 返回 URL 路径上的扩展名（忽略查询串），没有时为 .jpg。
func Ext(remoteURL string) string {
	p := remoteURL
	if u, err := url.Parse(remoteURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	if len(ext) < 2 || len(ext) > 6 || strings.ContainsAny(ext, "/\\ ") {
		return ".jpg"
	}
	return ext
}

// Filename 计算素材文件名：{prefix}-{owner}{ext}。
func Filename(prefix, owner, remoteURL string) string {
	owner = strings.NewReplacer("/", "-", "\\", "-", " ", "-").Replace(owner)
	return prefix + "-" + owner + Ext(remoteURL)
}

// ItemFilename 计算集合条目封面的文件名：{collection}--{slug}{ext}。
// slug 中不会出现连续的 "-"，因此不同集合的条目不会映射到同一文件。
func ItemFilename(collection, slug, remoteURL string) string {
	return Filename(collection+"-", slug, remoteURL)
}
