// 包 content 为本地内容缓存的读取端：加载 sync 写出的 JSON 数据文件与 Markdown 条目，
// 供渲染层按集合、slug 查询。文件不存在时返回空结果（尚未同步过）。
package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go-swan/internal/logx"
	"go-swan/internal/model"
)

// ErrNotFound 表示请求的条目或页面不存在。
var ErrNotFound = errors.New("content not found")

// Store 只读访问 contentDir/dataDir，可并发使用。
type Store struct {
	contentDir string
	dataDir    string
	md         goldmark.Markdown
}

func New(contentDir, dataDir string) *Store {
	return &Store{
		contentDir: contentDir,
		dataDir:    dataDir,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// Post 为一个集合条目。
type Post struct {
	model.Item
	Path string

	md goldmark.Markdown
}

// Page 为一个导航页。
type Page struct {
	model.NavbarPage
	Path string

	md goldmark.Markdown
}

// Site 返回 site.json 的配置键值。
func (s *Store) Site() (map[string]string, error) {
	var df model.DataFile
	if err := s.readJSON("site.json", &df); err != nil {
		return nil, err
	}
	if df.Info == nil {
		df.Info = map[string]string{}
	}
	return df.Info, nil
}

// Home 返回首页数据，Info 合并自 site.json。
func (s *Store) Home() (model.DataFile, error) {
	var df model.DataFile
	if err := s.readJSON("home.json", &df); err != nil {
		return df, err
	}
	info, err := s.Site()
	if err != nil {
		return df, err
	}
	df.Info = info
	if df.Sections == nil {
		df.Sections = []model.Section{}
	}
	return df, nil
}

// Enabled 过滤掉被关闭的 section。
func Enabled(secs []model.Section) []model.Section {
	out := make([]model.Section, 0, len(secs))
	for _, sec := range secs {
		if sec.Enabled {
			out = append(out, sec)
		}
	}
	return out
}

// Collections 返回内容目录下的集合名（不含导航页），按名称排序。
func (s *Store) Collections() ([]string, error) {
	entries, err := os.ReadDir(s.contentDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.contentDir, err)
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() && e.Name() != model.NavbarCollection && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Posts 返回集合内全部条目：有显式 order 的在前并升序，其余按日期从新到旧。
// 单个文件无法解析时跳过并警告。
func (s *Store) Posts(collection string) ([]Post, error) {
	files, err := s.markdownFiles(collection)
	if err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(files))
	for _, path := range files {
		p, err := s.loadPost(collection, path)
		if err != nil {
			logx.Warnf("跳过无法解析的条目：%s 错误=%v", path, err)
			continue
		}
		posts = append(posts, p)
	}
	sort.SliceStable(posts, func(i, j int) bool { return less(posts[i], posts[j]) })
	return posts, nil
}

func less(a, b Post) bool {
	ao, bo := a.Order != 0, b.Order != 0
	switch {
	case ao && bo:
		if a.Order != b.Order {
			return a.Order < b.Order
		}
	case ao != bo:
		return ao
	default:
		da, db := parseDate(a.Date), parseDate(b.Date)
		if !da.Equal(db) {
			return da.After(db)
		}
	}
	return a.Slug < b.Slug
}

// Post 按 slug 读取单个条目；不存在时返回 ErrNotFound。
func (s *Store) Post(collection, slug string) (Post, error) {
	if !validName(collection) || !validName(slug) {
		return Post{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, slug)
	}
	path := filepath.Join(s.contentDir, collection, slug+".md")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Post{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, slug)
	}
	return s.loadPost(collection, path)
}

// NavbarPages 返回全部导航页，按标题排序。
func (s *Store) NavbarPages() ([]Page, error) {
	files, err := s.markdownFiles(model.NavbarCollection)
	if err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(files))
	for _, path := range files {
		p, err := s.loadPage(path)
		if err != nil {
			logx.Warnf("跳过无法解析的导航页：%s 错误=%v", path, err)
			continue
		}
		pages = append(pages, p)
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Title < pages[j].Title })
	return pages, nil
}

// NavbarPage 按 slug 读取导航页；不存在时返回 ErrNotFound。
func (s *Store) NavbarPage(slug string) (Page, error) {
	if !validName(slug) {
		return Page{}, fmt.Errorf("%w: %s/%s", ErrNotFound, model.NavbarCollection, slug)
	}
	path := filepath.Join(s.contentDir, model.NavbarCollection, slug+".md")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Page{}, fmt.Errorf("%w: %s/%s", ErrNotFound, model.NavbarCollection, slug)
	}
	return s.loadPage(path)
}

// HTML 将正文渲染为 HTML。
func (p Post) HTML() (string, error) { return render(p.md, p.Body) }

// HTML 将正文渲染为 HTML。
func (p Page) HTML() (string, error) { return render(p.md, p.Body) }

// Summary 优先返回 description，否则取正文纯文本的前 n 个字符。
func (p Post) Summary(n int) string {
	if d := strings.TrimSpace(p.Description); d != "" {
		return d
	}
	html, err := p.HTML()
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	r := []rune(text)
	if n <= 0 || len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func (s *Store) loadPost(collection, path string) (Post, error) {
	p := Post{Path: path, md: s.md}
	body, err := s.parse(path, &p.Item)
	if err != nil {
		return Post{}, err
	}
	p.Body = body
	slug := strings.TrimSuffix(filepath.Base(path), ".md")
	if p.Slug == "" {
		p.Slug = slug
	}
	if p.Collection == "" {
		p.Collection = collection
	}
	if p.Title == "" {
		p.Title = titleFromSlug(p.Slug)
	}
	return p, nil
}

func (s *Store) loadPage(path string) (Page, error) {
	p := Page{Path: path, md: s.md}
	body, err := s.parse(path, &p.NavbarPage)
	if err != nil {
		return Page{}, err
	}
	p.Body = body
	if p.Slug == "" {
		p.Slug = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	if p.Title == "" {
		p.Title = titleFromSlug(p.Slug)
	}
	return p, nil
}

// parse 读取 front matter 到 v，返回去掉首个空行的正文。
func (s *Store) parse(path string, v any) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	rest, err := frontmatter.Parse(bytes.NewReader(b), v)
	if err != nil {
		return "", fmt.Errorf("front matter of %s: %w", path, err)
	}
	return strings.TrimPrefix(string(rest), "\n"), nil
}

func (s *Store) markdownFiles(collection string) ([]string, error) {
	if !validName(collection) {
		return nil, nil
	}
	dir := filepath.Join(s.contentDir, collection)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".md") && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func (s *Store) readJSON(name string, v any) error {
	b, err := os.ReadFile(filepath.Join(s.dataDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func render(md goldmark.Markdown, body string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func titleFromSlug(slug string) string {
	t := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return cases.Title(language.English).String(t)
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// validName 为 true 时 name 是单个路径段，不会跳出内容目录。
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
