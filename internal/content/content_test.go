package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-swan/internal/export"
	"go-swan/internal/model"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "content"), filepath.Join(dir, "data")), dir
}

func writeItem(t *testing.T, dir string, it model.Item, body string) {
	t.Helper()
	path := filepath.Join(dir, "content", it.Collection, it.Slug+".md")
	require.NoError(t, export.Markdown(path, it, body))
}

func TestStore_EmptyBeforeSync(t *testing.T) {
	s, _ := newStore(t)
	home, err := s.Home()
	require.NoError(t, err)
	assert.Empty(t, home.Sections)
	assert.NotNil(t, home.Info)

	colls, err := s.Collections()
	require.NoError(t, err)
	assert.Empty(t, colls)

	posts, err := s.Posts("projects")
	require.NoError(t, err)
	assert.Empty(t, posts)

	_, err = s.Post("projects", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.NavbarPage("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_HomeMergesSite(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, export.JSON(filepath.Join(dir, "data", "site.json"),
		model.DataFile{Info: map[string]string{"title": "Swan"}, Sections: []model.Section{}}))
	require.NoError(t, export.JSON(filepath.Join(dir, "data", "home.json"), model.DataFile{Sections: []model.Section{
		{Type: "info_section", ID: "a", Title: "Hi", Enabled: true, Fields: map[string]any{"description": "x"}},
		{Type: "html_section", ID: "b", Title: "Off", Enabled: false},
	}}))

	home, err := s.Home()
	require.NoError(t, err)
	assert.Equal(t, "Swan", home.Info["title"])
	require.Len(t, home.Sections, 2)
	assert.Equal(t, "x", home.Sections[0].Fields["description"])

	on := Enabled(home.Sections)
	require.Len(t, on, 1)
	assert.Equal(t, "a", on[0].ID)
}

func TestStore_PostsOrdering(t *testing.T) {
	s, dir := newStore(t)
	writeItem(t, dir, model.Item{Slug: "old", Title: "Old", Collection: "blogs", Date: "2024-01-01T00:00:00.000Z"}, "")
	writeItem(t, dir, model.Item{Slug: "new", Title: "New", Collection: "blogs", Date: "2024-03-01T00:00:00.000Z"}, "")
	writeItem(t, dir, model.Item{Slug: "second", Title: "Second", Collection: "blogs", Order: 2}, "")
	writeItem(t, dir, model.Item{Slug: "first", Title: "First", Collection: "blogs", Order: 1}, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "blogs", "notes.txt"), []byte("x"), 0o644))

	posts, err := s.Posts("blogs")
	require.NoError(t, err)
	var slugs []string
	for _, p := range posts {
		slugs = append(slugs, p.Slug)
	}
	assert.Equal(t, []string{"first", "second", "new", "old"}, slugs)
}

func TestStore_PostAccessors(t *testing.T) {
	s, dir := newStore(t)
	writeItem(t, dir, model.Item{
		Slug: "alpha", Title: "Alpha", Collection: "projects", Order: 1,
		Image: "/images/projects-alpha.png", Tags: []string{"go", "cli"},
	}, "Hello **alpha** world.\n\n## Notes\n")

	p, err := s.Post("projects", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", p.Title)
	assert.Equal(t, []string{"go", "cli"}, p.Tags)
	assert.Equal(t, 1.0, p.Order)
	assert.True(t, strings.HasPrefix(p.Body, "Hello **alpha**"))

	html, err := p.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>alpha</strong>")
	assert.Contains(t, html, `<h2 id="notes">Notes</h2>`)

	assert.Equal(t, "Hello alpha world. Notes", p.Summary(0))
	assert.Equal(t, "Hello…", p.Summary(5))
	p.Description = "Short"
	assert.Equal(t, "Short", p.Summary(5))
}

func TestStore_TitleFallback(t *testing.T) {
	s, dir := newStore(t)
	path := filepath.Join(dir, "content", "gallery", "sunset-view.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("---\norder: 3\n---\n\nbody\n"), 0o644))

	p, err := s.Post("gallery", "sunset-view")
	require.NoError(t, err)
	assert.Equal(t, "Sunset View", p.Title)
	assert.Equal(t, "sunset-view", p.Slug)
	assert.Equal(t, "gallery", p.Collection)
}

func TestStore_CollectionsAndNavbar(t *testing.T) {
	s, dir := newStore(t)
	writeItem(t, dir, model.Item{Slug: "a", Title: "A", Collection: "projects"}, "")
	writeItem(t, dir, model.Item{Slug: "b", Title: "B", Collection: "blogs"}, "")
	for _, pg := range []model.NavbarPage{
		{Title: "Contact", Slug: "contact", Menu: "main"},
		{Title: "About", Slug: "about", Menu: "main", Sections: []model.Section{{Type: "iframe_section", Title: "Map", Enabled: true}}},
	} {
		require.NoError(t, export.Markdown(filepath.Join(dir, "content", model.NavbarCollection, pg.Slug+".md"), pg, "Text of "+pg.Title+"\n"))
	}

	colls, err := s.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"blogs", "projects"}, colls)

	pages, err := s.NavbarPages()
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "About", pages[0].Title)
	require.Len(t, pages[0].Sections, 1)
	assert.Equal(t, "iframe_section", pages[0].Sections[0].Type)

	about, err := s.NavbarPage("about")
	require.NoError(t, err)
	html, err := about.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<p>Text of About</p>")
}

func TestStore_RejectsPathSlugs(t *testing.T) {
	s, dir := newStore(t)
	// 内容目录之外和集合子目录中的文件都不应被读到
	require.NoError(t, export.Markdown(filepath.Join(dir, "secret.md"), model.Item{Slug: "secret", Title: "Secret"}, ""))
	require.NoError(t, export.Markdown(filepath.Join(dir, "content", "projects", "a", "b.md"), model.Item{Slug: "b", Title: "B"}, ""))
	writeItem(t, dir, model.Item{Slug: "ok", Title: "OK", Collection: "projects"}, "")

	for _, sl := range []string{"../../secret", "a/b", `a\b`, "..", ".", ""} {
		_, err := s.Post("projects", sl)
		assert.ErrorIs(t, err, ErrNotFound, sl)
		_, err = s.NavbarPage(sl)
		assert.ErrorIs(t, err, ErrNotFound, sl)
	}
	_, err := s.Post("..", "secret")
	assert.ErrorIs(t, err, ErrNotFound)

	posts, err := s.Posts("..")
	require.NoError(t, err)
	assert.Empty(t, posts)

	p, err := s.Post("projects", "ok")
	require.NoError(t, err)
	assert.Equal(t, "OK", p.Title)
}
