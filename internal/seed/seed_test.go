package seed

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-swan/internal/fetch"
	"go-swan/internal/model"
	"go-swan/internal/notion"
	"go-swan/internal/notion/notiontest"
	"go-swan/internal/schema"
)

func newClient(t *testing.T, srv *notiontest.Server) *notion.Client {
	t.Helper()
	hc, err := fetch.New(fetch.Options{Retry: 1, Backoff: time.Millisecond, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return notion.New(hc, notion.Options{BaseURL: srv.BaseURL(), Token: notiontest.Token})
}

func childByTitle(t *testing.T, srv *notiontest.Server, parent, title string) notion.Block {
	t.Helper()
	for _, b := range srv.Children(parent) {
		if b.ChildPage != nil && b.ChildPage.Title == title {
			return b
		}
		if b.ChildDatabase != nil && b.ChildDatabase.Title == title {
			return b
		}
	}
	t.Fatalf("no child %q under %s", title, parent)
	return notion.Block{}
}

func TestSeed_RefusesNonEmptyRoot(t *testing.T) {
	srv := notiontest.New(t)
	srv.AddBlocks(srv.Root(), notion.Paragraph(""), notion.Paragraph("keep me"))

	site, err := Default()
	require.NoError(t, err)
	_, err = New(newClient(t, srv)).Seed(context.Background(), srv.Root(), site)
	require.ErrorIs(t, err, ErrPreconditionViolated)
	assert.Zero(t, srv.Writes())
}

func TestSeed_AllowsBlankBlocks(t *testing.T) {
	srv := notiontest.New(t)
	srv.AddBlocks(srv.Root(), notion.Paragraph(""), notion.Heading(2, "   "), notion.QuoteBlock("\n"))

	site := &Site{Config: []ConfigEntry{{Field: "title", Value: "Swan"}}}
	res, err := New(newClient(t, srv)).Seed(context.Background(), srv.Root(), site)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Config)
	assert.Equal(t, 1, res.Rows)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(notion.Paragraph("")))
	assert.True(t, IsBlank(notion.Block{Type: "callout"}))
	assert.False(t, IsBlank(notion.Paragraph(" x ")))
	assert.False(t, IsBlank(notion.Divider()))
	assert.False(t, IsBlank(notion.BulletItem("")))
}

func TestSeed_CreatesContainersInOrder(t *testing.T) {
	srv := notiontest.New(t)
	site, err := Default()
	require.NoError(t, err)

	res, err := New(newClient(t, srv)).Seed(context.Background(), srv.Root(), site)
	require.NoError(t, err)

	var titles []string
	for _, b := range srv.Children(srv.Root()) {
		switch {
		case b.ChildPage != nil:
			titles = append(titles, b.ChildPage.Title)
		case b.ChildDatabase != nil:
			titles = append(titles, b.ChildDatabase.Title)
		}
	}
	assert.Equal(t, []string{model.ContainerHome, model.ContainerNavbar, model.ContainerCollections, model.ContainerConfig}, titles)
	assert.Equal(t, len(site.Home)+6, res.Sections)
	assert.Zero(t, res.Skipped)

	cfg, ok := srv.Database(res.Config)
	require.True(t, ok)
	require.NotNil(t, cfg.Icon)
	assert.Equal(t, "⚙️", cfg.Icon.Emoji)
}

func TestSeed_ConfigRowsReversed(t *testing.T) {
	srv := notiontest.New(t)
	site := &Site{Config: []ConfigEntry{
		{Field: "title", Value: "Swan"},
		{Field: "tagline", Value: "hello"},
		{Field: "logo", Media: "https://cdn.test/logo.png"},
	}}
	res, err := New(newClient(t, srv)).Seed(context.Background(), srv.Root(), site)
	require.NoError(t, err)

	rows := srv.Rows(res.Config)
	require.Len(t, rows, 3)
	var names []string
	for _, r := range rows {
		names = append(names, notion.PlainText(r.Properties["Name"].Title))
	}
	assert.Equal(t, []string{"logo", "tagline", "title"}, names)
	require.Len(t, rows[0].Properties["Media"].Files, 1)
	assert.Equal(t, "https://cdn.test/logo.png", rows[0].Properties["Media"].Files[0].URL())
}

func TestSeed_EmbeddedCodeBecomesBody(t *testing.T) {
	srv := notiontest.New(t)
	site := &Site{Home: []SectionDef{{
		Type: "html_section", Title: "Widget",
		Data: map[string]any{"html_code": "<p>hi</p>"},
	}}}
	res, err := New(newClient(t, srv)).Seed(context.Background(), srv.Root(), site)
	require.NoError(t, err)

	db := childByTitle(t, srv, res.Home, "Widget")
	meta, ok := srv.Database(db.ID)
	require.True(t, ok)
	assert.True(t, meta.IsInline)
	_, hasCode := meta.Properties["html_code"]
	assert.False(t, hasCode)

	rows := srv.Rows(db.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Widget", notion.PlainText(rows[0].Properties["title"].Title))
	assert.Equal(t, "html_section", rows[0].Properties["section_type"].Select.Name)
	assert.True(t, rows[0].Properties["enabled"].Checkbox)

	body := srv.Children(rows[0].ID)
	require.Len(t, body, 1)
	assert.Equal(t, "<p>hi</p>", schema.CodeFromBlocks(body))
	assert.Equal(t, "html", body[0].Code.Language)
}

func TestSeed_UnknownSectionSkipped(t *testing.T) {
	srv := notiontest.New(t)
	site := &Site{Home: []SectionDef{
		{Type: "carousel_section", Title: "Nope"},
		{Type: "iframe_section", Title: "Embed", Data: map[string]any{"url": "https://example.com"}},
	}}
	res, err := New(newClient(t, srv)).Seed(context.Background(), srv.Root(), site)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Sections)
}

func TestSeed_AbortsOnFirstWriteError(t *testing.T) {
	srv := notiontest.New(t)
	srv.Fail("POST /v1/databases", http.StatusBadRequest, 1)
	site, err := Default()
	require.NoError(t, err)

	_, err = New(newClient(t, srv)).Seed(context.Background(), srv.Root(), site)
	require.Error(t, err)
	assert.True(t, notion.IsRejected(err))
	// 首页已创建，之后的容器不再创建
	var titles []string
	for _, b := range srv.Children(srv.Root()) {
		if b.ChildPage != nil {
			titles = append(titles, b.ChildPage.Title)
		}
	}
	assert.Equal(t, []string{model.ContainerHome}, titles)
}

func TestLoad_FileAndValidation(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
collections:
  - name: Notes
    items:
      - title: First
        order_priority: 1
        content:
          - { type: paragraph, content: hello }
`), 0o644))
	s, err := Load(good)
	require.NoError(t, err)
	require.Len(t, s.Collections, 1)
	it := s.Collections[0].Items[0]
	assert.Equal(t, "First", it.Fields["title"])
	assert.Equal(t, 1, it.Fields["order_priority"])
	assert.NotContains(t, it.Fields, "content")
	require.Len(t, it.Content, 1)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("collections:\n  - name: A\n  - name: a\n"), 0o644))
	_, err = Load(bad)
	require.ErrorContains(t, err, "duplicate name")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestDefault_Parses(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	assert.Len(t, s.Home, 8)
	assert.Len(t, s.Navbar, 2)
	assert.Len(t, s.Collections, 3)
	for _, sec := range s.Home {
		_, err := schema.DefinitionFor(sec.Type)
		assert.NoError(t, err, sec.Type)
	}
}
