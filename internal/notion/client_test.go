package notion_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-swan/internal/fetch"
	"go-swan/internal/notion"
	"go-swan/internal/notion/notiontest"
)

func newClient(t *testing.T, srv *notiontest.Server, pageSize int) *notion.Client {
	t.Helper()
	hc, err := fetch.New(fetch.Options{Retry: 2, Backoff: time.Millisecond, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return notion.New(hc, notion.Options{BaseURL: srv.BaseURL(), Token: notiontest.Token, PageSize: pageSize})
}

func projectsDB(srv *notiontest.Server) string {
	return srv.AddDatabase(srv.Root(), "Projects", map[string]notion.PropertySchema{
		"Title": {Type: notion.TypeTitle},
		"Order": {Type: notion.TypeNumber},
	})
}

func TestQueryDatabase_PaginatesAcrossPageBoundaries(t *testing.T) {
	srv := notiontest.New(t)
	srv.PageSize = 2
	db := projectsDB(srv)
	// 乱序插入，由远端排序
	for _, n := range []int{3, 1, 5, 2, 4} {
		srv.AddRow(db, map[string]notion.PropertyValue{
			"Title": notion.TitleValue(fmt.Sprintf("row-%d", n)),
			"Order": notion.NumberValue(float64(n)),
		})
	}

	cl := newClient(t, srv, 2)
	rows, err := cl.QueryDatabase(context.Background(), db, &notion.Query{
		Sorts: []notion.Sort{{Property: "Order", Direction: "ascending"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	seen := map[string]bool{}
	for i, r := range rows {
		assert.Equal(t, fmt.Sprintf("row-%d", i+1), notion.PlainText(r.Properties["Title"].Title))
		assert.False(t, seen[r.ID], "duplicate row %s", r.ID)
		seen[r.ID] = true
	}
	assert.Equal(t, 3, srv.Requests("POST /v1/databases/"+db+"/query"))
}

func TestQueryDatabase_KeepsRemoteOrderWithoutSort(t *testing.T) {
	srv := notiontest.New(t)
	srv.PageSize = 2
	db := projectsDB(srv)
	for _, n := range []int{3, 1, 2} {
		srv.AddRow(db, map[string]notion.PropertyValue{"Title": notion.TitleValue(fmt.Sprint(n))})
	}
	rows, err := newClient(t, srv, 100).QueryDatabase(context.Background(), db, nil)
	require.NoError(t, err)
	var got []string
	for _, r := range rows {
		got = append(got, notion.PlainText(r.Properties["Title"].Title))
	}
	assert.Equal(t, []string{"3", "1", "2"}, got)
}

func TestListChildren_Paginates(t *testing.T) {
	srv := notiontest.New(t)
	srv.PageSize = 2
	page := srv.AddPage(srv.Root(), "Home Page")
	for i := range 5 {
		srv.AddBlocks(page, notion.Paragraph(fmt.Sprintf("p%d", i)))
	}
	blocks, err := newClient(t, srv, 2).ListChildren(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, blocks, 5)
	for i, b := range blocks {
		assert.Equal(t, fmt.Sprintf("p%d", i), notion.PlainText(b.Paragraph.RichText))
	}
}

func TestClient_RejectedIsNotRetried(t *testing.T) {
	srv := notiontest.New(t)
	_, err := newClient(t, srv, 100).RetrieveDatabase(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, notion.IsRejected(err))
	var re *notion.RejectedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Equal(t, "object_not_found", re.Code)
	assert.Contains(t, re.Message, "missing")
	assert.Equal(t, 1, srv.Requests("GET /v1/databases/missing"))
}

func TestClient_TransientFailureIsRetried(t *testing.T) {
	srv := notiontest.New(t)
	page := srv.AddPage(srv.Root(), "Navbar Pages")
	srv.Fail("GET /v1/blocks/"+page, http.StatusTooManyRequests, 1)
	blocks, err := newClient(t, srv, 100).ListChildren(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, blocks)
	assert.Equal(t, 2, srv.Requests("GET /v1/blocks/"+page))
}

func TestClient_UnavailableAfterRetries(t *testing.T) {
	srv := notiontest.New(t)
	srv.Fail("GET /v1/blocks/", http.StatusServiceUnavailable, 10)
	_, err := newClient(t, srv, 100).ListChildren(context.Background(), srv.Root())
	require.Error(t, err)
	assert.True(t, notion.IsUnavailable(err))
	assert.False(t, notion.IsRejected(err))
	assert.Equal(t, 3, srv.Requests("GET /v1/blocks/"))
}

func TestClient_NetworkFailureIsUnavailable(t *testing.T) {
	srv := notiontest.New(t)
	cl := newClient(t, srv, 100)
	srv.Close()
	_, err := cl.ListChildren(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, notion.IsUnavailable(err))
}

func TestClient_BadTokenIsRejected(t *testing.T) {
	srv := notiontest.New(t)
	hc, err := fetch.New(fetch.Options{Timeout: time.Second})
	require.NoError(t, err)
	cl := notion.New(hc, notion.Options{BaseURL: srv.BaseURL(), Token: "wrong"})
	_, err = cl.ListChildren(context.Background(), srv.Root())
	var re *notion.RejectedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusUnauthorized, re.Status)
}

func TestClient_CreateDatabaseAndRows(t *testing.T) {
	srv := notiontest.New(t)
	cl := newClient(t, srv, 100)
	ctx := context.Background()

	db, err := cl.CreateDatabase(ctx, notion.CreateDatabaseRequest{
		Parent: notion.PageParent(srv.Root()),
		Title:  notion.Text("Config"),
		Properties: map[string]notion.PropertySchema{
			"Name":    {Type: notion.TypeTitle},
			"Value":   {Type: notion.TypeRichText},
			"Enabled": {Type: notion.TypeCheckbox},
			"Kind":    {Type: notion.TypeSelect, Select: &notion.SelectSchema{Options: []notion.SelectOption{{Name: "a"}}}},
			"Link":    {Type: notion.TypeURL},
			"Media":   {Type: notion.TypeFiles},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Config", notion.PlainText(db.Title))

	row, err := cl.CreatePage(ctx, notion.CreatePageRequest{
		Parent: notion.DatabaseParent(db.ID),
		Properties: map[string]notion.PropertyValue{
			"Name":    notion.TitleValue("site_title"),
			"Value":   notion.RichTextValue("Swan"),
			"Enabled": notion.CheckboxValue(false),
			"Kind":    notion.SelectValue("b"),
			"Media":   notion.FilesValue(notion.ExternalFile("logo", "https://example.com/logo.png")),
		},
		Children: []notion.Block{notion.Code("<b>x</b>", "html")},
	})
	require.NoError(t, err)

	_, err = cl.UpdatePage(ctx, row.ID, map[string]notion.PropertyValue{"Link": notion.URLValue("https://example.com")})
	require.NoError(t, err)

	rows, err := cl.QueryDatabase(ctx, db.ID, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	p := rows[0].Properties
	assert.Equal(t, "site_title", notion.PlainText(p["Name"].Title))
	assert.Equal(t, "Swan", notion.PlainText(p["Value"].RichText))
	assert.Equal(t, notion.TypeCheckbox, p["Enabled"].Type)
	assert.False(t, p["Enabled"].Checkbox)
	require.NotNil(t, p["Kind"].Select)
	assert.Equal(t, "b", p["Kind"].Select.Name)
	require.NotNil(t, p["Link"].URL)
	assert.Equal(t, "https://example.com", *p["Link"].URL)
	require.Len(t, p["Media"].Files, 1)
	assert.Equal(t, "https://example.com/logo.png", p["Media"].Files[0].URL())

	body, err := cl.ListChildren(ctx, row.ID)
	require.NoError(t, err)
	require.Len(t, body, 1)
	assert.Equal(t, "html", body[0].Code.Language)

	got, err := cl.RetrieveDatabase(ctx, db.ID)
	require.NoError(t, err)
	assert.Equal(t, notion.TypeSelect, got.Properties["Kind"].Type)
}

func TestClient_SchemaMismatchIsRejected(t *testing.T) {
	srv := notiontest.New(t)
	db := projectsDB(srv)
	_, err := newClient(t, srv, 100).CreatePage(context.Background(), notion.CreatePageRequest{
		Parent:     notion.DatabaseParent(db),
		Properties: map[string]notion.PropertyValue{"Missing": notion.RichTextValue("x")},
	})
	var re *notion.RejectedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "validation_error", re.Code)
	assert.Contains(t, re.Message, "Missing")
}

func TestClient_CreatePageAppendsOverflowChildren(t *testing.T) {
	srv := notiontest.New(t)
	cl := newClient(t, srv, 100)
	var blocks []notion.Block
	for i := range 130 {
		blocks = append(blocks, notion.Paragraph(fmt.Sprint(i)))
	}
	p, err := cl.CreatePage(context.Background(), notion.CreatePageRequest{
		Parent:     notion.PageParent(srv.Root()),
		Properties: map[string]notion.PropertyValue{"title": notion.TitleValue("Long")},
		Children:   blocks,
	})
	require.NoError(t, err)
	got, err := cl.ListChildren(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, got, 130)
	assert.Equal(t, "129", notion.PlainText(got[129].Paragraph.RichText))
	assert.Equal(t, 1, srv.Requests("PATCH /v1/blocks/"+p.ID))
}

func TestClient_UpdateDatabaseAddsProperty(t *testing.T) {
	srv := notiontest.New(t)
	db := projectsDB(srv)
	got, err := newClient(t, srv, 100).UpdateDatabase(context.Background(), db, notion.UpdateDatabaseRequest{
		Properties: map[string]notion.PropertySchema{"Slug": {Type: notion.TypeRichText}},
	})
	require.NoError(t, err)
	assert.Equal(t, notion.TypeRichText, got.Properties["Slug"].Type)
	assert.Equal(t, notion.TypeNumber, got.Properties["Order"].Type)
}

func TestText_SplitsLongContent(t *testing.T) {
	long := make([]rune, notion.MaxTextLength+10)
	for i := range long {
		long[i] = 'a'
	}
	rt := notion.Text(string(long))
	require.Len(t, rt, 2)
	assert.Equal(t, string(long), notion.PlainText(rt))
	assert.Empty(t, notion.Text(""))
}
