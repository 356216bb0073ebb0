package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-swan/internal/model"
)

func TestJSON_IndentedAndAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "site.json")
	require.NoError(t, JSON(path, model.DataFile{
		Info:     map[string]string{"title": "Swan", "logo": "/images/site-logo.png"},
		Sections: []model.Section{},
	}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"info\": {\n    \"logo\": \"/images/site-logo.png\",\n    \"title\": \"Swan\"\n  },\n  \"sections\": []\n}\n", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRenderMarkdown(t *testing.T) {
	b, err := RenderMarkdown(model.NavbarPage{Title: "About", Slug: "about", Date: "2024-01-01T00:00:01.000Z", Menu: "main"}, "# About Me\n")
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: About\nslug: about\ndate: \"2024-01-01T00:00:01.000Z\"\nmenu: main\n---\n\n# About Me\n", string(b))
}

func TestMarkdown_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.md")
	require.NoError(t, Markdown(path, map[string]string{"title": "v1"}, "one"))
	require.NoError(t, Markdown(path, map[string]string{"title": "v2"}, "two"))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: v2\n---\n\ntwo", string(b))
}
