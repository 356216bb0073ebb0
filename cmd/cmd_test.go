package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-swan/internal/config"
	"go-swan/internal/export"
	"go-swan/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cfgFile, envFile, rootID, logLevel = defaultConfig, ".env", "", ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeSettings(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.yaml")
	body := "PATHS:\n  state_dir: " + filepath.Join(dir, "state") + "\nLOG_LEVEL: none\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInitializeConfig_EnvFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "creds.env")
	require.NoError(t, os.WriteFile(env, []byte("NOTION_API_KEY=secret_abc\nROOT_PAGE_ID=page-1\n"), 0o644))
	t.Setenv("NOTION_API_KEY", "")
	t.Setenv("ROOT_PAGE_ID", "")

	cfgFile, envFile, rootID, logLevel = "", env, "", "none"
	t.Cleanup(func() { cfgFile, envFile, rootID, logLevel = defaultConfig, ".env", "", "" })
	require.NoError(t, initializeConfig())
	assert.Equal(t, "secret_abc", cfg.Notion.APIKey)
	assert.Equal(t, "page-1", cfg.Notion.RootPageID)
	assert.NoError(t, cfg.RequireRemote())

	rootID = "page-2"
	require.NoError(t, initializeConfig())
	assert.Equal(t, "page-2", cfg.Notion.RootPageID)
}

func TestInitializeConfig_ProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("NOTION_API_KEY=from_file\n"), 0o644))
	t.Setenv("NOTION_API_KEY", "from_env")
	t.Setenv("ROOT_PAGE_ID", "")

	cfgFile, envFile, rootID, logLevel = "", env, "", "none"
	t.Cleanup(func() { cfgFile, envFile, rootID, logLevel = defaultConfig, ".env", "", "" })
	require.NoError(t, initializeConfig())
	assert.Equal(t, "from_env", cfg.Notion.APIKey)
	assert.ErrorIs(t, cfg.RequireRemote(), config.ErrMissingCredential)
}

func TestSync_MissingCredentialFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NOTION_API_KEY", "")
	t.Setenv("ROOT_PAGE_ID", "")
	_, err := execute(t, "sync", "--config", writeSettings(t, dir), "--env-file", filepath.Join(dir, "none.env"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestShow_ListsContent(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir)
	state := filepath.Join(dir, "state")
	require.NoError(t, export.JSON(filepath.Join(state, "data", "home.json"), model.DataFile{Sections: []model.Section{
		{Type: "info_section", ID: "a", Title: "Hello", Enabled: true},
	}}))
	for _, it := range []model.Item{
		{Slug: "beta", Title: "Beta", Collection: "projects", Order: 2},
		{Slug: "alpha", Title: "Alpha", Collection: "projects", Order: 1},
	} {
		require.NoError(t, export.Markdown(filepath.Join(state, "content", "projects", it.Slug+".md"), it, ""))
	}

	out, err := execute(t, "show", "--config", settings, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "home: 1 sections (1 enabled)")
	assert.Contains(t, out, "projects")
	assert.Contains(t, out, "2 items")

	out, err = execute(t, "show", "projects", "--config", settings, "--env-file", "")
	require.NoError(t, err)
	assert.Regexp(t, `(?s)alpha\s+1\s+.*Alpha.*beta\s+2\s+.*Beta`, out)
}
