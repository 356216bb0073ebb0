package logx

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyZH_Labels(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "pretty", Locale: "zh-CN", Color: "never", Out: &buf})
	Infof("hello %s", "world")
	Warnf("warn")
	out := buf.String()
	assert.Contains(t, out, "[信息] hello world")
	assert.Contains(t, out, "[警告] warn")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Locale: "en", Color: "never", Out: &buf})
	Infof("should not print")
	Errorf("boom")
	out := buf.String()
	assert.NotContains(t, out, "should not print")
	assert.Contains(t, out, "[ERROR] boom")
}

func TestWith_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "info", Locale: "en", Color: "never", Out: &buf})
	With("container", "Home Page").WithGroup("field").Warn("skipped", "name", "view type")
	out := buf.String()
	assert.Contains(t, out, "container=\"Home Page\"")
	assert.Contains(t, out, "field.name=\"view type\"")
}

func TestFileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "swan.log")
	Init(Options{Level: "info", Locale: "en", Color: "always", File: path, Out: &buf})
	t.Cleanup(func() { _ = Close() })
	Infof("to file")
	require.NoError(t, Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[INFO] to file")
	assert.False(t, strings.Contains(string(b), "\x1b["), "file output must not contain colour codes")
}
