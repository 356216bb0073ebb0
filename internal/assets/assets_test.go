package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-swan/internal/fetch"
)

// 最小 PNG 文件头，足以被 mimetype 识别
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newFetcher(t *testing.T) (*Fetcher, string) {
	t.Helper()
	hc, err := fetch.New(fetch.Options{Timeout: 2 * time.Second, Backoff: time.Millisecond})
	require.NoError(t, err)
	dir := t.TempDir()
	return New(hc, dir, "/images"), dir
}

func TestFetch_WritesAndReturnsLocalPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	f, dir := newFetcher(t)
	var recorded Asset
	f.Record = func(a Asset, err error) {
		require.NoError(t, err)
		recorded = a
	}
	got := f.Fetch(context.Background(), srv.URL+"/a.png?sig=1", "projects-alpha.png")
	assert.Equal(t, "/images/projects-alpha.png", got)
	b, err := os.ReadFile(filepath.Join(dir, "projects-alpha.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, b)
	assert.Equal(t, "image/png", recorded.MIME)

	// 临时文件不残留
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetch_AlwaysRedownloads(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	f, _ := newFetcher(t)
	for range 2 {
		assert.Equal(t, "/images/x.png", f.Fetch(context.Background(), srv.URL+"/x.png", "x.png"))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_UnreachableReturnsOriginalURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.png"
	srv.Close()

	f, dir := newFetcher(t)
	var recErr error
	f.Record = func(_ Asset, err error) { recErr = err }
	assert.Equal(t, url, f.Fetch(context.Background(), url, "gone.png"))
	var de *DownloadError
	require.True(t, errors.As(recErr, &de))
	assert.Equal(t, "gone.png", de.File)
	_, err := os.Stat(filepath.Join(dir, "gone.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetch_RejectsHTMLPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>expired</body></html>"))
	}))
	defer srv.Close()

	f, _ := newFetcher(t)
	u := srv.URL + "/img.png"
	assert.Equal(t, u, f.Fetch(context.Background(), u, "img.png"))
	_, err := f.Download(context.Background(), u, "img.png")
	assert.True(t, errors.Is(err, errNotMedia))
}

func TestFetch_EmptyURL(t *testing.T) {
	f, _ := newFetcher(t)
	assert.Equal(t, "", f.Fetch(context.Background(), "", "x.png"))
}

func TestDownload_RejectsPathInFilename(t *testing.T) {
	f, _ := newFetcher(t)
	_, err := f.Download(context.Background(), "http://127.0.0.1/x.png", "../x.png")
	require.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "projects-alpha.png", Filename("projects", "alpha", "https://cdn.test/a/b.PNG?x=1"))
	assert.Equal(t, "content-abc.jpg", Filename("content", "abc", "https://cdn.test/a/b"))
	assert.Equal(t, "site-logo.webp", Filename("site", "logo", "https://cdn.test/logo.webp#frag"))
	assert.Equal(t, ".jpg", Ext("https://picsum.photos/id/1015/100/100"))
}

func TestItemFilename_DistinctAcrossCollections(t *testing.T) {
	const u = "https://cdn.test/cover.png"
	assert.Equal(t, "projects--alpha.png", ItemFilename("projects", "alpha", u))
	assert.NotEqual(t, ItemFilename("projects", "a-b", u), ItemFilename("projects-a", "b", u))
	// 与固定前缀的素材也不会重名
	assert.NotEqual(t, ItemFilename("site", "logo", u), Filename("site", "logo", u))
}

func TestWithRecorder_LeavesSharedFetcherUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	f, dir := newFetcher(t)
	var got []string
	run := f.WithRecorder(func(a Asset, err error) {
		require.NoError(t, err)
		got = append(got, a.File)
	})
	assert.Nil(t, f.Record)

	assert.Equal(t, "/images/a.png", run.Fetch(context.Background(), srv.URL+"/a.png", "a.png"))
	assert.Equal(t, "/images/b.png", f.Fetch(context.Background(), srv.URL+"/b.png", "b.png"))
	assert.Equal(t, []string{"a.png"}, got)
	assert.FileExists(t, filepath.Join(dir, "a.png"))
	assert.FileExists(t, filepath.Join(dir, "b.png"))
}
