package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-swan/internal/assets"
	"go-swan/internal/config"
	"go-swan/internal/fetch"
	"go-swan/internal/logx"
	"go-swan/internal/notion"
	"go-swan/internal/store"
)

// app 为一次命令执行所需的远端客户端、素材下载器与状态库。
type app struct {
	cfg    *config.Config
	http   *fetch.Client
	api    *notion.Client
	assets *assets.Fetcher
	store  *store.SQLite
}

// newApp 按配置装配依赖；状态库打开失败只警告（不记录运行也不清理旧文件）。
func newApp(c *config.Config) (*app, error) {
	if err := c.RequireRemote(); err != nil {
		return nil, err
	}
	hc, err := fetch.New(fetch.Options{
		ProxyHTTP:  c.Proxy.HTTP,
		ProxyHTTPS: c.Proxy.HTTPS,
		Timeout:    c.Timeout(),
		Retry:      c.Concurrency.Retry,
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	a := &app{
		cfg:  c,
		http: hc,
		api: notion.New(hc, notion.Options{
			BaseURL:  c.Notion.BaseURL,
			Token:    c.Notion.APIKey,
			Version:  c.Notion.Version,
			PageSize: c.Notion.PageSize,
		}),
		assets: assets.New(hc, c.Paths.ImagesDir, c.Paths.ImagesURL),
	}
	if st, err := store.OpenSQLite(c.Database.DSN); err != nil {
		logx.Warnf("打开状态库失败，本次不记录运行：%s 错误=%v", c.Database.DSN, err)
	} else {
		a.store = st
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// signalContext 在 Ctrl-C / SIGTERM 时取消，进行中的条目写完后停止。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
