// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。
// 凭据（API Key、根页面 ID）不写入 settings.yaml，由命令行层从环境变量或 .env 合并进来。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential 表示缺少远端凭据或根容器 ID，流水线必须立即失败。
var ErrMissingCredential = errors.New("missing remote credential")

type Config struct {
	Notion      Notion      `yaml:"NOTION"`
	Paths       Paths       `yaml:"PATHS"`
	Database    Database    `yaml:"DATABASE"`
	Concurrency Concurrency `yaml:"CONCURRENCY"`
	Proxy       Proxy       `yaml:"PROXY"`
	// TimeoutSeconds：单次远端请求超时
	TimeoutSeconds int    `yaml:"TIMEOUT_SECONDS"`
	PruneStale     *bool  `yaml:"PRUNE_STALE"`
	LogLevel       string `yaml:"LOG_LEVEL"`
	LogFormat      string `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale      string `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor       string `yaml:"LOG_COLOR"`  // auto|always|never
	LogFile        string `yaml:"LOG_FILE"`   // 可选，按大小轮转
}

type Notion struct {
	// APIKey 与 RootPageID 通常来自环境变量 NOTION_API_KEY / ROOT_PAGE_ID
	APIKey     string `yaml:"api_key"`
	RootPageID string `yaml:"root_page_id"`
	BaseURL    string `yaml:"base_url"`
	Version    string `yaml:"version"`
	PageSize   int    `yaml:"page_size"`
}

type Paths struct {
	// StateDir 为本地内容缓存根目录，ContentDir/DataDir 为空时基于它推导
	StateDir   string `yaml:"state_dir"`
	ContentDir string `yaml:"content_dir"`
	DataDir    string `yaml:"data_dir"`
	ImagesDir  string `yaml:"images_dir"`
	ImagesURL  string `yaml:"images_url"`
}

type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`
}

type Concurrency struct {
	Fetch int `yaml:"fetch"`
	Retry int `yaml:"retry"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// New 返回填充默认值后的配置，用于找不到 settings.yaml 的场景。
func New() *Config {
	c := &Config{Concurrency: Concurrency{Retry: -1}}
	_ = c.Validate()
	return c
}

func Load(path string) (*Config, error) {
	// Load 从文件读取 YAML 并反序列化为 Config，同时进行基础校验与默认值填充。
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c := Config{Concurrency: Concurrency{Retry: -1}}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
	if c.Notion.PageSize < 0 || c.Notion.PageSize > 100 {
		return errors.New("NOTION.page_size must be within 0..100")
	}
	if c.TimeoutSeconds < 0 {
		return errors.New("TIMEOUT_SECONDS must be >= 0")
	}
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = "https://api.notion.com/v1"
	}
	if c.Notion.Version == "" {
		c.Notion.Version = "2022-06-28"
	}
	if c.Notion.PageSize == 0 {
		c.Notion.PageSize = 100
	}
	if c.Paths.StateDir == "" {
		c.Paths.StateDir = "notion_state"
	}
	if c.Paths.ContentDir == "" {
		c.Paths.ContentDir = filepath.Join(c.Paths.StateDir, "content")
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = filepath.Join(c.Paths.StateDir, "data")
	}
	if c.Paths.ImagesDir == "" {
		c.Paths.ImagesDir = filepath.Join("public", "images")
	}
	if c.Paths.ImagesURL == "" {
		c.Paths.ImagesURL = "/images"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(c.Paths.StateDir, ".sync.db")
	}
	if c.Concurrency.Fetch <= 0 {
		c.Concurrency.Fetch = 4
	}
	// retry 未配置时为 -1，显式写 0 表示不重试
	if c.Concurrency.Retry < 0 {
		c.Concurrency.Retry = 3
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	if c.PruneStale == nil {
		on := true
		c.PruneStale = &on
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

// RequireRemote 校验远端凭据，seed/sync 执行前调用，缺失时快速失败。
func (c *Config) RequireRemote() error {
	if c.Notion.APIKey == "" {
		return fmt.Errorf("%w: NOTION_API_KEY is not set", ErrMissingCredential)
	}
	if c.Notion.RootPageID == "" {
		return fmt.Errorf("%w: ROOT_PAGE_ID is not set", ErrMissingCredential)
	}
	return nil
}

// Timeout 返回请求超时时长。
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Prune 表示同步成功后是否清理上一轮遗留的过期文件。
func (c *Config) Prune() bool {
	return c.PruneStale == nil || *c.PruneStale
}
