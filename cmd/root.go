// 包 cmd 为 swan 命令行：
//   - settings.yaml 提供路径/并发/日志等配置，找不到时使用默认值
//   - 凭据 NOTION_API_KEY / ROOT_PAGE_ID 来自环境变量或 .env（viper 合并），--root 可覆盖
//   - seed / sync / show 三个子命令
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-swan/internal/config"
	"go-swan/internal/logx"
)

var (
	cfgFile  string
	envFile  string
	rootID   string
	logLevel string

	cfg *config.Config
)

const defaultConfig = "settings.yaml"

var rootCmd = &cobra.Command{
	Use:   "swan",
	Short: "Sync a workspace site into local content files",
	Long: `swan keeps a block/database workspace and a local content directory in step:
seed bootstraps an empty workspace root from a site definition, sync pulls
the workspace back into JSON data files, markdown items and downloaded media.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logx.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfig, "path to settings.yaml (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with NOTION_API_KEY / ROOT_PAGE_ID (optional)")
	rootCmd.PersistentFlags().StringVar(&rootID, "root", "", "root page id, overrides ROOT_PAGE_ID")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error|none, overrides LOG_LEVEL")
}

func initializeConfig() error {
	// 1) settings.yaml：为空或默认路径不存在时使用默认值，其它路径不存在时报错
	var err error
	if cfgFile == "" {
		cfg = config.New()
	} else if _, statErr := os.Stat(cfgFile); statErr == nil {
		if cfg, err = config.Load(cfgFile); err != nil {
			return err
		}
	} else if cfgFile != defaultConfig {
		return fmt.Errorf("config file %s: %w", cfgFile, statErr)
	} else {
		cfg = config.New()
	}

	// 2) 凭据：环境变量优先于 .env
	v := viper.New()
	v.AutomaticEnv()
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("read env file %s: %w", envFile, err)
			}
		}
	}
	if s := v.GetString("NOTION_API_KEY"); s != "" {
		cfg.Notion.APIKey = s
	}
	if s := v.GetString("ROOT_PAGE_ID"); s != "" {
		cfg.Notion.RootPageID = s
	}
	if s := v.GetString("LOG_LEVEL"); s != "" {
		cfg.LogLevel = s
	}
	if rootID != "" {
		cfg.Notion.RootPageID = rootID
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// 3) 日志
	logx.Init(logx.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Locale: cfg.LogLocale,
		Color:  cfg.LogColor,
		File:   cfg.LogFile,
	})
	return nil
}
