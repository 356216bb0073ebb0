// 包 logx 是对标准库 slog 的薄封装：
// - 支持级别/格式/语言/颜色配置
// - 可选写入轮转日志文件（lumberjack），与终端输出同时进行
// - 通过 Debugf/Infof/Warnf/Errorf 暴露；需要结构化字段时用 With
package logx

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 为日志初始化参数，字段与 settings.yaml 的 LOG_* 对应。
type Options struct {
	Level  string
	Format string // pretty|json|text
	Locale string // zh-CN|en
	Color  string // auto|always|never
	File   string // 为空则只写 Stdout
	// Out 仅用于测试注入，默认 os.Stdout
	Out io.Writer
}

var rotator *lumberjack.Logger

// Init 根据 Options 初始化全局日志器。
// 写文件时颜色强制关闭，避免 ANSI 码落入日志文件。
func Init(o Options) {
	lv := parseSlogLevel(o.Level)
	out := o.Out
	if out == nil {
		out = os.Stdout
	}
	colorMode := o.Color
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
	if strings.TrimSpace(o.File) != "" {
		rotator = &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30,
		}
		out = io.MultiWriter(out, rotator)
		colorMode = "never"
	}
	opts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(o.Format)) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "pretty", "":
		handler = NewPrettyHandler(out, lv, o.Locale, colorMode)
	default:
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Close 关闭日志文件（若有）。
func Close() error {
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

// parseSlogLevel 将字符串级别解析为 slog.Leveler。
func parseSlogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		var l slog.Level = 100
		return l
	default:
		return slog.LevelInfo
	}
}

// 便捷函数：格式化并按级别输出
func Debugf(format string, v ...any) { slog.Debug(sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(sprintf(format, v...)) }

// With 返回携带固定属性的 logger，便于在一次同步中串联容器标题/字段名等上下文。
func With(args ...any) *slog.Logger { return slog.Default().With(args...) }
