// Package logger 提供結構化日誌功能
package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New 建立日誌記錄器
//
// format 支援 text、json 與 tint（彩色終端輸出）；debug 級別附帶源碼位置。
func New(level, format string, w io.Writer) *slog.Logger {
	logLevel := ParseLevel(level)
	addSource := logLevel == slog.LevelDebug

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: addSource,
		})
	case "tint", "color":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      logLevel,
			AddSource:  addSource,
			TimeFormat: time.TimeOnly,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: addSource,
		})
	}

	return slog.New(handler)
}

// ParseLevel 解析日誌級別，無法識別時回傳 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard 丟棄所有輸出的記錄器（測試用）
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
