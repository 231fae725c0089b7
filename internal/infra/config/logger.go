package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger は構造化ロガーを初期化する。
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Observability.LogLevel),
	}

	if cfg.App.Environment == "production" || cfg.App.Environment == "staging" {
		// JSON フォーマット
		handler = slog.NewJSONHandler(w, opts)
	} else {
		// テキストフォーマット（開発用）
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("tier", cfg.App.Tier),
		slog.String("environment", cfg.App.Environment),
	)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
