package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel разбирает уровень логирования.
// Возможные значения: DEBUG, INFO, WARN, ERROR (регистр не важен).
// По умолчанию: INFO
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevel определяет уровень логирования из переменной окружения LOG_LEVEL.
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// LogOptions — параметры логгера. Пустые поля берутся из окружения.
type LogOptions struct {
	// Level — DEBUG, INFO, WARN, ERROR. Если пусто — LOG_LEVEL.
	Level string

	// Format — "json" или "text". Если пусто — LOG_FORMAT, затем json.
	Format string

	// Output — куда писать (default: os.Stderr).
	Output io.Writer
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода:
//   - "json" (по умолчанию) — JSON формат для production
//   - "text" — человекочитаемый формат для разработки
func SetupLogger(opts LogOptions) *slog.Logger {
	level := LogLevel()
	if opts.Level != "" {
		level = ParseLevel(opts.Level)
	}

	format := opts.Format
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithTask возвращает логгер с добавленным именем задачи.
func WithTask(logger *slog.Logger, task string) *slog.Logger {
	return logger.With("task", task)
}
