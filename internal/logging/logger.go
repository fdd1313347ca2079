// Package logging sets up structured logging for claudeye.
//
// All packages log through component loggers obtained from ForComponent.
// Those loggers resolve the global handler at log time, so package-level
// loggers created before Init pick up the real handler once Init runs.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names for structured logging.
const (
	CompMux        = "mux"
	CompVersions   = "versions"
	CompClassifier = "classifier"
	CompRegistry   = "registry"
	CompPoller     = "poller"
	CompFeed       = "feed"
	CompCLI        = "cli"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string
	// Format is "text" (default) or "json".
	Format string
	// File, when set, sends logs to a rotated file instead of stderr.
	File string
	// MaxSizeMB is the max size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep (default: 3).
	MaxBackups int
	// MaxAgeDays is the number of days to keep rotated files (default: 7).
	MaxAgeDays int
}

var (
	globalMu     sync.RWMutex
	globalLogger *slog.Logger
	fileWriter   *lumberjack.Logger
)

// Init configures the global logger. It may be called again to reconfigure.
func Init(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		if cfg.MaxSizeMB <= 0 {
			cfg.MaxSizeMB = 10
		}
		if cfg.MaxBackups <= 0 {
			cfg.MaxBackups = 3
		}
		if cfg.MaxAgeDays <= 0 {
			cfg.MaxAgeDays = 7
		}
		fileWriter = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = fileWriter
	}

	globalLogger = slog.New(newHandler(w, cfg))
}

func newHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the global logger. Before Init it logs warnings and
// errors to stderr.
func Logger() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return globalLogger
}

// ForComponent returns a logger tagged with the given component name.
func ForComponent(name string) *slog.Logger {
	return slog.New(&dynamicHandler{component: name})
}

// dynamicHandler delegates to the current global handler at log time.
type dynamicHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *dynamicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &dynamicHandler{component: h.component, attrs: newAttrs, group: h.group}
}

func (h *dynamicHandler) WithGroup(name string) slog.Handler {
	return &dynamicHandler{component: h.component, attrs: h.attrs, group: name}
}

// Shutdown closes the log file, if any, and resets to the default logger.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
	globalLogger = nil
}
