// Package log provides the engine's structured logging: a small slog
// wrapper with a terminal-aware text handler. Self-contained rather than
// wrapping a node-wide logger, since there is no host node to share one
// with here.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging interface the rest of the engine depends on. It is
// satisfied by the slog-backed loggers this package builds (New, NewJSON,
// NewRotatingFile); a bare *slog.Logger lacks Trace and does not satisfy it.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LevelTrace sits below slog's own Debug, for very chatty per-transaction
// logging.
const LevelTrace = slog.Level(-8)

type slogLogger struct {
	*slog.Logger
}

func (l slogLogger) Trace(msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

var defaultLogger Logger = New(os.Stderr, slog.LevelInfo)

// Default returns the process-wide default logger.
func Default() Logger { return defaultLogger }

// SetDefault replaces the process-wide default logger.
func SetDefault(l Logger) { defaultLogger = l }

// New builds a Logger writing to w at the given minimum level. When w is a
// terminal (detected with go-isatty), w is wrapped with go-colorable;
// otherwise w is used as is. Either way the handler is slog's plain text
// handler, which emits no color codes.
func New(w io.Writer, level slog.Leveler) Logger {
	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = colorable.NewColorable(f)
	}
	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slogLogger{slog.New(h)}
}

// NewJSON builds a Logger emitting structured JSON lines, suitable for
// piping into a log aggregator.
func NewJSON(w io.Writer, level slog.Leveler) Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slogLogger{slog.New(h)}
}

// RotatingFileConfig configures a size/age-rotated log file for a
// long-lived run of the CLI or an embedded server, instead of a single
// ever-growing file.
type RotatingFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewRotatingFile builds a JSON Logger writing to a lumberjack-rotated
// file. Rotation defaults (100MB/3 backups/28 days) apply to any zero
// field.
func NewRotatingFile(cfg RotatingFileConfig, level slog.Leveler) Logger {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 28
	}
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return NewJSON(w, level)
}
