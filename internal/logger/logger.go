// Package logger is the process-wide structured logger of bankd.
//
// It wraps log/slog with a coloured text handler for terminals and the slog
// JSON handler for log shipping. Connection handlers attach a LogContext to
// their context so that every *Ctx call carries the connection, user and
// trace of the session it was made for.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	mu      sync.RWMutex
	level   = new(slog.LevelVar)
	format  = FormatText
	out     io.Writer = os.Stdout
	color   bool
	file    io.Closer
	slogger *slog.Logger
)

func init() {
	color = isTerminal(os.Stdout.Fd())
	rebuild()
}

// rebuild swaps in a handler for the current settings. Callers hold mu.
func rebuild() {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		slogger = slog.New(slog.NewJSONHandler(out, opts))
		return
	}
	slogger = slog.New(newTextHandler(out, opts, color))
}

// Init applies cfg. Empty fields keep their current value. A file output is
// opened in append mode and never coloured.
func Init(cfg Config) error {
	var lvl slog.Level
	if cfg.Level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
			return fmt.Errorf("invalid log level %q", cfg.Level)
		}
	}
	f := strings.ToLower(cfg.Format)
	if f != "" && f != FormatText && f != FormatJSON {
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}

	mu.Lock()
	defer mu.Unlock()

	if cfg.Output != "" {
		w, closer, tty, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		if file != nil {
			_ = file.Close()
		}
		out, file, color = w, closer, tty
	}
	if cfg.Level != "" {
		level.Set(lvl)
	}
	if f != "" {
		format = f
	}
	rebuild()
	return nil
}

func openOutput(name string) (io.Writer, io.Closer, bool, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return os.Stdout, nil, isTerminal(os.Stdout.Fd()), nil
	case "stderr":
		return os.Stderr, nil, isTerminal(os.Stderr.Fd()), nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to open log file %q: %w", name, err)
	}
	return f, f, false, nil
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

func write(ctx context.Context, lvl slog.Level, msg string, args []any) {
	l := current()
	if !l.Enabled(ctx, lvl) {
		return
	}
	if lc := FromContext(ctx); lc != nil {
		args = append(lc.attrs(), args...)
	}
	l.Log(ctx, lvl, msg, args...)
}

// Debug logs at debug level: Debug("message", "key1", value1, ...).
func Debug(msg string, args ...any) { write(context.Background(), slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { write(context.Background(), slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { write(context.Background(), slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { write(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs at debug level, prefixed with the LogContext of ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) { write(ctx, slog.LevelDebug, msg, args) }

// InfoCtx logs at info level, prefixed with the LogContext of ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) { write(ctx, slog.LevelInfo, msg, args) }

// WarnCtx logs at warn level, prefixed with the LogContext of ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) { write(ctx, slog.LevelWarn, msg, args) }

// ErrorCtx logs at error level, prefixed with the LogContext of ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) { write(ctx, slog.LevelError, msg, args) }

// With returns a logger with args bound to every record.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}
