// Package logger is the process-wide structured logger.
//
// It wraps log/slog behind package-level functions so that protocol code
// can log without threading a logger through every call. Output goes to
// stdout, stderr or a file, as colored text (when the output is a
// terminal), plain text, or JSON.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR, or a numeric verbosity 0-9
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stdout
	closer   io.Closer
	useColor bool
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store("text")
	useColor = isTerminal(os.Stdout.Fd())
	reconfigure()
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel accepts a level name or a numeric verbosity as used by the
// classic ndd configuration: 0 is errors only, 1 adds warnings, 2-3 add
// informational messages, and 4 or more enables debug output.
func ParseLevel(s string) (Level, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	switch {
	case n == 0:
		return LevelError, true
	case n == 1:
		return LevelWarn, true
	case n <= 3:
		return LevelInfo, true
	default:
		return LevelDebug, true
	}
}

func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: Level(currentLevel.Load()).slog()}

	var h slog.Handler
	if format, _ := currentFormat.Load().(string); format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init applies cfg. An empty field keeps the current setting.
func Init(cfg Config) error {
	if cfg.Output != "" {
		w, c, color, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}

		mu.Lock()
		if closer != nil {
			_ = closer.Close()
		}
		output, closer, useColor = w, c, color
		mu.Unlock()
	}

	if cfg.Level != "" {
		if _, ok := ParseLevel(cfg.Level); !ok {
			return fmt.Errorf("invalid log level %q", cfg.Level)
		}
		SetLevel(cfg.Level)
	}

	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}

	reconfigure()
	return nil
}

func openOutput(name string) (io.Writer, io.Closer, bool, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return os.Stdout, nil, isTerminal(os.Stdout.Fd()), nil
	case "stderr":
		return os.Stderr, nil, isTerminal(os.Stderr.Fd()), nil
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to open log file %q: %w", name, err)
	}
	return f, f, false, nil
}

// InitWithWriter directs output to w. Used by tests.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	mu.Lock()
	output = w
	useColor = enableColor
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
	reconfigure()
}

// SetLevel sets the minimum level. Invalid values are ignored.
func SetLevel(level string) {
	l, ok := ParseLevel(level)
	if !ok {
		return
	}
	currentLevel.Store(int32(l))
	reconfigure()
}

// GetLevel returns the minimum level.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// SetFormat switches between "text" and "json". Invalid values are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	reconfigure()
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

func enabled(l Level) bool {
	return l >= Level(currentLevel.Load())
}

// Debug logs at debug level: Debug("msg", "key", value, ...).
func Debug(msg string, args ...any) {
	if enabled(LevelDebug) {
		getLogger().Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if enabled(LevelInfo) {
		getLogger().Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if enabled(LevelWarn) {
		getLogger().Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	getLogger().Error(msg, args...)
}

// DebugCtx logs at debug level, prefixing the fields of the LogContext
// stored in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelDebug) {
		getLogger().Debug(msg, withContext(ctx, args)...)
	}
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelInfo) {
		getLogger().Info(msg, withContext(ctx, args)...)
	}
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	if enabled(LevelWarn) {
		getLogger().Warn(msg, withContext(ctx, args)...)
	}
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Error(msg, withContext(ctx, args)...)
}

func withContext(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}
	return append(lc.fields(), args...)
}

// With returns a logger with pre-bound attributes.
func With(args ...any) *slog.Logger {
	return getLogger().With(args...)
}

// Duration returns the time elapsed since start in milliseconds.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
