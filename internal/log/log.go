// Package log provides structured logging for go-caddy.
// It wraps slog with sensible defaults and per-component debug switches.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component names with their own debug switch.
const (
	ComponentSonic   = "sonic"
	ComponentWeather = "weather"
	ComponentGeo     = "geo"
	ComponentCourse  = "course"
	ComponentScoring = "scoring"
	ComponentAudio   = "audio"
)

var (
	logger *slog.Logger
	once   sync.Once

	mu    sync.RWMutex
	debug bool
	flags = map[string]bool{}
)

// Options controls logger initialization.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// Debug enables per-component debug output for the components in Components.
	Debug bool

	// Components maps component name to its debug switch.
	Components map[string]bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	Setup(Options{Level: level})
}

// Setup initializes the global logger once from opts.
func Setup(opts Options) {
	once.Do(func() {
		out := opts.Output
		if out == nil {
			out = os.Stdout
		}

		lvl := parseLevel(opts.Level)
		if opts.Debug {
			lvl = slog.LevelDebug
		}

		hopts := &slog.HandlerOptions{Level: lvl}

		// Use JSON in production, text in development
		var h slog.Handler
		if os.Getenv("GO_ENV") == "production" {
			h = slog.NewJSONHandler(out, hopts)
		} else {
			h = slog.NewTextHandler(out, hopts)
		}
		logger = slog.New(h)
		slog.SetDefault(logger)

		SetDebug(opts.Debug, opts.Components)
	})
}

// SetDebug replaces the debug switches. Safe to call at any time.
func SetDebug(enabled bool, components map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = enabled
	flags = make(map[string]bool, len(components))
	for k, v := range components {
		flags[k] = v
	}
}

// DebugEnabled reports whether debug output is on for component.
func DebugEnabled(component string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return debug && flags[component]
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// For returns a logger tagged with component. Debug records pass only when
// the component's debug switch is on; otherwise the floor is warn.
func For(component string) *slog.Logger {
	return slog.New(&componentHandler{
		inner:     L().Handler(),
		component: component,
	}).With("component", component)
}

// componentHandler gates records on the per-component switch.
type componentHandler struct {
	inner     slog.Handler
	component string
}

func (h *componentHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	if lvl < slog.LevelWarn && !DebugEnabled(h.component) {
		return false
	}
	return h.inner.Enabled(ctx, lvl)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &componentHandler{inner: h.inner.WithAttrs(attrs), component: h.component}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{inner: h.inner.WithGroup(name), component: h.component}
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
