package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestComponentHandlerGatesDebug(t *testing.T) {
	defer SetDebug(false, nil)

	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	l := slog.New(&componentHandler{inner: inner, component: ComponentWeather})

	SetDebug(true, map[string]bool{ComponentScoring: true})
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info leaked for disabled component: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %s", out)
	}

	buf.Reset()
	SetDebug(true, map[string]bool{ComponentWeather: true})
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug record missing after enabling component: %s", buf.String())
	}

	buf.Reset()
	SetDebug(false, map[string]bool{ComponentWeather: true})
	l.Debug("global off")
	if buf.Len() != 0 {
		t.Errorf("debug should require the global switch, got %s", buf.String())
	}
}

func TestDebugEnabled(t *testing.T) {
	defer SetDebug(false, nil)

	SetDebug(true, map[string]bool{ComponentSonic: true, ComponentGeo: false})
	if !DebugEnabled(ComponentSonic) {
		t.Error("sonic should be enabled")
	}
	if DebugEnabled(ComponentGeo) {
		t.Error("geo should be disabled")
	}
	if DebugEnabled("unknown") {
		t.Error("unknown components default to disabled")
	}
}
