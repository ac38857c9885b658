package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewCycleID(t *testing.T) {
	id := NewCycleID()
	if len(id) != 8 {
		t.Errorf("NewCycleID() length = %d, want 8", len(id))
	}
	if id2 := NewCycleID(); id == id2 {
		t.Errorf("NewCycleID() generated duplicate IDs: %s", id)
	}
}

func TestCycleIDContext(t *testing.T) {
	ctx := context.Background()
	if got := CycleID(ctx); got != "" {
		t.Errorf("CycleID(empty context) = %q, want empty string", got)
	}
	ctx = WithCycleID(ctx, "test1234")
	if got := CycleID(ctx); got != "test1234" {
		t.Errorf("CycleID() = %q, want %q", got, "test1234")
	}
}

func TestStartCycle(t *testing.T) {
	ctx := StartCycle(context.Background(), "sync")
	if CycleID(ctx) == "" {
		t.Error("expected a cycle id")
	}
	if got := Component(ctx); got != "sync" {
		t.Errorf("Component() = %q, want sync", got)
	}
}

func TestContextHandlerAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithComponent(WithCycleID(context.Background(), "abcd0001"), "notify")
	logger.InfoContext(ctx, "tick", "fired", 2)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if rec["cycle_id"] != "abcd0001" {
		t.Errorf("cycle_id = %v", rec["cycle_id"])
	}
	if rec["component"] != "notify" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["fired"] != float64(2) {
		t.Errorf("fired = %v", rec["fired"])
	}
}

func TestContextHandlerWithAttrsKeepsEnrichment(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("svc", "calnotice")

	logger.InfoContext(WithCycleID(context.Background(), "ffff0000"), "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["cycle_id"] != "ffff0000" || rec["svc"] != "calnotice" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestContextHandlerKeepsExplicitComponent(t *testing.T) {
	ctx := WithComponent(context.Background(), "sync")
	tests := []struct {
		name string
		log  func(l *slog.Logger)
		want string
	}{
		{"from context", func(l *slog.Logger) { l.InfoContext(ctx, "m") }, "sync"},
		{"logger attr", func(l *slog.Logger) { l.With("component", "token").InfoContext(ctx, "m") }, "token"},
		{"record attr", func(l *slog.Logger) { l.InfoContext(ctx, "m", "component", "console") }, "console"},
		{"grouped attr", func(l *slog.Logger) { l.WithGroup("g").With("component", "x").InfoContext(ctx, "m") }, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))))

			line := buf.String()
			if n := strings.Count(line, `"component":`); n != 1 {
				t.Fatalf("component appears %d times: %s", n, line)
			}
			if !strings.Contains(line, `"component":"`+tt.want+`"`) {
				t.Fatalf("want component %q: %s", tt.want, line)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "", want: slog.LevelInfo},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupRejectsUnknownFormat(t *testing.T) {
	if _, err := Setup(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
