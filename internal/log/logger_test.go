package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentPipeline, Output: &buf})
	l.Info("run finished", FieldRunID, "abc", FieldCount, 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentPipeline || rec[FieldRunID] != "abc" {
		t.Fatalf("record = %v", rec)
	}
}

func TestWithComponentAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Component: ComponentApp, Output: &buf}).WithComponent(ComponentStorage)
	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("level filtering failed: %q", out)
	}
	if !strings.Contains(out, "component=storage") || l.Component() != ComponentStorage {
		t.Fatalf("component missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	f := NewFields().WithRunID("r1").WithOperation(OpClassify).WithError(errors.New("boom")).WithError(nil)
	got := f.ToSlice()
	want := []any{FieldError, "boom", FieldOperation, OpClassify, FieldRunID, "r1"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard().WithComponent(ComponentIngest)
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatalf("logger not recovered from context")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("fallback logger should use the unknown component")
	}
}
