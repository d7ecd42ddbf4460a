package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/watanabe-lab/honestrf/pkg/errors"
)

func TestErrFmtHandlerAttachesStacktrace(t *testing.T) {
	var buf bytes.Buffer
	h := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(h)

	err := errors.NewValidationError("mtry", "cannot be set to 0", 0)
	logger.Error("validation failed", ErrAttr(err))

	var record map[string]any
	if jsonErr := json.Unmarshal(buf.Bytes(), &record); jsonErr != nil {
		t.Fatalf("log output is not JSON: %v", jsonErr)
	}
	if _, ok := record[ErrAttrKey]; !ok {
		t.Error("record is missing the error attribute")
	}
	if st, ok := record[StacktraceAttrKey].(string); !ok || st == "" {
		t.Error("record is missing the extracted stacktrace")
	}
}

func TestErrFmtHandlerWithoutError(t *testing.T) {
	var buf bytes.Buffer
	h := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil))
	slog.New(h).Info("plain record", "k", "v")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if _, ok := record[StacktraceAttrKey]; ok {
		t.Error("stacktrace attached to a record without an error")
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := newSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	child := base.With(ComponentKey, "forest")
	child.Info("fitted", TreeCountKey, 10)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record[ComponentKey] != "forest" {
		t.Errorf("record[%q] = %v, want forest", ComponentKey, record[ComponentKey])
	}
	if record[TreeCountKey] != float64(10) {
		t.Errorf("record[%q] = %v, want 10", TreeCountKey, record[TreeCountKey])
	}
}

func TestDefaultLogger(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil before any setup")
	}
	named := GetLoggerWithName("tree")
	if named == nil {
		t.Fatal("GetLoggerWithName() returned nil")
	}
	if !named.Enabled(context.Background(), LevelError) {
		t.Error("default logger should emit at error level")
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(2), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}
