package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		json   bool
	}{
		{"json", FormatJSON, true},
		{"text", FormatText, false},
		{"unknown falls back to text", Format("xml"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(Config{Level: slog.LevelInfo, Format: tt.format, Output: &buf}).
				Info("installed", "provider", "claude", "item", "planner")

			var parsed map[string]any
			err := json.Unmarshal(buf.Bytes(), &parsed)
			if tt.json {
				require.NoError(t, err, buf.String())
				assert.Equal(t, "installed", parsed["msg"])
				assert.Equal(t, "claude", parsed["provider"])
				return
			}
			assert.Error(t, err)
			assert.Contains(t, buf.String(), "installed provider=claude item=planner")
		})
	}
}

// Verbosity is the -v count; CK_DEBUG maps to 2 and 3.
func TestLevelFromVerbosity_Filtering(t *testing.T) {
	tests := []struct {
		verbosity int
		want      slog.Level
		shown     []string
	}{
		{0, slog.LevelWarn, []string{"warn", "error"}},
		{1, slog.LevelInfo, []string{"info", "warn", "error"}},
		{2, slog.LevelDebug, []string{"debug", "info", "warn", "error"}},
		{3, LevelTrace, []string{"trace", "debug", "info", "warn", "error"}},
		{7, LevelTrace, []string{"trace", "debug", "info", "warn", "error"}},
	}
	for _, tt := range tests {
		level := LevelFromVerbosity(tt.verbosity)
		assert.Equal(t, tt.want, level, "verbosity %d", tt.verbosity)

		var buf bytes.Buffer
		logger := New(Config{Level: level, Format: FormatText, Output: &buf})
		logger.Log(t.Context(), LevelTrace, "trace")
		logger.Debug("debug")
		logger.Info("info")
		logger.Warn("warn")
		logger.Error("error")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, len(tt.shown), "verbosity %d: %q", tt.verbosity, buf.String())
		for i, msg := range tt.shown {
			assert.True(t, strings.HasSuffix(lines[i], " "+msg), "line %q", lines[i])
		}
	}
}

func TestDefault_WarnsOnly(t *testing.T) {
	logger := Default()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
}

func TestNewDiscard(t *testing.T) {
	logger := NewDiscard()
	require.NotNil(t, logger)
	logger.Error("dropped", "path", "/tmp/x")
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf}).With("scope", "project")

	FromContext(NewContext(t.Context(), logger)).Info("plan built")
	assert.Contains(t, buf.String(), "plan built scope=project")

	assert.Same(t, slog.Default(), FromContext(t.Context()))
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	logger := NewDiscard()
	assert.Same(t, logger, OrDiscard(logger))
}

func TestForTest_TraceEnabled(t *testing.T) {
	logger := ForTest(t)
	assert.True(t, logger.Enabled(t.Context(), LevelTrace))
	logger.Log(t.Context(), LevelTrace, "hashed", "path", "agents/planner.md")
}

func TestTestWriter_TrimsNewline(t *testing.T) {
	w := &testWriter{t: t}
	n, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

// The --log-file setup: terminal text at the chosen level, plus a JSON
// file that keeps everything down to debug with full checksums.
func TestMultiHandler_LogFile(t *testing.T) {
	var term, file bytes.Buffer
	h := NewMultiHandler(
		NewHandler(&term, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With("scope", "project")
	sum := strings.Repeat("c0", 32)

	logger.Debug("probed", "path", "a.md", "checksum", sum)
	logger.Warn("conflict", "path", "b.md", "checksum", sum)

	assert.True(t, h.Enabled(t.Context(), slog.LevelDebug))
	assert.NotContains(t, term.String(), "probed")
	assert.Contains(t, term.String(), "conflict")
	assert.Contains(t, term.String(), "scope=project")
	assert.Contains(t, term.String(), "checksum="+sum[:12])
	assert.NotContains(t, term.String(), sum)

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "project", rec["scope"])
		assert.Equal(t, sum, rec["checksum"])
	}
}

func TestMultiHandler_WithGroup(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)
	slog.New(h).WithGroup("action").Info("applied", "item", "planner")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		assert.Contains(t, buf.String(), `"action":{"item":"planner"}`)
	}
}
