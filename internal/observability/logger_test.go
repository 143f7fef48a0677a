package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rahul/webpilot/internal/schemas"
	"github.com/rahul/webpilot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAudit_TagsEventType(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	Audit(zap.New(core), EventTypeChallenge, "challenge detected", zap.Int("subtask", 3))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "challenge", fields["event"])
	assert.Equal(t, int64(3), fields["subtask"])
}

func TestNewLogger_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "webpilot.jsonl")
	var console bytes.Buffer
	logger := newLogger(config.LoggerConfig{Level: "debug", Format: "json", File: path, MaxSize: 1}, zapcore.AddSync(&console))

	logger.Debug("hello", zap.String("k", "v"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "webpilot", entry["logger"])
	assert.Contains(t, console.String(), `"k":"v"`)
}

func TestNewLogger_BadLevelDefaultsToInfo(t *testing.T) {
	var console bytes.Buffer
	logger := newLogger(config.LoggerConfig{Level: "loud", Format: "console"}, zapcore.AddSync(&console))

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	PrintSummary(&buf, []schemas.ActionOutcome{
		schemas.Succeed(1, "navigate", nil),
		schemas.Fail(2, "click", schemas.NewFailure(schemas.ErrUnresolvedElement, "nothing")),
	})

	assert.Contains(t, buf.String(), "1/2 subtasks succeeded")
}

func TestPrintStep(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	out := schemas.Fail(2, "click", schemas.NewFailure(schemas.ErrUnresolvedElement, "nothing"))
	out.Details["url"] = "https://example.com"

	PrintStep(&buf, schemas.Subtask{ID: 2, Description: "нажать кнопку"}, out)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "✗ 2. нажать кнопку")
	assert.Contains(t, lines[1], "unresolved_element nothing")
	assert.Contains(t, lines[2], "url: https://example.com")
}
