package store

import (
	"context"
	"testing"

	"github.com/rahul/webpilot/internal/agent"
	"github.com/rahul/webpilot/internal/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *HistoryStore {
	t.Helper()
	h, err := NewHistoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryStore_RecordsRun(t *testing.T) {
	ctx := context.Background()
	h := newStore(t)
	log := agent.NewContextLog(zap.NewNop(), h)

	plan := agent.FallbackPlan("рецепт борща")
	log.Begin(ctx, "рецепт борща", plan)

	ok := schemas.Succeed(1, "navigate", map[string]any{"url": "https://yandex.ru", "content_length": 1024})
	failed := schemas.Fail(2, "type", schemas.NewFailure(schemas.ErrEmptyInput, "no text"))
	log.Append(ctx, plan.Subtasks[0], ok)
	log.Append(ctx, plan.Subtasks[1], failed)
	log.End(ctx, []schemas.ActionOutcome{ok, failed})

	runs, err := h.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, log.SessionID, runs[0].SessionID)
	assert.Equal(t, "Найти информацию: рецепт борща", runs[0].Goal)
	assert.Equal(t, 1, runs[0].Succeeded)
	assert.Equal(t, 2, runs[0].Subtasks)
	require.NotNil(t, runs[0].FinishedAt)
	assert.False(t, runs[0].StartedAt.IsZero())

	actions, err := h.Actions(ctx, log.SessionID)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, 1, actions[0].Seq)
	assert.True(t, actions[0].Succeeded)
	assert.Equal(t, "navigate", actions[0].Capability)
	assert.Equal(t, "https://yandex.ru", actions[0].Details["url"])
	assert.Equal(t, float64(1024), actions[0].Details["content_length"])

	assert.False(t, actions[1].Succeeded)
	assert.Equal(t, string(schemas.ErrEmptyInput), actions[1].ErrorKind)
	assert.Equal(t, "no text", actions[1].Error)
}

func TestHistoryStore_RejectsUnencodableDetails(t *testing.T) {
	h := newStore(t)
	out := schemas.Succeed(1, "read", map[string]any{"bad": make(chan int)})

	err := h.Record(context.Background(), agent.Entry{SessionID: "s", Seq: 1, Outcome: out})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode details")
}

func TestHistoryStore_UnknownSession(t *testing.T) {
	actions, err := newStore(t).Actions(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, actions)
}
