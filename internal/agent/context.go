package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/webpilot/internal/observability"
	"github.com/rahul/webpilot/internal/schemas"
	"go.uber.org/zap"
)

// Entry is one executed subtask in the context log.
type Entry struct {
	SessionID string                `json:"session_id"`
	Seq       int                   `json:"seq"`
	Time      time.Time             `json:"time"`
	Subtask   schemas.Subtask       `json:"subtask"`
	Outcome   schemas.ActionOutcome `json:"outcome"`
}

// Sink receives every appended entry.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// RunSink is a Sink that also tracks run boundaries.
type RunSink interface {
	Sink
	BeginRun(ctx context.Context, sessionID, task string, plan schemas.Plan) error
	EndRun(ctx context.Context, sessionID string, succeeded, total int) error
}

// ContextLog is the append-only history of one run. Sink errors are logged
// and never affect the run.
type ContextLog struct {
	SessionID string

	mu      sync.Mutex
	entries []Entry
	sinks   []Sink
	now     func() time.Time
	logger  *zap.Logger
}

func NewContextLog(logger *zap.Logger, sinks ...Sink) *ContextLog {
	return &ContextLog{
		SessionID: uuid.NewString(),
		sinks:     sinks,
		now:       time.Now,
		logger:    logger.Named("context"),
	}
}

// Begin announces a run to every RunSink.
func (l *ContextLog) Begin(ctx context.Context, task string, plan schemas.Plan) {
	for _, s := range l.sinks {
		rs, ok := s.(RunSink)
		if !ok {
			continue
		}
		if err := rs.BeginRun(ctx, l.SessionID, task, plan); err != nil {
			l.logger.Warn("sink failed to begin run", zap.Error(err))
		}
	}
}

// End closes the run on every RunSink.
func (l *ContextLog) End(ctx context.Context, outcomes []schemas.ActionOutcome) {
	succeeded, total := schemas.Tally(outcomes)
	for _, s := range l.sinks {
		rs, ok := s.(RunSink)
		if !ok {
			continue
		}
		if err := rs.EndRun(ctx, l.SessionID, succeeded, total); err != nil {
			l.logger.Warn("sink failed to end run", zap.Error(err))
		}
	}
}

// Append records an executed subtask and fans it out to the sinks.
func (l *ContextLog) Append(ctx context.Context, st schemas.Subtask, out schemas.ActionOutcome) Entry {
	l.mu.Lock()
	e := Entry{
		SessionID: l.SessionID,
		Seq:       len(l.entries) + 1,
		Time:      l.now(),
		Subtask:   st,
		Outcome:   out,
	}
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	for _, s := range l.sinks {
		if err := s.Record(ctx, e); err != nil {
			l.logger.Warn("sink failed to record entry", zap.Int("seq", e.Seq), zap.Error(err))
		}
	}
	return e
}

// Entries returns a copy of the history.
func (l *ContextLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// LogSink writes entries as step audit events.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Record(_ context.Context, e Entry) error {
	fields := []zap.Field{
		zap.String("session", e.SessionID),
		zap.Int("seq", e.Seq),
		zap.Int("subtask", e.Subtask.ID),
		zap.String("capability", string(e.Subtask.Capability)),
		zap.String("action", e.Outcome.ActionKind),
		zap.Bool("succeeded", e.Outcome.Succeeded),
	}
	if e.Outcome.Failure != nil {
		fields = append(fields, zap.String("error_kind", string(e.Outcome.Failure.Kind)), zap.String("error", e.Outcome.Failure.Message))
	}
	observability.Audit(s.Logger, observability.EventTypeStep, e.Subtask.Description, fields...)
	return nil
}
