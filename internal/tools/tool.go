package tools

import (
	"context"
	"time"

	"github.com/rahul/webpilot/internal/schemas"
)

// Action kinds reported in ActionOutcome.ActionKind.
const (
	ActionNavigate = "navigate"
	ActionType     = "type"
	ActionClick    = "click"
	ActionScroll   = "scroll"
	ActionRead     = "read"
	ActionValidate = "validate"
	ActionUnknown  = "unknown"
)

// Executor performs one subtask against the browser session. Every local
// failure is converted into the returned outcome; Execute never panics on
// purpose and never returns a Go error.
type Executor interface {
	Capability() schemas.Capability
	Execute(ctx context.Context, subtask schemas.Subtask) schemas.ActionOutcome
}

// Registry maps capabilities to their executors.
type Registry struct {
	executors map[schemas.Capability]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[schemas.Capability]Executor)}
	for _, e := range executors {
		r.Register(e)
	}
	return r
}

// Register adds e, replacing any executor with the same capability.
func (r *Registry) Register(e Executor) {
	r.executors[e.Capability()] = e
}

func (r *Registry) Get(c schemas.Capability) (Executor, bool) {
	e, ok := r.executors[c]
	return e, ok
}

// Timing holds the fixed waits used by the executors. Zero values disable a
// wait, which is what tests use.
type Timing struct {
	PerKey            time.Duration
	FocusDelay        time.Duration
	ResultsWait       time.Duration
	SubmitWait        time.Duration
	DirectResultsWait time.Duration
	SubmitSettle      time.Duration
	AfterSubmit       time.Duration
	ClickSettle       time.Duration
	ScrollPause       time.Duration
	RemediationWait   time.Duration
}

// DefaultTiming mirrors the pacing of a human operator.
func DefaultTiming() Timing {
	return Timing{
		PerKey:            100 * time.Millisecond,
		FocusDelay:        300 * time.Millisecond,
		ResultsWait:       5 * time.Second,
		SubmitWait:        4 * time.Second,
		DirectResultsWait: 6 * time.Second,
		SubmitSettle:      2 * time.Second,
		AfterSubmit:       time.Second,
		ClickSettle:       2 * time.Second,
		ScrollPause:       time.Second,
		RemediationWait:   2 * time.Second,
	}
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
