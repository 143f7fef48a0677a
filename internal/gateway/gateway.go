package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/webpilot/internal/schemas"
)

// Notifier delivers a finished run report to an external channel.
type Notifier interface {
	Notify(ctx context.Context, report Report) error
}

// Report summarises one executed plan.
type Report struct {
	SessionID string
	Task      string
	Plan      schemas.Plan
	Outcomes  []schemas.ActionOutcome
}

// Text renders the report as plain text, one line per subtask.
func (r Report) Text() string {
	succeeded, total := schemas.Tally(r.Outcomes)

	var b strings.Builder
	fmt.Fprintf(&b, "webpilot: %s\n", r.Task)
	if r.Plan.Goal != "" && r.Plan.Goal != r.Task {
		fmt.Fprintf(&b, "goal: %s\n", r.Plan.Goal)
	}
	fmt.Fprintf(&b, "result: %d/%d subtasks succeeded\n", succeeded, total)

	descriptions := make(map[int]string, len(r.Plan.Subtasks))
	for _, st := range r.Plan.Subtasks {
		descriptions[st.ID] = st.Description
	}
	for _, o := range r.Outcomes {
		mark := "✅"
		if !o.Succeeded {
			mark = "❌"
		}
		fmt.Fprintf(&b, "%s %d. %s", mark, o.SubtaskID, descriptions[o.SubtaskID])
		if o.Failure != nil {
			fmt.Fprintf(&b, " (%s)", o.Failure.Kind)
		}
		b.WriteByte('\n')
	}
	if r.SessionID != "" {
		fmt.Fprintf(&b, "session: %s", r.SessionID)
	}
	return strings.TrimRight(b.String(), "\n")
}
