package schemas

import "fmt"

// ErrorKind classifies why a subtask failed.
type ErrorKind string

const (
	ErrUnresolvedURL       ErrorKind = "unresolved_url"
	ErrUnresolvedElement   ErrorKind = "unresolved_element"
	ErrUnknownActionKind   ErrorKind = "unknown_action_kind"
	ErrChallengeUnresolved ErrorKind = "challenge_unresolved"
	ErrPageUnavailable     ErrorKind = "page_unavailable"
	ErrNavigationTimeout   ErrorKind = "navigation_timeout"
	ErrEmptyInput          ErrorKind = "empty_input"
	ErrPolicyDenied        ErrorKind = "policy_denied"
	ErrDeclined            ErrorKind = "declined"
	ErrExecutorPanic       ErrorKind = "executor_panic"
)

// Failure is the typed error carried by a failed ActionOutcome.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewFailure builds a Failure with a formatted message.
func NewFailure(kind ErrorKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ActionOutcome is produced exactly once per subtask execution and is never
// mutated after it has been returned.
type ActionOutcome struct {
	SubtaskID  int            `json:"subtask_id"`
	Succeeded  bool           `json:"succeeded"`
	ActionKind string         `json:"action_kind"`
	Verified   bool           `json:"verified"`
	Details    map[string]any `json:"details,omitempty"`
	Failure    *Failure       `json:"error,omitempty"`
}

// Err returns the outcome's failure as an error, or nil on success.
func (o ActionOutcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Succeed returns a successful outcome.
func Succeed(subtaskID int, kind string, details map[string]any) ActionOutcome {
	if details == nil {
		details = map[string]any{}
	}
	return ActionOutcome{SubtaskID: subtaskID, Succeeded: true, ActionKind: kind, Details: details}
}

// Fail returns a failed outcome.
func Fail(subtaskID int, kind string, f *Failure) ActionOutcome {
	return ActionOutcome{SubtaskID: subtaskID, ActionKind: kind, Details: map[string]any{}, Failure: f}
}

// Tally counts successful outcomes.
func Tally(outcomes []ActionOutcome) (succeeded, total int) {
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
		}
	}
	return succeeded, len(outcomes)
}
