package store

import "time"

// RunRecord is one executed plan.
type RunRecord struct {
	SessionID  string
	Task       string
	Goal       string
	Subtasks   int
	Succeeded  int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// ActionRecord is one subtask outcome within a run.
type ActionRecord struct {
	SessionID   string
	Seq         int
	SubtaskID   int
	Capability  string
	Description string
	ActionKind  string
	Succeeded   bool
	ErrorKind   string
	Error       string
	Details     map[string]any
	RecordedAt  time.Time
}
