package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/webpilot/internal/agent"
	"github.com/rahul/webpilot/internal/schemas"
)

// HistoryStore persists runs and their context-log entries to sqlite.
type HistoryStore struct {
	DB *sql.DB
}

var _ agent.RunSink = (*HistoryStore)(nil)

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			session_id TEXT PRIMARY KEY,
			task TEXT,
			goal TEXT,
			subtasks INTEGER,
			succeeded INTEGER DEFAULT 0,
			started_at TEXT,
			finished_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT REFERENCES runs(session_id),
			seq INTEGER,
			subtask_id INTEGER,
			capability TEXT,
			description TEXT,
			action_kind TEXT,
			succeeded INTEGER,
			error_kind TEXT,
			error TEXT,
			details TEXT,
			recorded_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id, seq);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}

func (h *HistoryStore) BeginRun(ctx context.Context, sessionID, task string, plan schemas.Plan) error {
	query := `INSERT INTO runs (session_id, task, goal, subtasks, started_at) VALUES (?, ?, ?, ?, ?)`
	_, err := h.DB.ExecContext(ctx, query, sessionID, task, plan.Goal, len(plan.Subtasks), formatTime(time.Now()))
	return err
}

func (h *HistoryStore) EndRun(ctx context.Context, sessionID string, succeeded, total int) error {
	query := `UPDATE runs SET succeeded = ?, subtasks = ?, finished_at = ? WHERE session_id = ?`
	_, err := h.DB.ExecContext(ctx, query, succeeded, total, formatTime(time.Now()), sessionID)
	return err
}

// Record stores one context-log entry.
func (h *HistoryStore) Record(ctx context.Context, e agent.Entry) error {
	details, err := json.Marshal(e.Outcome.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	var kind, msg string
	if f := e.Outcome.Failure; f != nil {
		kind, msg = string(f.Kind), f.Message
	}

	query := `INSERT INTO actions (session_id, seq, subtask_id, capability, description, action_kind, succeeded, error_kind, error, details, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = h.DB.ExecContext(ctx, query,
		e.SessionID, e.Seq, e.Subtask.ID, string(e.Subtask.Capability), e.Subtask.Description,
		e.Outcome.ActionKind, e.Outcome.Succeeded, kind, msg, string(details), formatTime(e.Time))
	return err
}

// Runs returns the most recent runs first.
func (h *HistoryStore) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT session_id, task, goal, subtasks, succeeded, started_at, COALESCE(finished_at, '')
		FROM runs ORDER BY started_at DESC LIMIT ?`
	rows, err := h.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.SessionID, &r.Task, &r.Goal, &r.Subtasks, &r.Succeeded, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		if finished != "" {
			t := parseTime(finished)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Actions returns the entries of one run in append order.
func (h *HistoryStore) Actions(ctx context.Context, sessionID string) ([]ActionRecord, error) {
	query := `SELECT session_id, seq, subtask_id, capability, description, action_kind, succeeded, error_kind, error, details, recorded_at
		FROM actions WHERE session_id = ? ORDER BY seq`
	rows, err := h.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ActionRecord
	for rows.Next() {
		var a ActionRecord
		var details, recorded string
		if err := rows.Scan(&a.SessionID, &a.Seq, &a.SubtaskID, &a.Capability, &a.Description, &a.ActionKind,
			&a.Succeeded, &a.ErrorKind, &a.Error, &details, &recorded); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
			return nil, fmt.Errorf("decode details of %s/%d: %w", a.SessionID, a.Seq, err)
		}
		a.RecordedAt = parseTime(recorded)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
