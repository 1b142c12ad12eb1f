// Package issues persists failure metadata from pipeline runs. The log is
// append-mostly: runs write issues, humans (or the triage pass) read and
// resolve them. Nothing in the pipeline ever reads this back synchronously.
package issues

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Issue types, matching the failure modes the pipeline and generator report.
const (
	TypeEmptyOutput     = "empty_output"
	TypeNoCodeBlock     = "no_code_block"
	TypeSimulationError = "simulation_error"
	TypeInvalidCircuit  = "invalid_circuit"
	TypeAPIError        = "api_error"
	TypeTimeout         = "timeout"
	TypeSyntaxError     = "syntax_error"
	TypeOther           = "other"
)

// Issue lifecycle states.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

// Issue is one logged failure.
type Issue struct {
	ID        int64
	CreatedAt time.Time
	Type      string
	Status    string
	Request   string // the natural-language request that led here
	ErrorText string
	Model     string // which generator/model produced the source
	RunID     string
	Notes     string
}

// Store is a SQLite-backed issue log.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (and if needed creates) the issue database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create issue db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open issue db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS issues (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at  INTEGER NOT NULL,
			type        TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'open',
			request     TEXT NOT NULL DEFAULT '',
			error_text  TEXT NOT NULL DEFAULT '',
			model       TEXT NOT NULL DEFAULT '',
			run_id      TEXT NOT NULL DEFAULT '',
			notes       TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
		CREATE INDEX IF NOT EXISTS idx_issues_type ON issues(type);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate issue schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Log appends an issue and returns its assigned ID. A zero CreatedAt is
// stamped with the current time; an empty status defaults to open.
func (s *Store) Log(issue Issue) (int64, error) {
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}
	if issue.Status == "" {
		issue.Status = StatusOpen
	}
	res, err := s.db.Exec(
		`INSERT INTO issues (created_at, type, status, request, error_text, model, run_id, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.CreatedAt.UnixMilli(), issue.Type, issue.Status,
		issue.Request, issue.ErrorText, issue.Model, issue.RunID, issue.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to log issue: %w", err)
	}
	return res.LastInsertId()
}

// SetStatus moves an issue through its lifecycle.
func (s *Store) SetStatus(id int64, status string) error {
	switch status {
	case StatusOpen, StatusInProgress, StatusResolved:
	default:
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.Exec(`UPDATE issues SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update issue %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("issue %d not found", id)
	}
	return nil
}

// Resolve marks an issue resolved with a note about the fix.
func (s *Store) Resolve(id int64, notes string) error {
	res, err := s.db.Exec(`UPDATE issues SET status = ?, notes = ? WHERE id = ?`, StatusResolved, notes, id)
	if err != nil {
		return fmt.Errorf("failed to resolve issue %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("issue %d not found", id)
	}
	return nil
}

// OpenIssues returns all issues not yet resolved, newest first.
func (s *Store) OpenIssues() ([]Issue, error) {
	return s.query(`SELECT id, created_at, type, status, request, error_text, model, run_id, notes
		FROM issues WHERE status != ? ORDER BY created_at DESC`, StatusResolved)
}

// Recent returns the n most recently logged issues of any status.
func (s *Store) Recent(n int) ([]Issue, error) {
	return s.query(`SELECT id, created_at, type, status, request, error_text, model, run_id, notes
		FROM issues ORDER BY created_at DESC LIMIT ?`, n)
}

// ByType returns all issues of one type, newest first.
func (s *Store) ByType(issueType string) ([]Issue, error) {
	return s.query(`SELECT id, created_at, type, status, request, error_text, model, run_id, notes
		FROM issues WHERE type = ? ORDER BY created_at DESC`, issueType)
}

// Summary returns issue counts per type for unresolved issues.
func (s *Store) Summary() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT type, COUNT(*) FROM issues WHERE status != ? GROUP BY type`, StatusResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize issues: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}

func (s *Store) query(q string, args ...interface{}) ([]Issue, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("issue query failed: %w", err)
	}
	defer rows.Close()

	var out []Issue
	for rows.Next() {
		var i Issue
		var createdMilli int64
		if err := rows.Scan(&i.ID, &createdMilli, &i.Type, &i.Status,
			&i.Request, &i.ErrorText, &i.Model, &i.RunID, &i.Notes); err != nil {
			return nil, err
		}
		i.CreatedAt = time.UnixMilli(createdMilli)
		out = append(out, i)
	}
	return out, rows.Err()
}
