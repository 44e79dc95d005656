package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is one test session as recorded in the journal.
type Session struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  *time.Time // nil while the session is open
	Failures    int
	Invocations int
}

// Finished reports whether the session has been closed by Finalize.
func (s Session) Finished() bool {
	return s.FinishedAt != nil
}

// Attempt is one execution of a test body.
type Attempt struct {
	ID          int64
	SessionID   string
	Invocation  int
	Index       int
	Label       string
	StartedAt   time.Time
	CompletedAt *time.Time // nil if the launch died inside the body
	Failures    int
}

// Crashed reports whether the attempt never completed.
func (a Attempt) Crashed() bool {
	return a.CompletedAt == nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Session returns the session with the given id.
func (j *Journal) Session(ctx context.Context, id string) (Session, error) {
	sess, err := j.scanSession(j.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, failures, invocations
		FROM sessions WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	return sess, nil
}

// LatestSession returns the most recently started session.
func (j *Journal) LatestSession(ctx context.Context) (Session, error) {
	sess, err := j.scanSession(j.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, failures, invocations
		FROM sessions ORDER BY rowid DESC LIMIT 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read latest session: %w", err)
	}
	return sess, nil
}

// Attempts returns every attempt of a session in execution order.
// Returns an empty slice (not nil) if the session has no attempts.
func (j *Journal) Attempts(ctx context.Context, sessionID string) ([]Attempt, error) {
	return j.queryAttempts(ctx, `
		SELECT id, session_id, invocation, test_index, label, started_at, completed_at, failures
		FROM attempts WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
}

// Crashed returns the attempts of a session that never completed.
func (j *Journal) Crashed(ctx context.Context, sessionID string) ([]Attempt, error) {
	return j.queryAttempts(ctx, `
		SELECT id, session_id, invocation, test_index, label, started_at, completed_at, failures
		FROM attempts WHERE session_id = ? AND completed_at IS NULL
		ORDER BY id ASC
	`, sessionID)
}

func (j *Journal) queryAttempts(ctx context.Context, query string, args ...any) ([]Attempt, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

func (j *Journal) scanSession(row rowScanner) (Session, error) {
	var (
		s        Session
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&s.ID, &started, &finished, &s.Failures, &s.Invocations); err != nil {
		return Session{}, err
	}

	var err error
	if s.StartedAt, err = parseTime(started); err != nil {
		return Session{}, err
	}
	if s.FinishedAt, err = parseNullTime(finished); err != nil {
		return Session{}, err
	}
	return s, nil
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var (
		a         Attempt
		started   string
		completed sql.NullString
	)
	if err := row.Scan(&a.ID, &a.SessionID, &a.Invocation, &a.Index, &a.Label, &started, &completed, &a.Failures); err != nil {
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}

	var err error
	if a.StartedAt, err = parseTime(started); err != nil {
		return Attempt{}, err
	}
	if a.CompletedAt, err = parseNullTime(completed); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Sessions returns up to limit sessions, newest first. A limit of zero or
// less returns every session.
func (j *Journal) Sessions(ctx context.Context, limit int) ([]Session, error) {
	query := `
		SELECT id, started_at, finished_at, failures, invocations
		FROM sessions ORDER BY rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := j.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
