package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// OpenSession returns the newest unfinished session, creating one with an id
// from gen when every recorded session is finished.
func (j *Journal) OpenSession(ctx context.Context, gen IDGenerator) (Session, error) {
	sess, err := j.scanSession(j.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, failures, invocations
		FROM sessions
		WHERE finished_at IS NULL
		ORDER BY rowid DESC
		LIMIT 1
	`))
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("open session: %w", err)
	}

	id := gen.Generate()
	started := j.timestamp()
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at) VALUES (?, ?)
	`, id, started); err != nil {
		return Session{}, fmt.Errorf("open session: %w", err)
	}

	return j.Session(ctx, id)
}

// BeginAttempt records that a test body is about to run and returns the
// attempt id. The row is committed before BeginAttempt returns.
func (j *Journal) BeginAttempt(ctx context.Context, sessionID string, invocation, index int, label string) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO attempts (session_id, invocation, test_index, label, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, invocation, index, label, j.timestamp())
	if err != nil {
		return 0, fmt.Errorf("begin attempt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("begin attempt: %w", err)
	}
	return id, nil
}

// CompleteAttempt marks an attempt as finished with the number of failed
// assertions its body produced.
func (j *Journal) CompleteAttempt(ctx context.Context, id int64, failures int) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE attempts SET completed_at = ?, failures = ?
		WHERE id = ? AND completed_at IS NULL
	`, j.timestamp(), failures, id)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("complete attempt: no open attempt with id %d", id)
	}
	return nil
}

// UpdateTotals stores the session's running totals.
func (j *Journal) UpdateTotals(ctx context.Context, sessionID string, failures, invocations int) error {
	if _, err := j.db.ExecContext(ctx, `
		UPDATE sessions SET failures = ?, invocations = ? WHERE id = ?
	`, failures, invocations, sessionID); err != nil {
		return fmt.Errorf("update session totals: %w", err)
	}
	return nil
}

// FinishSession stores the final totals and closes the session.
func (j *Journal) FinishSession(ctx context.Context, sessionID string, failures, invocations int) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE sessions SET finished_at = ?, failures = ?, invocations = ?
		WHERE id = ? AND finished_at IS NULL
	`, j.timestamp(), failures, invocations, sessionID)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish session: no open session %s", sessionID)
	}
	return nil
}

// AbandonOpenSessions closes every unfinished session without touching its
// totals. The runner calls it when a new session starts from an empty
// checkpoint, since an open session then belongs to a run that was reset.
func (j *Journal) AbandonOpenSessions(ctx context.Context) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		UPDATE sessions SET finished_at = ? WHERE finished_at IS NULL
	`, j.timestamp())
	if err != nil {
		return 0, fmt.Errorf("abandon sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("abandon sessions: %w", err)
	}
	return n, nil
}
