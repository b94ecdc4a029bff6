package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jude27mad/tax-prep-app/pkg/reliability"
)

// RecordAttempt persists one transmission round trip for audit. Attempts
// are kept even when the round trip succeeded. Implements
// transport.AttemptRecorder.
func (s *Store) RecordAttempt(ctx context.Context, refID string, att reliability.Attempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (ref_id, number, started_at, outcome, backoff_ms, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		refID, att.Number, att.StartedAt, string(att.Outcome),
		att.Backoff.Milliseconds(), nullable(att.Detail))
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// Attempts returns the audit trail for a submission in attempt order.
func (s *Store) Attempts(ctx context.Context, refID string) ([]reliability.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, started_at, outcome, backoff_ms, detail
		 FROM attempts WHERE ref_id = ? ORDER BY number`, refID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var out []reliability.Attempt
	for rows.Next() {
		var (
			att       reliability.Attempt
			outcome   string
			backoffMS int64
			detail    sql.NullString
		)
		if err := rows.Scan(&att.Number, &att.StartedAt, &outcome, &backoffMS, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		att.Outcome = reliability.AttemptOutcome(outcome)
		att.Backoff = msToDuration(backoffMS)
		att.Detail = detail.String
		out = append(out, att)
	}
	return out, rows.Err()
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
