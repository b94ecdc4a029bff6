package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SubmissionRow is the persisted view of one logical submission.
type SubmissionRow struct {
	RefID          string
	Digest         string
	State          string
	Envelope       []byte
	AttemptCount   int
	ConfirmationID string
	ErrorCode      string
	Detail         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateSubmission records a newly assembled submission with its envelope
// bytes, which the replay tooling later re-feeds to the transmission client.
func (s *Store) CreateSubmission(ctx context.Context, refID, digest, state string, envelope []byte) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (ref_id, digest, state, envelope, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		refID, digest, state, envelope, now, now)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// UpdateSubmission moves a submission to a new state, updating outcome
// fields and the attempt count.
func (s *Store) UpdateSubmission(ctx context.Context, refID, state string, attemptCount int, confirmationID, errorCode, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		 SET state = ?, attempt_count = ?, confirmation_id = ?, error_code = ?, detail = ?, updated_at = ?
		 WHERE ref_id = ?`,
		state, attemptCount, nullable(confirmationID), nullable(errorCode), nullable(detail),
		time.Now().UTC(), refID)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to inspect submission update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission %s not found", refID)
	}
	return nil
}

// GetSubmission retrieves a submission by reference.
func (s *Store) GetSubmission(ctx context.Context, refID string) (*SubmissionRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ref_id, digest, state, envelope, attempt_count, confirmation_id, error_code, detail, created_at, updated_at
		 FROM submissions WHERE ref_id = ?`, refID)
	return scanSubmission(row)
}

// ListSubmissionsByState returns submissions in a given state, newest
// first. The reject-scan tooling reads Rejected rows through this.
func (s *Store) ListSubmissionsByState(ctx context.Context, state string, limit int) ([]*SubmissionRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref_id, digest, state, envelope, attempt_count, confirmation_id, error_code, detail, created_at, updated_at
		 FROM submissions WHERE state = ? ORDER BY updated_at DESC LIMIT ?`, state, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []*SubmissionRow
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(r rowScanner) (*SubmissionRow, error) {
	var (
		sub  SubmissionRow
		conf sql.NullString
		code sql.NullString
		det  sql.NullString
	)
	err := r.Scan(&sub.RefID, &sub.Digest, &sub.State, &sub.Envelope, &sub.AttemptCount,
		&conf, &code, &det, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("submission not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}
	sub.ConfirmationID = conf.String
	sub.ErrorCode = code.String
	sub.Detail = det.String
	return &sub, nil
}
