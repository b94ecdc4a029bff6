package store

import (
	"context"
	"fmt"
)

// NextRef allocates the next submission reference number. The incremented
// value is committed before it is returned, so a crash between allocation
// and first use can never lead to reuse: the counter only moves forward.
func (s *Store) NextRef(ctx context.Context) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin sequence transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE ref_sequence SET value = value + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}

	var value int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM ref_sequence WHERE id = 1`).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}

	// Durable write happens here; the value is only handed out after the
	// commit succeeds.
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence: %w", err)
	}
	return value, nil
}

// LastRef returns the last issued reference number without advancing the
// sequence.
func (s *Store) LastRef(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM ref_sequence WHERE id = 1`).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}
	return value, nil
}
