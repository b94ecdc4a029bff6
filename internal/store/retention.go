package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RetentionRow is one encrypted artifact at rest. Only the masked subject
// identifier ever appears outside the encrypted payload column.
type RetentionRow struct {
	ID            string
	RefID         string
	Kind          string
	SubjectMasked string
	SignedAt      time.Time
	PurgeAfter    time.Time
	Nonce         []byte
	Payload       []byte
	CreatedAt     time.Time
}

// InsertRetention stores an encrypted artifact. One row per (ref, kind).
func (s *Store) InsertRetention(ctx context.Context, row *RetentionRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retention_records (id, ref_id, kind, subject_masked, signed_at, purge_after, nonce, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.RefID, row.Kind, row.SubjectMasked, row.SignedAt, row.PurgeAfter,
		row.Nonce, row.Payload, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert retention record: %w", err)
	}
	return nil
}

// GetRetention retrieves the artifact stored for (refID, kind).
func (s *Store) GetRetention(ctx context.Context, refID, kind string) (*RetentionRow, error) {
	var row RetentionRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, ref_id, kind, subject_masked, signed_at, purge_after, nonce, payload, created_at
		 FROM retention_records WHERE ref_id = ? AND kind = ?`, refID, kind).
		Scan(&row.ID, &row.RefID, &row.Kind, &row.SubjectMasked, &row.SignedAt,
			&row.PurgeAfter, &row.Nonce, &row.Payload, &row.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no retained artifact for submission %s kind %s", refID, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read retention record: %w", err)
	}
	return &row, nil
}

// PurgeRetention irreversibly deletes every record whose purge-eligible
// date has passed, returning the deleted record ids for audit logging.
// Deletion runs in one transaction so a record is never readable mid-delete.
func (s *Store) PurgeRetention(ctx context.Context, now time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM retention_records WHERE purge_after <= ?`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to scan purge-eligible records: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan purge id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purge ids: %w", err)
	}

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM retention_records WHERE purge_after <= ?`, now.UTC()); err != nil {
		return nil, fmt.Errorf("failed to delete purge-eligible records: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}
	return ids, nil
}
