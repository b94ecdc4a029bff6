package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LedgerEntry maps a content digest to the submission that first carried it.
type LedgerEntry struct {
	Digest         string
	RefID          string
	FirstSeen      time.Time
	Outcome        string
	ConfirmationID string
	ErrorCode      string
}

// CheckAndRecord atomically records digest against refID if unseen. It
// returns the recorded entry and whether this call inserted it; when the
// digest was already present the prior entry comes back and the candidate
// reference is discarded by the caller. Two concurrent calls with the same
// digest can never both observe "new".
func (s *Store) CheckAndRecord(ctx context.Context, digest, refID string) (LedgerEntry, bool, error) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO digest_ledger (digest, ref_id, first_seen) VALUES (?, ?, ?)
		 ON CONFLICT(digest) DO NOTHING`,
		digest, refID, time.Now().UTC())
	if err != nil {
		return LedgerEntry{}, false, fmt.Errorf("failed to record digest: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return LedgerEntry{}, false, fmt.Errorf("failed to inspect digest insert: %w", err)
	}

	entry, err := s.getLedger(ctx, digest)
	if err != nil {
		return LedgerEntry{}, false, err
	}
	return entry, inserted == 1, nil
}

// LedgerOutcome updates the recorded outcome for a digest once its
// submission reaches a terminal state.
func (s *Store) LedgerOutcome(ctx context.Context, digest, outcome, confirmationID, errorCode string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE digest_ledger SET outcome = ?, confirmation_id = ?, error_code = ? WHERE digest = ?`,
		outcome, nullable(confirmationID), nullable(errorCode), digest)
	if err != nil {
		return fmt.Errorf("failed to update ledger outcome: %w", err)
	}
	return nil
}

func (s *Store) getLedger(ctx context.Context, digest string) (LedgerEntry, error) {
	var (
		entry LedgerEntry
		conf  sql.NullString
		code  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT digest, ref_id, first_seen, outcome, confirmation_id, error_code
		 FROM digest_ledger WHERE digest = ?`, digest).
		Scan(&entry.Digest, &entry.RefID, &entry.FirstSeen, &entry.Outcome, &conf, &code)
	if err == sql.ErrNoRows {
		return LedgerEntry{}, fmt.Errorf("digest %s not in ledger", digest)
	}
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("failed to read ledger: %w", err)
	}
	entry.ConfirmationID = conf.String
	entry.ErrorCode = code.String
	return entry, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
