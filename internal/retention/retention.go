// Package retention encrypts and retains consent artifacts for the
// statutory six-year window, and purges them once the window has passed.
//
// Retention fails closed: a deployment that enables retention without
// configuring key material cannot construct the store, and a disabled
// store refuses every operation rather than writing plaintext. The subject
// identifier is masked before it reaches any unencrypted column or log
// line; the full identifier only ever exists inside the sealed payload.
package retention

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/jude27mad/tax-prep-app/internal/store"
	"github.com/jude27mad/tax-prep-app/pkg/envelope"
)

// RetentionYears is the statutory retention window for consent artifacts.
const RetentionYears = 6

// hkdfInfo binds derived keys to this retention context.
var hkdfInfo = []byte("t183-retention-v1")

// ErrKeyMissing indicates retention was used without configured key
// material. This is a deployment configuration error, not a data error.
var ErrKeyMissing = errors.New("retention encryption key not configured")

// ErrSecondaryDisabled indicates the secondary artifact kind is not enabled
// for this deployment.
var ErrSecondaryDisabled = errors.New("secondary artifact retention not enabled")

// Kind distinguishes retained artifact kinds.
type Kind string

const (
	// KindConsent is the signed T183 authorization document.
	KindConsent Kind = "t183-consent"
	// KindSummary is the optional submission summary artifact.
	KindSummary Kind = "submission-summary"
)

// Record is the unencrypted view of one retained artifact.
type Record struct {
	ID            string
	RefID         string
	Kind          Kind
	SubjectMasked string
	SignedAt      time.Time
	PurgeAfter    time.Time
}

// Store encrypts artifacts into and out of the durable retention table.
type Store struct {
	db        *store.Store
	aead      cipher.AEAD
	secondary bool
	logger    *slog.Logger
}

// New constructs a retention store. keyMaterial must be non-empty: absence
// of a key is a startup-time configuration error for any deployment that
// enables retention. The AES-256-GCM key is derived from the material via
// HKDF-SHA256 so rotating the configured secret rotates the at-rest key.
func New(db *store.Store, keyMaterial string, secondary bool, logger *slog.Logger) (*Store, error) {
	if keyMaterial == "" {
		return nil, ErrKeyMissing
	}
	if logger == nil {
		logger = slog.Default()
	}

	key := make([]byte, 32)
	kr := hkdf.New(sha256.New, []byte(keyMaterial), nil, hkdfInfo)
	if _, err := io.ReadFull(kr, key); err != nil {
		return nil, fmt.Errorf("failed to derive retention key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create retention cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Store{db: db, aead: aead, secondary: secondary, logger: logger}, nil
}

// NewDisabled constructs a store for deployments with retention turned
// off. Every operation fails with ErrKeyMissing; nothing is ever written.
func NewDisabled(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// PurgeEligible computes the earliest date an artifact signed at signedAt
// may be deleted. AddDate normalizes leap-day signatures forward.
func PurgeEligible(signedAt time.Time) time.Time {
	return signedAt.UTC().AddDate(RetentionYears, 0, 0)
}

// Store encrypts payload and persists it against the submission reference.
// subjectID is masked before any unencrypted field is written.
func (s *Store) Store(ctx context.Context, refID string, kind Kind, subjectID string, payload []byte, signedAt time.Time) (*Record, error) {
	if s.aead == nil {
		return nil, ErrKeyMissing
	}
	if kind == KindSummary && !s.secondary {
		return nil, ErrSecondaryDisabled
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nil, nonce, payload, []byte(refID))

	row := &store.RetentionRow{
		ID:            uuid.NewString(),
		RefID:         refID,
		Kind:          string(kind),
		SubjectMasked: envelope.MaskSIN(subjectID),
		SignedAt:      signedAt.UTC(),
		PurgeAfter:    PurgeEligible(signedAt),
		Nonce:         nonce,
		Payload:       sealed,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.db.InsertRetention(ctx, row); err != nil {
		return nil, err
	}

	rec := rowToRecord(row)
	s.logger.Info("retained artifact stored",
		"ref_id", refID, "kind", string(kind),
		"subject", row.SubjectMasked, "purge_after", row.PurgeAfter)
	return rec, nil
}

// Retrieve decrypts and returns the payload stored for (refID, kind).
// Authorization of the caller is the surrounding application's concern;
// the store only refuses decryption when no key is configured.
func (s *Store) Retrieve(ctx context.Context, refID string, kind Kind) ([]byte, *Record, error) {
	if s.aead == nil {
		return nil, nil, ErrKeyMissing
	}
	row, err := s.db.GetRetention(ctx, refID, string(kind))
	if err != nil {
		return nil, nil, err
	}
	plain, err := s.aead.Open(nil, row.Nonce, row.Payload, []byte(refID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt artifact %s: %w", row.ID, err)
	}
	return plain, rowToRecord(row), nil
}

// Purge irreversibly deletes every record whose purge-eligible date is at
// or before now, returning the count and ids for audit logging.
func (s *Store) Purge(ctx context.Context, now time.Time) (int, []string, error) {
	if s.aead == nil {
		return 0, nil, ErrKeyMissing
	}
	ids, err := s.db.PurgeRetention(ctx, now)
	if err != nil {
		return 0, nil, err
	}
	if len(ids) > 0 {
		s.logger.Info("purged retained artifacts", "count", len(ids), "ids", ids)
	}
	return len(ids), ids, nil
}

func rowToRecord(row *store.RetentionRow) *Record {
	return &Record{
		ID:            row.ID,
		RefID:         row.RefID,
		Kind:          Kind(row.Kind),
		SubjectMasked: row.SubjectMasked,
		SignedAt:      row.SignedAt,
		PurgeAfter:    row.PurgeAfter,
	}
}
