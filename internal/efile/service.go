// Package efile orchestrates the submission pipeline: assembly against
// versioned schemas, duplicate-digest detection, resilient delivery to the
// EFILE endpoint, and encrypted retention of the consent artifact for
// accepted submissions.
package efile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jude27mad/tax-prep-app/internal/config"
	"github.com/jude27mad/tax-prep-app/internal/model"
	"github.com/jude27mad/tax-prep-app/internal/retention"
	"github.com/jude27mad/tax-prep-app/internal/store"
	"github.com/jude27mad/tax-prep-app/pkg/envelope"
	"github.com/jude27mad/tax-prep-app/pkg/reliability"
	"github.com/jude27mad/tax-prep-app/pkg/transport"
)

// ErrXMLDisabled indicates the XML transmission feature flag is off; the
// caller should fall back to the legacy JSON path.
var ErrXMLDisabled = errors.New("xml transmission path disabled by configuration")

// GateError indicates the tax year is closed for transmission. The reason
// carries the operator-facing restriction.
type GateError struct {
	Year   int
	Reason string
}

func (e *GateError) Error() string { return e.Reason }

// DuplicateError reports that identical content was already submitted. It
// is informational: the prior submission's outcome is attached and no new
// transmission took place.
type DuplicateError struct {
	RefID          string
	Outcome        string
	ConfirmationID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate submission: content already submitted as %s (outcome %s)", e.RefID, e.Outcome)
}

// Result is the terminal view of one Submit call.
type Result struct {
	RefID     string
	Digest    string
	Outcome   transport.Outcome
	Duplicate bool
	// Retention is set when the consent artifact was stored.
	Retention *retention.Record
}

// Service wires the pipeline components together. All shared mutable state
// (reference sequence, digest ledger, breaker) lives in injected
// collaborators guarded by their own exclusion discipline.
type Service struct {
	cfg       *config.Config
	db        *store.Store
	assembler *envelope.Assembler
	sender    *transport.Sender
	retention *retention.Store
	logger    *slog.Logger
}

// NewService builds the pipeline from configuration. Retention key
// validation happens here: a deployment enabling retention without key
// material fails construction rather than at first store.
func NewService(cfg *config.Config, db *store.Store, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	profile := cfg.ActiveProfile()
	assembler := envelope.NewAssembler(envelope.Profile{
		Environment:     cfg.Efile.Environment,
		SoftwareID:      profile.SoftwareID,
		SoftwareVersion: cfg.Efile.SoftwareVersion,
		TransmitterID:   profile.TransmitterID,
	})

	clientCfg := transport.DefaultClientConfig(profile.Endpoint)
	clientCfg.Timeout = cfg.Transmit.Timeout
	client := transport.NewClient(clientCfg)

	breaker := reliability.NewBreaker(reliability.BreakerConfig{
		FailureThreshold: cfg.Transmit.BreakerThreshold,
		Cooldown:         cfg.Transmit.BreakerCooldown,
	})
	policy := reliability.BackoffPolicy{
		MaxAttempts: cfg.Transmit.MaxAttempts,
		Base:        cfg.Transmit.BackoffBase,
		Cap:         cfg.Transmit.BackoffCap,
	}
	sender := transport.NewSender(client, breaker, policy, db, logger)

	var ret *retention.Store
	if cfg.Retention.Enabled {
		var err error
		ret, err = retention.New(db, cfg.Retention.Key, cfg.Retention.SecondaryArtifacts, logger)
		if err != nil {
			return nil, fmt.Errorf("retention configuration: %w", err)
		}
	} else {
		ret = retention.NewDisabled(logger)
	}

	return &Service{
		cfg:       cfg,
		db:        db,
		assembler: assembler,
		sender:    sender,
		retention: ret,
		logger:    logger,
	}, nil
}

// Sender exposes the transmission sender, for the health surface and tests.
func (s *Service) Sender() *transport.Sender { return s.sender }

// Retention exposes the retention store for the purge tooling.
func (s *Service) Retention() *retention.Store { return s.retention }

// Submit runs one return document through the full pipeline. Identical
// content submitted twice resolves to the first submission's outcome with
// no second network call; the returned error is then a *DuplicateError.
func (s *Service) Submit(ctx context.Context, doc *model.ReturnDocument) (*Result, error) {
	if !s.cfg.Features.XMLTransmission {
		return nil, ErrXMLDisabled
	}
	if reason := TransmitRestriction(doc.Calc.TaxYear, s.cfg.Features.Transmit2025); reason != "" {
		return nil, &GateError{Year: doc.Calc.TaxYear, Reason: reason}
	}
	if !doc.HasConsent() {
		return nil, fmt.Errorf("signed t183 authorization required before transmission")
	}

	// The reference is allocated before the duplicate check because the
	// envelope embeds it. A duplicate discards the candidate reference;
	// sequence gaps are harmless, reuse is not.
	seq, err := s.db.NextRef(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate submission reference: %w", err)
	}
	refID := envelope.FormatRefID(seq)
	sub := NewSubmission(refID)

	pkg, err := s.assembler.Assemble(doc, refID)
	if err != nil {
		return nil, err
	}
	if err := sub.Transition(StateValidated); err != nil {
		return nil, err
	}

	digest := pkg.Digest(s.assembler.Profile())
	sub.Digest = digest

	entry, isNew, err := s.db.CheckAndRecord(ctx, digest, refID)
	if err != nil {
		return nil, fmt.Errorf("digest ledger: %w", err)
	}
	if !isNew {
		s.logger.Info("duplicate submission digest",
			"digest", digest, "prior_ref", entry.RefID, "outcome", entry.Outcome)
		return &Result{RefID: entry.RefID, Digest: digest, Duplicate: true},
			&DuplicateError{RefID: entry.RefID, Outcome: entry.Outcome, ConfirmationID: entry.ConfirmationID}
	}

	if err := s.db.CreateSubmission(ctx, refID, digest, string(sub.State), pkg.EnvelopeXML); err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}

	return s.transmit(ctx, sub, doc, pkg)
}

// transmit delivers an assembled package and records the terminal outcome.
func (s *Service) transmit(ctx context.Context, sub *Submission, doc *model.ReturnDocument, pkg *envelope.Package) (*Result, error) {
	if err := sub.Transition(StateTransmitting); err != nil {
		return nil, err
	}
	if err := s.db.UpdateSubmission(ctx, sub.RefID, string(StateTransmitting), 0, "", "", ""); err != nil {
		return nil, err
	}

	outcome, sendErr := s.sender.Send(ctx, sub.RefID, pkg.EnvelopeXML)
	sub.AttemptCount = len(outcome.Attempts)
	result := &Result{RefID: sub.RefID, Digest: sub.Digest, Outcome: outcome}

	switch outcome.Kind {
	case transport.OutcomeAccepted:
		if err := sub.Transition(StateAccepted); err != nil {
			return nil, err
		}
		if err := s.db.UpdateSubmission(ctx, sub.RefID, string(StateAccepted), sub.AttemptCount,
			outcome.ConfirmationID, "", ""); err != nil {
			return nil, err
		}
		if err := s.db.LedgerOutcome(ctx, sub.Digest, string(StateAccepted), outcome.ConfirmationID, ""); err != nil {
			return nil, err
		}
		if rec, err := s.retainConsent(ctx, sub.RefID, doc, pkg); err != nil {
			// Acceptance stands, but a missing artifact needs operator
			// follow-up.
			s.logger.Error("consent artifact retention failed", "ref_id", sub.RefID, "error", err)
			return result, fmt.Errorf("submission accepted but retention failed: %w", err)
		} else {
			result.Retention = rec
		}
		return result, nil

	case transport.OutcomeRejected:
		if err := sub.Transition(StateRejected); err != nil {
			return nil, err
		}
		if err := s.db.UpdateSubmission(ctx, sub.RefID, string(StateRejected), sub.AttemptCount,
			"", outcome.ErrorCode, outcome.Detail); err != nil {
			return nil, err
		}
		if err := s.db.LedgerOutcome(ctx, sub.Digest, string(StateRejected), "", outcome.ErrorCode); err != nil {
			return nil, err
		}
		return result, sendErr

	default:
		if errors.Is(sendErr, reliability.ErrCircuitOpen) && len(outcome.Attempts) == 0 {
			// No network attempt happened; leave the submission eligible
			// for replay once the breaker closes.
			if err := sub.Transition(StateValidated); err != nil {
				return nil, err
			}
			if err := s.db.UpdateSubmission(ctx, sub.RefID, string(StateValidated), 0, "", "", ""); err != nil {
				return nil, err
			}
			return result, sendErr
		}
		if err := sub.Transition(StateErrored); err != nil {
			return nil, err
		}
		if err := s.db.UpdateSubmission(ctx, sub.RefID, string(StateErrored), sub.AttemptCount,
			"", "", outcome.Detail); err != nil {
			return nil, err
		}
		if err := s.db.LedgerOutcome(ctx, sub.Digest, string(StateErrored), "", ""); err != nil {
			return nil, err
		}
		return result, sendErr
	}
}

// retainConsent stores the consent artifact (and the optional summary
// artifact) for an accepted submission.
func (s *Service) retainConsent(ctx context.Context, refID string, doc *model.ReturnDocument, pkg *envelope.Package) (*retention.Record, error) {
	if !s.cfg.Retention.Enabled {
		return nil, nil
	}
	rec, err := s.retention.Store(ctx, refID, retention.KindConsent,
		doc.Taxpayer.SIN, pkg.T183XML, doc.Consent.SignedAt)
	if err != nil {
		return nil, err
	}
	if s.cfg.Retention.SecondaryArtifacts {
		summary, err := LegacySerialize(buildSummary(refID, doc, pkg))
		if err != nil {
			return rec, err
		}
		if _, err := s.retention.Store(ctx, refID, retention.KindSummary,
			doc.Taxpayer.SIN, summary.Data, doc.Consent.SignedAt); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// Replay re-feeds a previously assembled envelope through the transmission
// client, for certification testing and recovery after breaker trips. An
// accepted submission is never replayed: its confirmation is final.
func (s *Service) Replay(ctx context.Context, refID string) (*Result, error) {
	row, err := s.db.GetSubmission(ctx, refID)
	if err != nil {
		return nil, err
	}
	if row.State == string(StateAccepted) {
		return nil, fmt.Errorf("submission %s already accepted with confirmation %s; refusing replay",
			refID, row.ConfirmationID)
	}

	outcome, sendErr := s.sender.Send(ctx, refID, row.Envelope)
	result := &Result{RefID: refID, Digest: row.Digest, Outcome: outcome}

	if errors.Is(sendErr, reliability.ErrCircuitOpen) && len(outcome.Attempts) == 0 {
		// No attempt went out; the stored row keeps its state and stays
		// eligible for another replay once the breaker closes.
		return result, sendErr
	}

	state := StateErrored
	switch outcome.Kind {
	case transport.OutcomeAccepted:
		state = StateAccepted
	case transport.OutcomeRejected:
		state = StateRejected
	}
	if err := s.db.UpdateSubmission(ctx, refID, string(state), len(outcome.Attempts),
		outcome.ConfirmationID, outcome.ErrorCode, outcome.Detail); err != nil {
		return nil, err
	}
	if err := s.db.LedgerOutcome(ctx, row.Digest, string(state), outcome.ConfirmationID, outcome.ErrorCode); err != nil {
		return nil, err
	}
	return result, sendErr
}

// RejectedSubmission pairs a rejected submission with triage guidance.
type RejectedSubmission struct {
	RefID     string
	ErrorCode string
	Detail    string
	UpdatedAt time.Time
}

// RejectScan lists recorded rejections, newest first, for operator triage.
func (s *Service) RejectScan(ctx context.Context, limit int) ([]RejectedSubmission, error) {
	rows, err := s.db.ListSubmissionsByState(ctx, string(StateRejected), limit)
	if err != nil {
		return nil, err
	}
	out := make([]RejectedSubmission, 0, len(rows))
	for _, row := range rows {
		out = append(out, RejectedSubmission{
			RefID:     row.RefID,
			ErrorCode: row.ErrorCode,
			Detail:    row.Detail,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}
