package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jude27mad/tax-prep-app/pkg/reliability"
)

// OutcomeKind is the terminal classification of one Send.
type OutcomeKind string

const (
	OutcomeAccepted OutcomeKind = "accepted"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeErrored  OutcomeKind = "errored"
)

// Outcome is the result of delivering one submission, with the full attempt
// history attached for audit.
type Outcome struct {
	Kind           OutcomeKind
	ConfirmationID string
	ErrorCode      string
	Detail         string
	Attempts       []reliability.Attempt
}

// AttemptRecorder persists per-attempt audit records. Recording failures
// are logged, never fatal: audit must not block delivery.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, refID string, att reliability.Attempt) error
}

// Sender drives delivery of one envelope under the resilience policy.
type Sender struct {
	client  *Client
	breaker *reliability.Breaker
	policy  reliability.BackoffPolicy
	audit   AttemptRecorder
	logger  *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSender wires the client to the shared breaker and backoff policy.
// audit may be nil.
func NewSender(client *Client, breaker *reliability.Breaker, policy reliability.BackoffPolicy, audit AttemptRecorder, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts <= 0 {
		policy = reliability.DefaultBackoffPolicy()
	}
	return &Sender{
		client:  client,
		breaker: breaker,
		policy:  policy,
		audit:   audit,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepCtx,
	}
}

// Breaker exposes the shared breaker for the health surface.
func (s *Sender) Breaker() *reliability.Breaker { return s.breaker }

// SeedJitter reseeds the jitter source. Test use only.
func (s *Sender) SeedJitter(seed int64) {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	s.rnd = rand.New(rand.NewSource(seed))
}

// Send delivers envelopeXML, retrying transient failures up to the policy
// ceiling. The breaker is consulted before every attempt; a protocol
// rejection is terminal and never retried. Once an attempt is dispatched it
// runs to completion or timeout even if the caller abandons ctx; only the
// waits between attempts observe cancellation.
func (s *Sender) Send(ctx context.Context, refID string, envelopeXML []byte) (Outcome, error) {
	var attempts []reliability.Attempt
	var lastErr error

	for n := 1; n <= s.policy.MaxAttempts; n++ {
		// The wait runs before the breaker is consulted: once Allow admits
		// the single half-open probe the very next action must be the
		// dispatch, or an abandoned wait would strand the probe token and
		// wedge the breaker for the whole process.
		delay := time.Duration(0)
		if n > 1 {
			s.rndMu.Lock()
			delay = s.policy.Delay(n, s.rnd)
			s.rndMu.Unlock()
			if err := s.sleep(ctx, delay); err != nil {
				return Outcome{Kind: OutcomeErrored, Attempts: attempts}, err
			}
		}

		if err := s.breaker.Allow(); err != nil {
			if n == 1 {
				return Outcome{Kind: OutcomeErrored, Attempts: attempts}, err
			}
			return Outcome{
				Kind:     OutcomeErrored,
				Detail:   "circuit opened during retries",
				Attempts: attempts,
			}, fmt.Errorf("after %d attempts: %w", len(attempts), err)
		}

		att := reliability.Attempt{Number: n, StartedAt: time.Now().UTC(), Backoff: delay}

		// Dispatched attempts run to completion regardless of caller
		// cancellation; breaker and audit state must reflect the real
		// outcome.
		resp, err := s.client.Post(context.WithoutCancel(ctx), envelopeXML)
		switch {
		case err == nil:
			att.Outcome = reliability.AttemptSuccess
			s.record(ctx, refID, att)
			attempts = append(attempts, att)
			s.breaker.RecordSuccess()
			s.logger.Info("submission accepted",
				"ref_id", refID, "confirmation", resp.ConfirmationID, "attempts", n)
			return Outcome{
				Kind:           OutcomeAccepted,
				ConfirmationID: resp.ConfirmationID,
				Attempts:       attempts,
			}, nil

		case isRejection(err):
			var rej *RejectionError
			errors.As(err, &rej)
			att.Outcome = reliability.AttemptRejection
			att.Detail = maskIdentifiers(rej.Detail)
			s.record(ctx, refID, att)
			attempts = append(attempts, att)
			s.breaker.RecordRejection()
			s.logger.Warn("submission rejected by endpoint",
				"ref_id", refID, "code", rej.Code, "attempts", n)
			return Outcome{
				Kind:      OutcomeRejected,
				ErrorCode: rej.Code,
				Detail:    att.Detail,
				Attempts:  attempts,
			}, err

		default:
			var tr *TransmitError
			if errors.As(err, &tr) && tr.Timeout {
				att.Outcome = reliability.AttemptTimeout
			} else {
				att.Outcome = reliability.AttemptConnError
			}
			att.Detail = maskIdentifiers(err.Error())
			s.record(ctx, refID, att)
			attempts = append(attempts, att)
			s.breaker.RecordFailure()
			lastErr = err
			s.logger.Warn("transmission attempt failed",
				"ref_id", refID, "attempt", n, "outcome", string(att.Outcome))
		}
	}

	return Outcome{
		Kind:     OutcomeErrored,
		Detail:   maskIdentifiers(fmt.Sprintf("retries exhausted: %v", lastErr)),
		Attempts: attempts,
	}, fmt.Errorf("transmission failed after %d attempts: %w", s.policy.MaxAttempts, lastErr)
}

func (s *Sender) record(ctx context.Context, refID string, att reliability.Attempt) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordAttempt(ctx, refID, att); err != nil {
		s.logger.Error("failed to record transmission attempt",
			"ref_id", refID, "attempt", att.Number, "error", err)
	}
}

func isRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
