package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jude27mad/tax-prep-app/pkg/reliability"
)

// memRecorder captures attempt audit records in memory.
type memRecorder struct {
	mu       sync.Mutex
	attempts []reliability.Attempt
}

func (r *memRecorder) RecordAttempt(_ context.Context, _ string, att reliability.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, att)
	return nil
}

func (r *memRecorder) recorded() []reliability.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reliability.Attempt(nil), r.attempts...)
}

func newTestSender(srv *httptest.Server, breaker *reliability.Breaker, policy reliability.BackoffPolicy, audit AttemptRecorder) *Sender {
	client := newTestClient(srv, 200*time.Millisecond)
	s := NewSender(client, breaker, policy, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	s.SeedJitter(1)
	return s
}

func testPolicy(maxAttempts int) reliability.BackoffPolicy {
	return reliability.BackoffPolicy{MaxAttempts: maxAttempts, Base: time.Millisecond, Cap: 4 * time.Millisecond}
}

func TestSender_AcceptedFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(acceptedBody("CONF-1")))
	}))
	defer srv.Close()

	audit := &memRecorder{}
	s := newTestSender(srv, reliability.NewBreaker(reliability.BreakerConfig{}), testPolicy(3), audit)

	out, err := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, out.Kind)
	assert.Equal(t, "CONF-1", out.ConfirmationID)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, reliability.AttemptSuccess, out.Attempts[0].Outcome)
	assert.Len(t, audit.recorded(), 1)
}

func TestSender_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(acceptedBody("CONF-2")))
	}))
	defer srv.Close()

	s := newTestSender(srv, reliability.NewBreaker(reliability.BreakerConfig{}), testPolicy(3), nil)

	out, err := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, out.Kind)
	require.Len(t, out.Attempts, 3)
	assert.Equal(t, reliability.AttemptConnError, out.Attempts[0].Outcome)
	assert.Equal(t, reliability.AttemptConnError, out.Attempts[1].Outcome)
	assert.Equal(t, reliability.AttemptSuccess, out.Attempts[2].Outcome)
	assert.Equal(t, int32(3), calls.Load())

	// Success resets the breaker.
	assert.Equal(t, reliability.StateClosed, s.Breaker().Snapshot().State)
}

func TestSender_RejectionIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(rejectedBody("10021", "duplicate sbmt_ref_id")))
	}))
	defer srv.Close()

	s := newTestSender(srv, reliability.NewBreaker(reliability.BreakerConfig{}), testPolicy(3), nil)

	out, err := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	require.Error(t, err)
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.Equal(t, "10021", out.ErrorCode)
	assert.Equal(t, int32(1), calls.Load(), "rejections must not be retried")
}

func TestSender_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	audit := &memRecorder{}
	breaker := reliability.NewBreaker(reliability.BreakerConfig{FailureThreshold: 10, Cooldown: time.Minute})
	s := newTestSender(srv, breaker, testPolicy(3), audit)

	out, err := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	require.Error(t, err)
	assert.Equal(t, OutcomeErrored, out.Kind)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, audit.recorded(), 3)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestSender_BreakerOpensMidSend(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := reliability.NewBreaker(reliability.BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	s := newTestSender(srv, breaker, testPolicy(5), nil)

	out, err := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	require.ErrorIs(t, err, reliability.ErrCircuitOpen)
	assert.Equal(t, OutcomeErrored, out.Kind)
	assert.Equal(t, "circuit opened during retries", out.Detail)
	assert.Equal(t, int32(2), calls.Load(), "no attempt may be dispatched past the open breaker")
}

func TestSender_OpenBreakerFailsFastWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	breaker := reliability.NewBreaker(reliability.BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	breaker.RecordFailure()
	s := newTestSender(srv, breaker, testPolicy(3), nil)

	out, err := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	require.ErrorIs(t, err, reliability.ErrCircuitOpen)
	assert.Equal(t, OutcomeErrored, out.Kind)
	assert.Empty(t, out.Attempts)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSender_CancelledBetweenAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newTestSender(srv, reliability.NewBreaker(reliability.BreakerConfig{}), testPolicy(3), nil)
	s.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	out, err := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeErrored, out.Kind)
	require.Len(t, out.Attempts, 1)
}

func TestSender_CancelledWaitNeverStrandsHalfOpenProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	// Threshold 1 with a nanosecond cooldown: the breaker opens on the
	// first failure and is eligible for a half-open probe by the time the
	// retry loop comes back around.
	breaker := reliability.NewBreaker(reliability.BreakerConfig{FailureThreshold: 1, Cooldown: time.Nanosecond})
	s := newTestSender(srv, breaker, testPolicy(3), nil)
	s.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	_, err := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	require.ErrorIs(t, err, context.Canceled)

	// The abandoned wait must not have claimed the probe: a later caller
	// still gets one.
	require.NoError(t, breaker.Allow())
}

func TestSender_MasksIdentifiersInDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rejectedBody("40013", "SIN 123456789 does not match records")))
	}))
	defer srv.Close()

	s := newTestSender(srv, reliability.NewBreaker(reliability.BreakerConfig{}), testPolicy(1), nil)

	out, _ := s.Send(context.Background(), "00000001", []byte("<T619Transmission/>"))
	assert.NotContains(t, out.Detail, "123456789")
	assert.Contains(t, out.Detail, "***-***-6789")
}
