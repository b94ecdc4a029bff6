package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jude27mad/tax-prep-app/pkg/reliability"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "efile.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNextRef_Monotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 20; i++ {
		n, err := s.NextRef(ctx)
		require.NoError(t, err)
		require.Equal(t, prev+1, n)
		prev = n
	}

	last, err := s.LastRef(ctx)
	require.NoError(t, err)
	assert.Equal(t, prev, last)
}

func TestNextRef_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efile.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := s.NextRef(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.NextRef(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestNextRef_ConcurrentAllocationsDistinct(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const workers = 16
	var (
		mu   sync.Mutex
		seen = map[int64]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.NextRef(ctx)
			assert.NoError(t, err)
			mu.Lock()
			assert.False(t, seen[n], "reference %d issued twice", n)
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers)
}

func TestCheckAndRecord_FirstInsertWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry, inserted, err := s.CheckAndRecord(ctx, "digest-a", "00000001")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "00000001", entry.RefID)
	assert.Equal(t, "pending", entry.Outcome)

	entry, inserted, err = s.CheckAndRecord(ctx, "digest-a", "00000002")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "00000001", entry.RefID, "prior entry must come back on duplicate")
}

func TestCheckAndRecord_ConcurrentSingleWinner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const workers = 10
	var (
		wins sync.Map
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, inserted, err := s.CheckAndRecord(ctx, "digest-race", "ref")
			assert.NoError(t, err)
			if inserted {
				wins.Store(n, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	wins.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count, "exactly one caller may observe a new digest")
}

func TestLedgerOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.CheckAndRecord(ctx, "digest-b", "00000003")
	require.NoError(t, err)
	require.NoError(t, s.LedgerOutcome(ctx, "digest-b", "accepted", "CONF-9", ""))

	entry, inserted, err := s.CheckAndRecord(ctx, "digest-b", "00000004")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "accepted", entry.Outcome)
	assert.Equal(t, "CONF-9", entry.ConfirmationID)
}

func TestSubmissionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSubmission(ctx, "00000001", "digest-c", "validated", []byte("<xml/>")))
	require.NoError(t, s.UpdateSubmission(ctx, "00000001", "accepted", 2, "CONF-1", "", ""))

	sub, err := s.GetSubmission(ctx, "00000001")
	require.NoError(t, err)
	assert.Equal(t, "accepted", sub.State)
	assert.Equal(t, 2, sub.AttemptCount)
	assert.Equal(t, "CONF-1", sub.ConfirmationID)
	assert.Equal(t, []byte("<xml/>"), sub.Envelope)
}

func TestUpdateSubmission_MissingRow(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateSubmission(context.Background(), "ZZZZZZZZ", "accepted", 1, "", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListSubmissionsByState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSubmission(ctx, "00000001", "d1", "rejected", []byte("a")))
	require.NoError(t, s.CreateSubmission(ctx, "00000002", "d2", "accepted", []byte("b")))
	require.NoError(t, s.CreateSubmission(ctx, "00000003", "d3", "rejected", []byte("c")))

	rejected, err := s.ListSubmissionsByState(ctx, "rejected", 0)
	require.NoError(t, err)
	require.Len(t, rejected, 2)
	for _, sub := range rejected {
		assert.Equal(t, "rejected", sub.State)
	}
}

func TestAttempts_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordAttempt(ctx, "00000001", reliability.Attempt{
		Number: 1, StartedAt: started, Outcome: reliability.AttemptTimeout, Backoff: 0,
	}))
	require.NoError(t, s.RecordAttempt(ctx, "00000001", reliability.Attempt{
		Number: 2, StartedAt: started.Add(2 * time.Second), Outcome: reliability.AttemptSuccess,
		Backoff: 1500 * time.Millisecond, Detail: "recovered",
	}))

	atts, err := s.Attempts(ctx, "00000001")
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Equal(t, reliability.AttemptTimeout, atts[0].Outcome)
	assert.Equal(t, 2, atts[1].Number)
	assert.Equal(t, 1500*time.Millisecond, atts[1].Backoff)
	assert.Equal(t, "recovered", atts[1].Detail)
}

func TestPurgeRetention_Selective(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2031, 3, 2, 0, 0, 0, 0, time.UTC)

	old := &RetentionRow{
		ID: "rec-old", RefID: "00000001", Kind: "t183-consent", SubjectMasked: "***-***-6789",
		SignedAt: now.AddDate(-6, 0, -1), PurgeAfter: now.Add(-time.Hour),
		Nonce: []byte{1}, Payload: []byte{2}, CreatedAt: now.AddDate(-6, 0, -1),
	}
	fresh := &RetentionRow{
		ID: "rec-new", RefID: "00000002", Kind: "t183-consent", SubjectMasked: "***-***-1234",
		SignedAt: now, PurgeAfter: now.AddDate(6, 0, 0),
		Nonce: []byte{3}, Payload: []byte{4}, CreatedAt: now,
	}
	require.NoError(t, s.InsertRetention(ctx, old))
	require.NoError(t, s.InsertRetention(ctx, fresh))

	purged, err := s.PurgeRetention(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec-old"}, purged)

	_, err = s.GetRetention(ctx, "00000001", "t183-consent")
	assert.Error(t, err)
	kept, err := s.GetRetention(ctx, "00000002", "t183-consent")
	require.NoError(t, err)
	assert.Equal(t, "rec-new", kept.ID)

	// Idempotent: nothing left to purge.
	purged, err = s.PurgeRetention(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, purged)
}
