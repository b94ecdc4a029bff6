package reliability

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffPolicy_Baseline(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 6, Base: 2 * time.Second, Cap: 60 * time.Second}

	assert.Equal(t, time.Duration(0), p.Baseline(1))
	assert.Equal(t, 2*time.Second, p.Baseline(2))
	assert.Equal(t, 4*time.Second, p.Baseline(3))
	assert.Equal(t, 8*time.Second, p.Baseline(4))
	assert.Equal(t, 16*time.Second, p.Baseline(5))
	assert.Equal(t, 32*time.Second, p.Baseline(6))
}

func TestBackoffPolicy_BaselineCapped(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 10, Base: 2 * time.Second, Cap: 10 * time.Second}

	assert.Equal(t, 8*time.Second, p.Baseline(4))
	assert.Equal(t, 10*time.Second, p.Baseline(5))
	assert.Equal(t, 10*time.Second, p.Baseline(9))
}

func TestBackoffPolicy_DelayJitterBounds(t *testing.T) {
	p := DefaultBackoffPolicy()
	rnd := rand.New(rand.NewSource(42))

	for attempt := 2; attempt <= p.MaxAttempts; attempt++ {
		base := p.Baseline(attempt)
		for i := 0; i < 200; i++ {
			d := p.Delay(attempt, rnd)
			require.GreaterOrEqual(t, d, base/2, "attempt %d", attempt)
			require.LessOrEqual(t, d, base, "attempt %d", attempt)
		}
	}
}

func TestBackoffPolicy_DelayFirstAttemptImmediate(t *testing.T) {
	p := DefaultBackoffPolicy()
	rnd := rand.New(rand.NewSource(1))
	assert.Equal(t, time.Duration(0), p.Delay(1, rnd))
}

func TestBackoffPolicy_DelayReproducibleBySeed(t *testing.T) {
	p := DefaultBackoffPolicy()

	first := rand.New(rand.NewSource(7))
	second := rand.New(rand.NewSource(7))
	for attempt := 2; attempt <= 3; attempt++ {
		for i := 0; i < 20; i++ {
			assert.Equal(t, p.Delay(attempt, first), p.Delay(attempt, second))
		}
	}
}
