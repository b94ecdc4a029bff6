package reliability

import (
	"math/rand"
	"time"
)

// BackoffPolicy controls retry pacing for transient transmission failures.
type BackoffPolicy struct {
	// MaxAttempts is the attempt ceiling, including the first try.
	MaxAttempts int
	// Base is the delay before the second attempt.
	Base time.Duration
	// Cap bounds the unjittered delay.
	Cap time.Duration
}

// DefaultBackoffPolicy returns the pacing used when none is configured.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 3, Base: 2 * time.Second, Cap: 60 * time.Second}
}

// Baseline returns the unjittered delay applied before the given attempt
// number (1-based): base * 2^(attempt-1), capped. Attempt 1 has no delay.
func (p BackoffPolicy) Baseline(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.Base
	for i := 2; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		d = p.Cap
	}
	return d
}

// Delay returns the jittered delay before the given attempt: half the
// baseline held fixed, the other half drawn from rnd. This keeps concurrent
// retry storms spread out while preserving the exponential curve.
func (p BackoffPolicy) Delay(attempt int, rnd *rand.Rand) time.Duration {
	base := p.Baseline(attempt)
	if base <= 0 {
		return 0
	}
	half := base / 2
	return half + time.Duration(rnd.Int63n(int64(half)+1))
}
