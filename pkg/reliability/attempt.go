package reliability

import "time"

// AttemptOutcome classifies one network round trip.
type AttemptOutcome string

const (
	AttemptSuccess   AttemptOutcome = "success"
	AttemptTimeout   AttemptOutcome = "timeout"
	AttemptConnError AttemptOutcome = "connection-error"
	AttemptRejection AttemptOutcome = "remote-rejection"
)

// Attempt is the audit record of one transmission round trip. Attempts are
// retained even when the round trip succeeds.
type Attempt struct {
	Number    int
	StartedAt time.Time
	Outcome   AttemptOutcome
	// Backoff is the delay applied before this attempt.
	Backoff time.Duration
	// Detail holds a masked error or response summary.
	Detail string
}
