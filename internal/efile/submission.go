package efile

import (
	"fmt"
	"time"
)

// SubmissionState is the lifecycle state of one logical submission.
type SubmissionState string

const (
	StateDrafted      SubmissionState = "drafted"
	StateValidated    SubmissionState = "validated"
	StateTransmitting SubmissionState = "transmitting"
	StateAccepted     SubmissionState = "accepted"
	StateRejected     SubmissionState = "rejected"
	StateErrored      SubmissionState = "errored"
)

// legal transitions; terminal states have no successors.
var transitions = map[SubmissionState][]SubmissionState{
	StateDrafted:      {StateValidated},
	StateValidated:    {StateTransmitting},
	StateTransmitting: {StateAccepted, StateRejected, StateErrored, StateValidated},
}

// Submission tracks one logical filing attempt through its lifecycle with a
// timestamp per transition.
type Submission struct {
	RefID        string
	Digest       string
	State        SubmissionState
	Transitions  map[SubmissionState]time.Time
	AttemptCount int
}

// NewSubmission creates a drafted submission.
func NewSubmission(refID string) *Submission {
	return &Submission{
		RefID:       refID,
		State:       StateDrafted,
		Transitions: map[SubmissionState]time.Time{StateDrafted: time.Now().UTC()},
	}
}

// Transition moves the submission to a new state, rejecting transitions the
// lifecycle does not allow.
func (s *Submission) Transition(to SubmissionState) error {
	for _, next := range transitions[s.State] {
		if next == to {
			s.State = to
			s.Transitions[to] = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("illegal submission transition %s -> %s", s.State, to)
}
