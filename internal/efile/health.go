package efile

import (
	"context"
	"sort"

	"github.com/jude27mad/tax-prep-app/pkg/reliability"
	"github.com/jude27mad/tax-prep-app/pkg/schema"
)

// Health is the snapshot the external status endpoint polls.
type Health struct {
	Environment     string
	Breaker         reliability.Snapshot
	LastAcceptedRef string
	SchemaVersions  []string
	DigestAlgorithm string
	TransmitGate    []GateEntry
}

// Health reports current breaker state, the last accepted submission
// reference, and the schema/digest versions in use.
func (s *Service) Health(ctx context.Context) (*Health, error) {
	h := &Health{
		Environment:     s.cfg.Efile.Environment,
		Breaker:         s.sender.Breaker().Snapshot(),
		DigestAlgorithm: "sha256",
		TransmitGate:    TransmitGate(s.cfg.Features.Transmit2025),
	}

	for _, id := range schema.Versions() {
		h.SchemaVersions = append(h.SchemaVersions, id.String())
	}
	sort.Strings(h.SchemaVersions)

	accepted, err := s.db.ListSubmissionsByState(ctx, string(StateAccepted), 1)
	if err != nil {
		return nil, err
	}
	if len(accepted) > 0 {
		h.LastAcceptedRef = accepted[0].RefID
	}
	return h, nil
}
