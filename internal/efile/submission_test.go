package efile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmission_HappyPath(t *testing.T) {
	sub := NewSubmission("00000001")
	assert.Equal(t, StateDrafted, sub.State)

	require.NoError(t, sub.Transition(StateValidated))
	require.NoError(t, sub.Transition(StateTransmitting))
	require.NoError(t, sub.Transition(StateAccepted))

	assert.Contains(t, sub.Transitions, StateValidated)
	assert.Contains(t, sub.Transitions, StateAccepted)
}

func TestSubmission_TransmittingMayRevertToValidated(t *testing.T) {
	sub := NewSubmission("00000001")
	require.NoError(t, sub.Transition(StateValidated))
	require.NoError(t, sub.Transition(StateTransmitting))
	require.NoError(t, sub.Transition(StateValidated))
	require.NoError(t, sub.Transition(StateTransmitting))
	require.NoError(t, sub.Transition(StateErrored))
}

func TestSubmission_IllegalTransitions(t *testing.T) {
	sub := NewSubmission("00000001")
	assert.Error(t, sub.Transition(StateTransmitting), "drafted cannot transmit")
	assert.Error(t, sub.Transition(StateAccepted), "drafted cannot accept")

	require.NoError(t, sub.Transition(StateValidated))
	require.NoError(t, sub.Transition(StateTransmitting))
	require.NoError(t, sub.Transition(StateRejected))

	assert.Error(t, sub.Transition(StateValidated), "rejected is terminal")
	assert.Error(t, sub.Transition(StateAccepted), "rejected is terminal")
}
