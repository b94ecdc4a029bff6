package efile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransmitRestriction(t *testing.T) {
	assert.Empty(t, TransmitRestriction(2024, false))
	assert.Contains(t, TransmitRestriction(2025, false), "not yet available")
	assert.Empty(t, TransmitRestriction(2025, true))
	assert.Contains(t, TransmitRestriction(2023, false), "not supported")
	assert.Contains(t, TransmitRestriction(2030, false), "not supported")
}

func TestCanTransmit(t *testing.T) {
	assert.True(t, CanTransmit(2024, false))
	assert.False(t, CanTransmit(2025, false))
	assert.True(t, CanTransmit(2025, true))
	assert.False(t, CanTransmit(2016, false))
}

func TestTransmitGate(t *testing.T) {
	gate := TransmitGate(false)
	require.Len(t, gate, 2)
	assert.Equal(t, 2024, gate[0].Year)
	assert.True(t, gate[0].Allowed)
	assert.Equal(t, 2025, gate[1].Year)
	assert.False(t, gate[1].Allowed)
	assert.NotEmpty(t, gate[1].Message)

	gate = TransmitGate(true)
	assert.True(t, gate[1].Allowed)
}
