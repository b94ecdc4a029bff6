package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRefID(t *testing.T) {
	assert.Equal(t, "00000001", FormatRefID(1))
	assert.Equal(t, "0000000A", FormatRefID(10))
	assert.Equal(t, "00000100", FormatRefID(36*36))
	assert.Equal(t, "00000000", FormatRefID(-5))
}

func TestFormatRefID_OrderPreserving(t *testing.T) {
	prev := FormatRefID(0)
	for seq := int64(1); seq < 50_000; seq += 997 {
		cur := FormatRefID(seq)
		require.Len(t, cur, 8)
		require.Greater(t, cur, prev, "seq %d", seq)
		prev = cur
	}
}

func TestParseRefID_RoundTrip(t *testing.T) {
	for _, seq := range []int64{0, 1, 35, 36, 100_000, 1_679_615} {
		got, err := ParseRefID(FormatRefID(seq))
		require.NoError(t, err)
		assert.Equal(t, seq, got)
	}

	_, err := ParseRefID("not a ref")
	assert.Error(t, err)
}

func TestMaskSIN(t *testing.T) {
	assert.Equal(t, "***-***-6789", MaskSIN("123456789"))
	assert.Equal(t, "***-***-****", MaskSIN("12345678"))
	assert.Equal(t, "***-***-****", MaskSIN("12345678X"))
	assert.Equal(t, "***-***-****", MaskSIN(""))
}
