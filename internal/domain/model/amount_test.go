package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountString(t *testing.T) {
	assert.Equal(t, "1.0100", Amount(10100).String())
	assert.Equal(t, "1.6998", Amount(16998).String())
	assert.Equal(t, "0.0005", Amount(5).String())
	assert.Equal(t, "12.0000", Amount(120000).String())
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("1.2345")
	require.NoError(t, err)
	assert.Equal(t, Amount(12345), a)

	a, err = ParseAmount(" 1.0100 ")
	require.NoError(t, err)
	assert.Equal(t, Amount(10100), a)
}

func TestParseAmount_RejectsOtherPrecisions(t *testing.T) {
	for _, in := range []string{"1.234", "1.23456", "1", "", ".1234", "a.1234", "1.12x4", "-1.0000"} {
		_, err := ParseAmount(in)
		assert.Errorf(t, err, "input %q should be rejected", in)
	}
}

func TestParseAmount_Range(t *testing.T) {
	a, err := ParseAmount("922337203685477.5807")
	require.NoError(t, err)
	assert.Equal(t, Amount(math.MaxInt64), a)

	for _, in := range []string{"922337203685477.5808", "922337203685478.0000", "9223372036854775807.0000"} {
		_, err := ParseAmount(in)
		assert.Errorf(t, err, "input %q should overflow", in)
	}
}

func TestAmountRoundTrip(t *testing.T) {
	for _, v := range []Amount{10100, 13337, 16998} {
		got, err := ParseAmount(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
