package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "100.00", FormatCents(10000))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "0.00", FormatCents(0))
	assert.Equal(t, "1234.56", FormatCents(123456))
	assert.Equal(t, "-3.21", FormatCents(-321))
}

func TestParseCents(t *testing.T) {
	cases := map[string]int64{
		"100.00":  10000,
		"100":     10000,
		" 0.05 ":  5,
		"1234.56": 123456,
		"-3.21":   -321,
	}
	for in, want := range cases {
		got, err := ParseCents(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseCents_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "10,00"} {
		_, err := ParseCents(in)
		assert.Error(t, err, in)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 10000, 999999999} {
		got, err := ParseCents(FormatCents(cents))
		require.NoError(t, err)
		assert.Equal(t, cents, got)
	}
}
