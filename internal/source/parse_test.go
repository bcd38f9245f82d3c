package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1234.56", 1234.56},
		{"1234,56", 1234.56},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"-10", -10},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFloat(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseFloat_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "NaN", "Inf", "1.2.3x"} {
		_, err := parseFloat(in)
		assert.Error(t, err, in)
	}
}

func TestParseInt(t *testing.T) {
	n, err := parseInt("2019")
	require.NoError(t, err)
	assert.Equal(t, int64(2019), n)

	n, err = parseInt("2019.0")
	require.NoError(t, err)
	assert.Equal(t, int64(2019), n)

	for _, in := range []string{"", "2019.5", "abc"} {
		_, err := parseInt(in)
		assert.Error(t, err, in)
	}
}
