package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	testCases := []struct {
		input    string
		expected time.Duration
	}{
		{"1h", 3600 * time.Second},
		{"7d", 604800 * time.Second},
		{"2w", 1209600 * time.Second},
		{"1m", 2592000 * time.Second},
		{"1y", 31536000 * time.Second},
		{"0d", 0},
	}

	for _, test := range testCases {
		actual, err := ParsePeriod(test.input)
		require.NoError(t, err, test.input)
		require.Equal(t, test.expected, actual, test.input)
	}
}

func TestParsePeriodMalformed(t *testing.T) {
	for _, input := range []string{"invalid", "7", "d7", "", "7x"} {
		_, err := ParsePeriod(input)
		require.Error(t, err, input)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, input)
	}
}

func TestPeriodWindow(t *testing.T) {
	now := TimeFromMillis(1_700_000_000_000)

	from, to, err := PeriodWindow("7d", now)
	require.NoError(t, err)
	require.Equal(t, now, to)
	require.Equal(t, now.Add(-7*24*time.Hour), from)

	from, to, err = PeriodWindow("0d", now)
	require.NoError(t, err)
	require.Equal(t, now, to)
	require.Equal(t, now, from)
}
