package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		elapsed  time.Duration
		expected string
	}{
		{0, "0s"},
		{9 * time.Second, "9s"},
		{2*time.Minute + 5*time.Second, "2m 05s"},
		{time.Hour + time.Minute + time.Second, "1h 01m 01s"},
		{26*time.Hour + 1500*time.Millisecond, "26h 00m 01s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatDuration(testNow.Add(-tt.elapsed), testNow), tt.elapsed.String())
	}

	assert.Equal(t, "", FormatDuration(time.Time{}, testNow))
	assert.Equal(t, "", FormatDuration(testNow.Add(time.Second), testNow))
}

func TestNormalizeTimestamp(t *testing.T) {
	assert.True(t, normalizeTimestamp(0).IsZero())
	assert.True(t, normalizeTimestamp(-5).IsZero())
	assert.Equal(t, int64(1700000000000), normalizeTimestamp(1700000000).UnixMilli())
	assert.Equal(t, int64(1700000000123), normalizeTimestamp(1700000000123).UnixMilli())
}
