package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchPeriod(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
		wantErr bool
	}{
		{seconds: 5, want: 5 * time.Second},
		{seconds: 1, want: time.Second},
		{seconds: 0, wantErr: true},
		{seconds: -3, wantErr: true},
	}

	for _, tt := range tests {
		got, err := watchPeriod(tt.seconds)
		if tt.wantErr {
			assert.Error(t, err, "seconds %d", tt.seconds)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestIsTxHash(t *testing.T) {
	assert.True(t, isTxHash("0x"+strings.Repeat("ab", 32)))
	assert.False(t, isTxHash(strings.Repeat("ab", 32)), "missing 0x prefix")
	assert.False(t, isTxHash("0x"+strings.Repeat("ab", 20)), "address length")
	assert.False(t, isTxHash("0x"+strings.Repeat("zz", 32)))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0x1234...abcd", shortHash("0x1234567890abcdef1234567890abcd"))
	assert.Equal(t, "0x12", shortHash("0x12"))
}

