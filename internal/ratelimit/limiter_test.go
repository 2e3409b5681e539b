package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostLimiterAllowsWithinBurst(t *testing.T) {
	l := NewHostLimiter(1, 3)
	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("http://origin.example/stream.ts"))
	}
}

func TestHostLimiterRejectsBeyondBurst(t *testing.T) {
	l := NewHostLimiter(1, 2)
	require.True(t, l.Allow("http://origin.example/a.ts"))
	require.True(t, l.Allow("http://origin.example/b.ts"))
	require.False(t, l.Allow("http://origin.example/c.ts"))
}

func TestHostLimiterTracksHostsIndependently(t *testing.T) {
	l := NewHostLimiter(1, 1)
	require.True(t, l.Allow("http://host-a.example/x.ts"))
	require.False(t, l.Allow("http://host-a.example/y.ts"))
	require.True(t, l.Allow("http://host-b.example/z.ts"))
}

func TestHostLimiterZeroRateDisablesLimiting(t *testing.T) {
	l := NewHostLimiter(0, 0)
	for i := 0; i < 10; i++ {
		require.True(t, l.Allow("http://origin.example/s.ts"))
	}
}
