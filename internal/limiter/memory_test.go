package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_BlocksAfterMaxFailsAndResets(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemory(Policy{Window: time.Minute, MaxFails: 3, BlockFor: 5 * time.Minute})
	l.now = func() time.Time { return now }
	ip := HashIP("10.0.0.1")

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "a@x.io", ip)
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := l.Failure(ctx, "A@X.io", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 5*time.Minute, dur)

	ok, retry, err := l.Allow(ctx, "a@x.io", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, retry)

	// other address is unaffected
	ok, _, err = l.Allow(ctx, "a@x.io", HashIP("10.0.0.2"))
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(6 * time.Minute)
	ok, _, err = l.Allow(ctx, "a@x.io", ip)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Success(ctx, "a@x.io", ip))
	blocked, _, err = l.Failure(ctx, "a@x.io", ip)
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestMemory_WindowRestartsCount(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	l.now = func() time.Time { return now }

	blocked, _, _ := l.Failure(ctx, "a@x.io", nil)
	require.False(t, blocked)
	now = now.Add(2 * time.Minute)
	blocked, _, _ = l.Failure(ctx, "a@x.io", nil)
	require.False(t, blocked)
	blocked, _, _ = l.Failure(ctx, "a@x.io", nil)
	require.True(t, blocked)
}
