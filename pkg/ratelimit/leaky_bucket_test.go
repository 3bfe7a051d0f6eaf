package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lbParams(max int, window float64) Params {
	return Params{Algorithm: LeakyBucket, MaxRequests: max, WindowSeconds: window}
}

func TestLeakyBucketFillsThenBlocks(t *testing.T) {
	lim := New(lbParams(5, 10), 0)

	wantRemaining := []int{4, 3, 2, 1, 0}
	for i, want := range wantRemaining {
		allowed, remaining := lim.Allow(0)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, want, remaining, "request %d", i)
	}

	for i := 0; i < 2; i++ {
		allowed, remaining := lim.Allow(0)
		require.False(t, allowed)
		require.Equal(t, 0, remaining)
	}
}

func TestLeakyBucketDrains(t *testing.T) {
	lim := New(lbParams(5, 10), 0) // leak = 0.5/s

	for i := 0; i < 7; i++ {
		lim.Allow(0)
	}

	// One whole request has leaked by t=2.
	allowed, remaining := lim.Allow(2)
	require.True(t, allowed)
	require.Equal(t, 0, remaining)

	allowed, _ = lim.Allow(2)
	require.False(t, allowed)
}

func TestLeakyBucketFractionalLeakAccumulates(t *testing.T) {
	lim := New(lbParams(2, 4), 0) // leak = 0.5/s

	lim.Allow(0)
	lim.Allow(0)

	// 1.5s is only 0.75 of a leak; nothing drains and the marker must not
	// advance, or the fraction would be lost.
	allowed, _ := lim.Allow(1.5)
	require.False(t, allowed)

	// By t=2 a full leak has accumulated since t=0.
	allowed, _ = lim.Allow(2)
	require.True(t, allowed)
}

func TestLeakyBucketQueueBound(t *testing.T) {
	lim := New(lbParams(3, 30), 0).(*leakyBucket)

	for now := 0.0; now < 10; now += 0.1 {
		lim.Allow(now)
		require.LessOrEqual(t, len(lim.queue), 3)
	}
}
