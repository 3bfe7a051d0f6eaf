package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func swParams(max int, window float64) Params {
	return Params{Algorithm: SlidingWindow, MaxRequests: max, WindowSeconds: window}
}

func TestSlidingWindowInitialBurst(t *testing.T) {
	lim := New(swParams(5, 10), 0)

	for i := 0; i < 5; i++ {
		allowed, _ := lim.Allow(0)
		require.True(t, allowed, "request %d", i)
	}
	allowed, remaining := lim.Allow(0)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)
}

func TestSlidingWindowWeightedDecay(t *testing.T) {
	lim := New(swParams(5, 10), 0)

	for i := 0; i < 5; i++ {
		lim.Allow(0)
	}

	// At t=11 the previous window still weighs 0.9, so the estimate starts
	// at 4.5: one admission fits, the rest are blocked.
	var admitted int
	for i := 0; i < 5; i++ {
		if allowed, _ := lim.Allow(11); allowed {
			admitted++
		}
	}
	require.Equal(t, 1, admitted)
}

func TestSlidingWindowResetsAfterLongIdle(t *testing.T) {
	lim := New(swParams(5, 10), 0)

	for i := 0; i < 5; i++ {
		lim.Allow(0)
	}

	// Two full windows later nothing carries over.
	for i := 0; i < 5; i++ {
		allowed, _ := lim.Allow(30)
		require.True(t, allowed, "request %d", i)
	}
}

func TestSlidingWindowSmoothnessBound(t *testing.T) {
	// With one request every half second, every interval of one window
	// length holds fewer than 2N admissions, unlike the fixed window's
	// boundary burst.
	const n = 5
	lim := New(swParams(n, 10), 0)

	var admissions []float64
	for now := 0.0; now < 60; now += 0.5 {
		if allowed, _ := lim.Allow(now); allowed {
			admissions = append(admissions, now)
		}
	}

	for i := range admissions {
		count := 0
		for _, ts := range admissions {
			if ts >= admissions[i] && ts < admissions[i]+10 {
				count++
			}
		}
		require.LessOrEqual(t, count, 2*n-1, "interval starting at %g", admissions[i])
	}
}
