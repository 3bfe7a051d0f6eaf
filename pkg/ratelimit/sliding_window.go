package ratelimit

import (
	"math"
	"sync"
)

// slidingWindow approximates a true sliding window by weighting the previous
// window's count linearly as it ages out. After a burst at the end of a
// window, admissions in the next window are spread out as that burst's weight
// decays; a single interval of one window length can still hold up to
// 2*maxRequests admissions when a full burst lands just before a boundary.
type slidingWindow struct {
	mu            sync.Mutex
	params        Params
	currentStart  float64
	currentCount  int
	previousCount int
}

func newSlidingWindow(p Params, start float64) *slidingWindow {
	return &slidingWindow{params: p, currentStart: start}
}

func (w *slidingWindow) Allow(now float64) (bool, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	window := w.params.WindowSeconds
	elapsed := now - w.currentStart
	if elapsed >= window {
		if elapsed >= 2*window {
			// Idle for a full cycle: nothing from the previous window can
			// still weigh in.
			w.previousCount = 0
			w.currentCount = 0
			w.currentStart = now
		} else {
			w.previousCount = w.currentCount
			w.currentCount = 0
			w.currentStart += window
		}
		elapsed = now - w.currentStart
	}

	weight := (window - elapsed) / window
	estimate := float64(w.previousCount)*weight + float64(w.currentCount)

	if estimate < float64(w.params.MaxRequests) {
		w.currentCount++
		remaining := int(math.Floor(float64(w.params.MaxRequests) - estimate - 1))
		if remaining < 0 {
			remaining = 0
		}
		return true, remaining
	}
	return false, 0
}

func (w *slidingWindow) Params() Params { return w.params }
