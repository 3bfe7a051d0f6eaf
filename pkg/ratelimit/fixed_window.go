package ratelimit

import "sync"

// fixedWindow counts admissions inside fixed-length windows and resets the
// counter when a window expires. Up to 2*maxRequests admissions can land
// across a window boundary; that is the documented trade-off of the variant,
// not a defect.
type fixedWindow struct {
	mu          sync.Mutex
	params      Params
	windowStart float64
	count       int
}

func newFixedWindow(p Params, start float64) *fixedWindow {
	return &fixedWindow{params: p, windowStart: start}
}

func (w *fixedWindow) Allow(now float64) (bool, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if now-w.windowStart >= w.params.WindowSeconds {
		w.windowStart = now
		w.count = 0
	}

	if w.count < w.params.MaxRequests {
		w.count++
		return true, w.params.MaxRequests - w.count
	}
	return false, 0
}

func (w *fixedWindow) Params() Params { return w.params }
