package ratelimit

import "sync"

// leakyBucket queues admission timestamps and drains whole entries at a
// constant rate. A request is admitted while the queue has room.
type leakyBucket struct {
	mu       sync.Mutex
	params   Params
	capacity int
	leakRate float64 // requests per second
	queue    []float64
	lastLeak float64
}

func newLeakyBucket(p Params, start float64) *leakyBucket {
	return &leakyBucket{
		params:   p,
		capacity: p.MaxRequests,
		leakRate: p.rate(),
		queue:    make([]float64, 0, p.MaxRequests),
		lastLeak: start,
	}
}

func (b *leakyBucket) Allow(now float64) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now - b.lastLeak
	if elapsed < 0 {
		elapsed = 0
	}
	toLeak := int(elapsed * b.leakRate)
	if toLeak > len(b.queue) {
		toLeak = len(b.queue)
	}
	if toLeak > 0 {
		b.queue = b.queue[toLeak:]
		// Only advance the leak marker when something drained, so fractional
		// elapsed time keeps accumulating toward the next whole leak.
		b.lastLeak = now
	}

	if len(b.queue) < b.capacity {
		b.queue = append(b.queue, now)
		return true, b.capacity - len(b.queue)
	}
	return false, 0
}

func (b *leakyBucket) Params() Params { return b.params }
