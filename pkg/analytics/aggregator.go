// Package analytics aggregates rate limit decisions in memory for the
// dashboard: process-wide counters sliced by algorithm plus a bounded ring of
// the most recent decision records.
package analytics

import (
	"math"
	"sync"

	"github.com/haasonsaas/limitd/pkg/ratelimit"
)

// DefaultRingSize bounds the recent-log ring when no size is configured.
const DefaultRingSize = 1000

// AlgorithmStats is the per-algorithm slice of the counters.
type AlgorithmStats struct {
	Total       int64   `json:"total"`
	Allowed     int64   `json:"allowed"`
	Blocked     int64   `json:"blocked"`
	SuccessRate float64 `json:"success_rate"`
}

// Summary is the dashboard view of the counters.
type Summary struct {
	TotalRequests   int64                                  `json:"total_requests"`
	AllowedRequests int64                                  `json:"allowed_requests"`
	BlockedRequests int64                                  `json:"blocked_requests"`
	SuccessRate     float64                                `json:"success_rate"`
	AlgorithmStats  map[ratelimit.Algorithm]AlgorithmStats `json:"algorithm_stats"`
}

type counter struct {
	total   int64
	allowed int64
	blocked int64
}

// Aggregator is safe for concurrent use. Its mutex is acquired only after the
// limiter instance mutex has been released, so ring order is the
// serialization order at this lock.
type Aggregator struct {
	mu        sync.Mutex
	totals    counter
	byAlg     map[ratelimit.Algorithm]*counter
	ring      []ratelimit.RequestLog
	ringStart int
	ringLen   int
}

func NewAggregator(ringSize int) *Aggregator {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &Aggregator{
		byAlg: make(map[ratelimit.Algorithm]*counter),
		ring:  make([]ratelimit.RequestLog, ringSize),
	}
}

// Record folds one decision into the counters and the ring, evicting the
// oldest entry when the ring is full.
func (a *Aggregator) Record(log ratelimit.RequestLog) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totals.total++
	c := a.byAlg[log.Algorithm]
	if c == nil {
		c = &counter{}
		a.byAlg[log.Algorithm] = c
	}
	c.total++
	if log.Allowed {
		a.totals.allowed++
		c.allowed++
	} else {
		a.totals.blocked++
		c.blocked++
	}

	idx := (a.ringStart + a.ringLen) % len(a.ring)
	a.ring[idx] = log
	if a.ringLen < len(a.ring) {
		a.ringLen++
	} else {
		a.ringStart = (a.ringStart + 1) % len(a.ring)
	}
}

// Summary snapshots the counters. Success rates are percentages rounded to
// two decimal places; zero totals report a rate of 0.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := make(map[ratelimit.Algorithm]AlgorithmStats, len(a.byAlg))
	for alg, c := range a.byAlg {
		stats[alg] = AlgorithmStats{
			Total:       c.total,
			Allowed:     c.allowed,
			Blocked:     c.blocked,
			SuccessRate: successRate(c.allowed, c.total),
		}
	}
	return Summary{
		TotalRequests:   a.totals.total,
		AllowedRequests: a.totals.allowed,
		BlockedRequests: a.totals.blocked,
		SuccessRate:     successRate(a.totals.allowed, a.totals.total),
		AlgorithmStats:  stats,
	}
}

// Recent returns up to limit logs, newest first. An apiKey filter of ""
// matches everything.
func (a *Aggregator) Recent(limit int, apiKey string) []ratelimit.RequestLog {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 || limit > a.ringLen {
		limit = a.ringLen
	}
	out := make([]ratelimit.RequestLog, 0, limit)
	for i := a.ringLen - 1; i >= 0 && len(out) < limit; i-- {
		log := a.ring[(a.ringStart+i)%len(a.ring)]
		if apiKey != "" && log.APIKey != apiKey {
			continue
		}
		out = append(out, log)
	}
	return out
}

// Reset zeroes the counters and clears the ring.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totals = counter{}
	a.byAlg = make(map[ratelimit.Algorithm]*counter)
	a.ringStart = 0
	a.ringLen = 0
}

func successRate(allowed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(allowed)/float64(total)*100*100) / 100
}
