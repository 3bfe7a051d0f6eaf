package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/limitd/pkg/ratelimit"
)

func makeLog(apiKey string, alg ratelimit.Algorithm, allowed bool) ratelimit.RequestLog {
	return ratelimit.RequestLog{
		ID:        fmt.Sprintf("log-%d", time.Now().UnixNano()),
		APIKey:    apiKey,
		Endpoint:  "/api/protected/test",
		Algorithm: alg,
		Allowed:   allowed,
		Timestamp: time.Now().UTC(),
	}
}

func TestAggregatorCounts(t *testing.T) {
	agg := NewAggregator(10)

	agg.Record(makeLog("a", ratelimit.TokenBucket, true))
	agg.Record(makeLog("a", ratelimit.TokenBucket, true))
	agg.Record(makeLog("a", ratelimit.TokenBucket, false))
	agg.Record(makeLog("b", ratelimit.FixedWindow, true))

	summary := agg.Summary()
	require.Equal(t, int64(4), summary.TotalRequests)
	require.Equal(t, int64(3), summary.AllowedRequests)
	require.Equal(t, int64(1), summary.BlockedRequests)
	require.Equal(t, 75.0, summary.SuccessRate)

	tb := summary.AlgorithmStats[ratelimit.TokenBucket]
	require.Equal(t, int64(3), tb.Total)
	require.Equal(t, int64(2), tb.Allowed)
	require.Equal(t, int64(1), tb.Blocked)
	require.Equal(t, 66.67, tb.SuccessRate)

	fw := summary.AlgorithmStats[ratelimit.FixedWindow]
	require.Equal(t, int64(1), fw.Total)
	require.Equal(t, 100.0, fw.SuccessRate)

	// Totals always equal the sum of the per-algorithm slices.
	var sum int64
	for _, stats := range summary.AlgorithmStats {
		sum += stats.Total
	}
	require.Equal(t, summary.TotalRequests, sum)
}

func TestAggregatorEmptySummary(t *testing.T) {
	agg := NewAggregator(10)

	summary := agg.Summary()
	require.Equal(t, int64(0), summary.TotalRequests)
	require.Equal(t, 0.0, summary.SuccessRate)
	require.Empty(t, summary.AlgorithmStats)
}

func TestAggregatorRecentNewestFirst(t *testing.T) {
	agg := NewAggregator(10)

	for i := 0; i < 5; i++ {
		log := makeLog("a", ratelimit.TokenBucket, true)
		log.ID = fmt.Sprintf("log-%d", i)
		agg.Record(log)
	}

	recent := agg.Recent(3, "")
	require.Len(t, recent, 3)
	require.Equal(t, "log-4", recent[0].ID)
	require.Equal(t, "log-3", recent[1].ID)
	require.Equal(t, "log-2", recent[2].ID)
}

func TestAggregatorRingEviction(t *testing.T) {
	agg := NewAggregator(3)

	for i := 0; i < 5; i++ {
		log := makeLog("a", ratelimit.TokenBucket, true)
		log.ID = fmt.Sprintf("log-%d", i)
		agg.Record(log)
	}

	recent := agg.Recent(10, "")
	require.Len(t, recent, 3)
	require.Equal(t, "log-4", recent[0].ID)
	require.Equal(t, "log-2", recent[2].ID)

	// Counters are not bounded by the ring.
	require.Equal(t, int64(5), agg.Summary().TotalRequests)
}

func TestAggregatorRecentFiltersByKey(t *testing.T) {
	agg := NewAggregator(10)

	agg.Record(makeLog("a", ratelimit.TokenBucket, true))
	agg.Record(makeLog("b", ratelimit.TokenBucket, false))
	agg.Record(makeLog("a", ratelimit.TokenBucket, true))

	recent := agg.Recent(10, "a")
	require.Len(t, recent, 2)
	for _, log := range recent {
		require.Equal(t, "a", log.APIKey)
	}
}

func TestAggregatorReset(t *testing.T) {
	agg := NewAggregator(10)

	agg.Record(makeLog("a", ratelimit.TokenBucket, true))
	agg.Record(makeLog("a", ratelimit.LeakyBucket, false))
	agg.Reset()

	summary := agg.Summary()
	require.Equal(t, int64(0), summary.TotalRequests)
	require.Equal(t, int64(0), summary.AllowedRequests)
	require.Equal(t, int64(0), summary.BlockedRequests)
	require.Empty(t, summary.AlgorithmStats)
	require.Empty(t, agg.Recent(10, ""))
}
