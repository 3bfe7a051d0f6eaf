package ratelimit

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// memoryBackend fakes the persistence surface the gateway consumes.
type memoryBackend struct {
	*memorySource
	mu       sync.Mutex
	keys     map[string]bool
	appended []RequestLog
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		memorySource: newMemorySource(),
		keys:         make(map[string]bool),
	}
}

func (b *memoryBackend) addKey(apiKey string) {
	b.mu.Lock()
	b.keys[apiKey] = true
	b.mu.Unlock()
}

func (b *memoryBackend) HasAPIKey(_ context.Context, apiKey string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keys[apiKey], nil
}

func (b *memoryBackend) AppendLog(_ context.Context, log RequestLog) error {
	b.mu.Lock()
	b.appended = append(b.appended, log)
	b.mu.Unlock()
	return nil
}

// recordingSink captures synchronous analytics records.
type recordingSink struct {
	mu   sync.Mutex
	logs []RequestLog
}

func (r *recordingSink) Record(log RequestLog) {
	r.mu.Lock()
	r.logs = append(r.logs, log)
	r.mu.Unlock()
}

func (r *recordingSink) all() []RequestLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RequestLog, len(r.logs))
	copy(out, r.logs)
	return out
}

type gatewayEnv struct {
	backend  *memoryBackend
	recorder *recordingSink
	clock    *VirtualClock
	gateway  *Gateway
}

func newGatewayEnv(t *testing.T) gatewayEnv {
	t.Helper()
	backend := newMemoryBackend()
	recorder := &recordingSink{}
	clock := NewVirtualClock()
	registry := NewRegistry(backend, clock)
	gateway := NewGateway(backend, registry, recorder, backend, clock, zerolog.Nop(), GatewayOptions{})
	t.Cleanup(gateway.Close)
	return gatewayEnv{backend: backend, recorder: recorder, clock: clock, gateway: gateway}
}

func TestGatewayRejectsUnknownKey(t *testing.T) {
	env := newGatewayEnv(t)

	_, err := env.gateway.Decide(context.Background(), "nope", "/api/protected/test")
	require.ErrorIs(t, err, ErrUnknownKey)

	// Unknown keys never reach analytics.
	require.Empty(t, env.recorder.all())
}

func TestGatewayAppliesConfiguredLimit(t *testing.T) {
	env := newGatewayEnv(t)
	env.backend.addKey("k1")
	env.backend.set("k1", fwParams(2, 10))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		decision, err := env.gateway.Decide(ctx, "k1", "/api/protected/test")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.Equal(t, FixedWindow, decision.Algorithm)
	}

	decision, err := env.gateway.Decide(ctx, "k1", "/api/protected/test")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 0, decision.RemainingQuota)
}

func TestGatewayDefaultsUnconfiguredKey(t *testing.T) {
	env := newGatewayEnv(t)
	env.backend.addKey("fresh")

	ctx := context.Background()
	var allowed, blocked int
	for i := 0; i < 101; i++ {
		decision, err := env.gateway.Decide(ctx, "fresh", "/api/protected/test")
		require.NoError(t, err)
		if decision.Allowed {
			allowed++
		} else {
			blocked++
		}
		require.Equal(t, TokenBucket, decision.Algorithm)
	}
	require.Equal(t, 100, allowed)
	require.Equal(t, 1, blocked)
}

func TestGatewayRecordsEveryDecision(t *testing.T) {
	env := newGatewayEnv(t)
	env.backend.addKey("k1")
	env.backend.set("k1", fwParams(1, 10))

	ctx := context.Background()
	first, err := env.gateway.Decide(ctx, "k1", "/ep")
	require.NoError(t, err)
	second, err := env.gateway.Decide(ctx, "k1", "/ep")
	require.NoError(t, err)
	require.True(t, first.Allowed)
	require.False(t, second.Allowed)

	logs := env.recorder.all()
	require.Len(t, logs, 2)
	require.True(t, logs[0].Allowed)
	require.False(t, logs[1].Allowed)
	require.Equal(t, "k1", logs[0].APIKey)
	require.Equal(t, "/ep", logs[0].Endpoint)
	require.Equal(t, FixedWindow, logs[0].Algorithm)
	require.NotEmpty(t, logs[0].ID)
}

func TestGatewayPersistsLogsInBackground(t *testing.T) {
	env := newGatewayEnv(t)
	env.backend.addKey("k1")
	env.backend.set("k1", tbParams(5, 10))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := env.gateway.Decide(ctx, "k1", "/ep")
		require.NoError(t, err)
	}

	// Close drains the queue before returning.
	env.gateway.Close()

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	require.Len(t, env.backend.appended, 3)
}

func TestGatewayDeterministicUnderVirtualClock(t *testing.T) {
	type step struct {
		advance float64
		key     string
	}
	steps := []step{
		{0, "a"}, {0, "a"}, {0.5, "b"}, {0, "a"}, {2, "b"},
		{0, "a"}, {1, "a"}, {0, "b"}, {3, "a"}, {0, "b"},
	}

	run := func() []Decision {
		backend := newMemoryBackend()
		backend.addKey("a")
		backend.addKey("b")
		backend.set("a", tbParams(3, 6))
		backend.set("b", swParams(2, 4))
		clock := NewVirtualClock()
		registry := NewRegistry(backend, clock)
		gateway := NewGateway(backend, registry, &recordingSink{}, backend, clock, zerolog.Nop(), GatewayOptions{})
		defer gateway.Close()

		var decisions []Decision
		for _, s := range steps {
			clock.Advance(s.advance)
			d, err := gateway.Decide(context.Background(), s.key, "/ep")
			require.NoError(t, err)
			decisions = append(decisions, d)
		}
		return decisions
	}

	first := run()
	second := run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].Allowed, second[i].Allowed, "step %d", i)
		require.Equal(t, first[i].RemainingQuota, second[i].RemainingQuota, "step %d", i)
		require.Equal(t, first[i].Algorithm, second[i].Algorithm, "step %d", i)
	}
}

func TestGatewayReconfigurationResetsState(t *testing.T) {
	env := newGatewayEnv(t)
	env.backend.addKey("k1")
	env.backend.set("k1", fwParams(1, 100))

	ctx := context.Background()
	d, err := env.gateway.Decide(ctx, "k1", "/ep")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, _ = env.gateway.Decide(ctx, "k1", "/ep")
	require.False(t, d.Allowed)

	env.backend.set("k1", fwParams(2, 100))

	d, err = env.gateway.Decide(ctx, "k1", "/ep")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, FixedWindow, d.Algorithm)
	require.Equal(t, 1, d.RemainingQuota)
}
