package ratelimit

import (
	"errors"
	"sync"
)

// ErrNotConfigured reports that no rate limit config exists for an api key.
var ErrNotConfigured = errors.New("no rate limit configured for api key")

// ConfigSource yields the effective stored parameters for an api key. It is
// implemented by the persistence layer.
type ConfigSource interface {
	// LatestConfigFor returns the most recent parameters for apiKey, or
	// ErrNotConfigured when the key has none.
	LatestConfigFor(apiKey string) (Params, error)
}

// Registry owns the single live limiter instance per api key. Instances are
// created lazily from the config source and replaced atomically whenever the
// stored parameters stop matching the live ones, discarding accumulated
// state. The map lock is held only for lookups and swaps; decisions run under
// the instance's own mutex.
type Registry struct {
	source ConfigSource
	clock  Clock

	mu      sync.RWMutex
	entries map[string]Limiter
}

func NewRegistry(source ConfigSource, clock Clock) *Registry {
	return &Registry{
		source:  source,
		clock:   clock,
		entries: make(map[string]Limiter),
	}
}

// GetOrCreate returns the live instance enforcing apiKey's stored config, or
// ErrNotConfigured when the store has none. Use Ensure to fall back to
// default parameters instead.
func (r *Registry) GetOrCreate(apiKey string) (Limiter, error) {
	params, err := r.source.LatestConfigFor(apiKey)
	if err != nil {
		return nil, err
	}
	return r.ensure(apiKey, params), nil
}

// Ensure resolves apiKey like GetOrCreate but substitutes def when the key
// has no stored config, so the decision path stays total.
func (r *Registry) Ensure(apiKey string, def Params) (Limiter, error) {
	params, err := r.source.LatestConfigFor(apiKey)
	if errors.Is(err, ErrNotConfigured) {
		params = def
	} else if err != nil {
		return nil, err
	}
	return r.ensure(apiKey, params), nil
}

func (r *Registry) ensure(apiKey string, params Params) Limiter {
	r.mu.RLock()
	lim, ok := r.entries[apiKey]
	r.mu.RUnlock()
	if ok && lim.Params() == params {
		return lim
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have swapped while we upgraded the lock.
	if lim, ok := r.entries[apiKey]; ok && lim.Params() == params {
		return lim
	}
	lim = New(params, r.clock.Now())
	r.entries[apiKey] = lim
	return lim
}

// Reset discards every live instance.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.entries = make(map[string]Limiter)
	r.mu.Unlock()
}

// ActiveByAlgorithm counts live instances per algorithm tag.
func (r *Registry) ActiveByAlgorithm() map[Algorithm]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Algorithm]int, len(Algorithms))
	for _, alg := range Algorithms {
		counts[alg] = 0
	}
	for _, lim := range r.entries {
		counts[lim.Params().Algorithm]++
	}
	return counts
}
