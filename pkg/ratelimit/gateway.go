package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnknownKey reports a decision request for an api key the store has never
// issued. Unknown keys are rejected before any limiter state is touched and
// are never recorded to analytics.
var ErrUnknownKey = errors.New("unknown api key")

// DefaultParams limit keys that were issued but never configured.
var DefaultParams = Params{
	Algorithm:     TokenBucket,
	MaxRequests:   100,
	WindowSeconds: 60,
}

// KeyIndex answers whether an api key exists. Implemented by the persistence
// layer.
type KeyIndex interface {
	HasAPIKey(ctx context.Context, apiKey string) (bool, error)
}

// RequestLog is the record emitted for every decision, successful or not.
type RequestLog struct {
	ID             string    `json:"id"`
	APIKey         string    `json:"api_key"`
	Endpoint       string    `json:"endpoint"`
	Algorithm      Algorithm `json:"algorithm"`
	Allowed        bool      `json:"allowed"`
	RemainingQuota int       `json:"remaining_quota"`
	Timestamp      time.Time `json:"timestamp"`
}

// LogSink receives decision records for persistence. Appends are best-effort:
// a failed append never affects the decision already returned.
type LogSink interface {
	AppendLog(ctx context.Context, log RequestLog) error
}

// Recorder receives every decision synchronously, before Decide returns.
type Recorder interface {
	Record(log RequestLog)
}

// Decision is the outcome of one gateway call.
type Decision struct {
	Allowed        bool
	Algorithm      Algorithm
	RemainingQuota int
	Timestamp      time.Time
}

// Gateway is the front door of the engine. It resolves the key, runs the
// limiter under its own mutex, records analytics synchronously, and hands the
// log record to a background writer for persistence.
type Gateway struct {
	keys     KeyIndex
	registry *Registry
	recorder Recorder
	clock    Clock
	logger   zerolog.Logger
	defaults Params

	logCh     chan RequestLog
	done      chan struct{}
	closeOnce sync.Once
}

// GatewayOptions tune construction; zero values select the defaults.
type GatewayOptions struct {
	// Defaults replace DefaultParams for unconfigured keys.
	Defaults Params
	// QueueSize bounds the asynchronous persistence queue (default 1024).
	QueueSize int
}

func NewGateway(keys KeyIndex, registry *Registry, recorder Recorder, sink LogSink, clock Clock, logger zerolog.Logger, opts GatewayOptions) *Gateway {
	defaults := opts.Defaults
	if defaults == (Params{}) {
		defaults = DefaultParams
	}
	size := opts.QueueSize
	if size <= 0 {
		size = 1024
	}
	g := &Gateway{
		keys:     keys,
		registry: registry,
		recorder: recorder,
		clock:    clock,
		logger:   logger.With().Str("component", "gateway").Logger(),
		defaults: defaults,
		logCh:    make(chan RequestLog, size),
		done:     make(chan struct{}),
	}
	go g.writeLogs(sink)
	return g
}

// Decide runs the rate limit check for one request. It returns ErrUnknownKey
// for keys the store has never issued and passes through errors from the key
// index or config source; every other outcome is a Decision.
func (g *Gateway) Decide(ctx context.Context, apiKey, endpoint string) (Decision, error) {
	known, err := g.keys.HasAPIKey(ctx, apiKey)
	if err != nil {
		return Decision{}, err
	}
	if !known {
		return Decision{}, ErrUnknownKey
	}

	lim, err := g.registry.Ensure(apiKey, g.defaults)
	if err != nil {
		return Decision{}, err
	}

	allowed, remaining := lim.Allow(g.clock.Now())

	log := RequestLog{
		ID:             uuid.NewString(),
		APIKey:         apiKey,
		Endpoint:       endpoint,
		Algorithm:      lim.Params().Algorithm,
		Allowed:        allowed,
		RemainingQuota: remaining,
		Timestamp:      time.Now().UTC(),
	}

	g.recorder.Record(log)
	g.enqueue(log)

	return Decision{
		Allowed:        allowed,
		Algorithm:      log.Algorithm,
		RemainingQuota: remaining,
		Timestamp:      log.Timestamp,
	}, nil
}

// enqueue hands a log to the background writer, evicting the oldest queued
// record when the queue is full. Telemetry persistence is best-effort.
func (g *Gateway) enqueue(log RequestLog) {
	for {
		select {
		case g.logCh <- log:
			return
		default:
		}
		select {
		case dropped := <-g.logCh:
			g.logger.Warn().Str("log_id", dropped.ID).Msg("Persistence queue full, dropping oldest log")
		default:
		}
	}
}

func (g *Gateway) writeLogs(sink LogSink) {
	defer close(g.done)
	for log := range g.logCh {
		if err := sink.AppendLog(context.Background(), log); err != nil {
			g.logger.Warn().Err(err).Str("log_id", log.ID).Msg("Failed to persist request log")
		}
	}
}

// Close stops the background writer after draining queued logs. Decide must
// not be called after Close.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		close(g.logCh)
		<-g.done
	})
}
