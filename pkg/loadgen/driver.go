// Package loadgen drives the in-process decision gateway at a requested rate
// to exercise the engine's timing behavior. A single synchronous loop is
// enough; it never bypasses the gateway's per-key serialization.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/haasonsaas/limitd/pkg/ratelimit"
)

// Decider is the slice of the gateway the driver needs.
type Decider interface {
	Decide(ctx context.Context, apiKey, endpoint string) (ratelimit.Decision, error)
}

// Config describes one load test run.
type Config struct {
	APIKey            string
	RequestsPerSecond int
	DurationSeconds   int
	Endpoint          string
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %d", c.RequestsPerSecond)
	}
	if c.DurationSeconds <= 0 {
		return fmt.Errorf("duration_seconds must be positive, got %d", c.DurationSeconds)
	}
	return nil
}

// Result reports the totals of one run.
type Result struct {
	TotalRequests     int     `json:"total_requests"`
	Allowed           int     `json:"allowed"`
	Blocked           int     `json:"blocked"`
	SuccessRate       float64 `json:"success_rate"`
	ActualDuration    float64 `json:"actual_duration"`
	RequestsPerSecond int     `json:"requests_per_second"`
	DurationSeconds   int     `json:"duration_seconds"`
}

// Driver issues decisions spaced 1/rps apart until the configured request
// count is exhausted or the duration elapses.
type Driver struct {
	gateway Decider

	// sleep is swapped out by tests to run without wall-clock delays.
	sleep func(time.Duration)
}

func NewDriver(gateway Decider) *Driver {
	return &Driver{gateway: gateway, sleep: time.Sleep}
}

// Run executes one load test. The context cancels the loop between requests.
func (d *Driver) Run(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	total := cfg.RequestsPerSecond * cfg.DurationSeconds
	interval := time.Duration(float64(time.Second) / float64(cfg.RequestsPerSecond))
	deadline := time.Duration(cfg.DurationSeconds) * time.Second

	result := Result{
		TotalRequests:     total,
		RequestsPerSecond: cfg.RequestsPerSecond,
		DurationSeconds:   cfg.DurationSeconds,
	}

	start := time.Now()
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		decision, err := d.gateway.Decide(ctx, cfg.APIKey, cfg.Endpoint)
		if err != nil {
			return Result{}, err
		}
		if decision.Allowed {
			result.Allowed++
		} else {
			result.Blocked++
		}

		d.sleep(interval)
		if time.Since(start) > deadline {
			break
		}
	}

	result.ActualDuration = time.Since(start).Seconds()
	if total > 0 {
		result.SuccessRate = math.Round(float64(result.Allowed)/float64(total)*100*100) / 100
	}
	return result, nil
}
