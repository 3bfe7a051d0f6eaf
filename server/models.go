package main

import "time"

// APIKeyRecord identifies a tenant by an opaque bearer token.
type APIKeyRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `gorm:"uniqueIndex" json:"api_key"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// RateLimitConfigRecord binds an api key to limiter parameters. Inserts are
// never mutated; for a given api key the most recent record by created_at is
// the effective one.
type RateLimitConfigRecord struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	APIKey        string    `gorm:"index" json:"api_key"`
	Algorithm     string    `json:"algorithm"`
	MaxRequests   int       `json:"max_requests"`
	WindowSeconds float64   `json:"window_seconds"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// RequestLogRecord is the persisted copy of one decision.
type RequestLogRecord struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	APIKey         string    `gorm:"index" json:"api_key"`
	Endpoint       string    `json:"endpoint"`
	Algorithm      string    `json:"algorithm"`
	Allowed        bool      `json:"allowed"`
	RemainingQuota int       `json:"remaining_quota"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
}
