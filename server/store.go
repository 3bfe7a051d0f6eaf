package main

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/haasonsaas/limitd/pkg/ratelimit"
)

// Store is the gorm-backed config store. It implements the narrow interfaces
// the engine consumes (key index, config source, log sink) plus the admin
// operations the HTTP surface needs.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&APIKeyRecord{}, &RateLimitConfigRecord{}, &RequestLogRecord{})
}

func (s *Store) PutAPIKey(record *APIKeyRecord) error {
	return s.db.Create(record).Error
}

func (s *Store) ListAPIKeys() ([]APIKeyRecord, error) {
	var keys []APIKeyRecord
	if err := s.db.Order("created_at desc").Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) FindAPIKey(apiKey string) (*APIKeyRecord, error) {
	var record APIKeyRecord
	if err := s.db.Where("api_key = ?", apiKey).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// HasAPIKey implements ratelimit.KeyIndex.
func (s *Store) HasAPIKey(_ context.Context, apiKey string) (bool, error) {
	_, err := s.FindAPIKey(apiKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CountAPIKeys() (int64, error) {
	var count int64
	err := s.db.Model(&APIKeyRecord{}).Count(&count).Error
	return count, err
}

func (s *Store) PutConfig(record *RateLimitConfigRecord) error {
	return s.db.Create(record).Error
}

func (s *Store) ListConfigs() ([]RateLimitConfigRecord, error) {
	var configs []RateLimitConfigRecord
	if err := s.db.Order("created_at desc").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// LatestConfigFor implements ratelimit.ConfigSource: the newest config wins.
func (s *Store) LatestConfigFor(apiKey string) (ratelimit.Params, error) {
	var record RateLimitConfigRecord
	err := s.db.Where("api_key = ?", apiKey).Order("created_at desc").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ratelimit.Params{}, ratelimit.ErrNotConfigured
	}
	if err != nil {
		return ratelimit.Params{}, err
	}
	return ratelimit.Params{
		Algorithm:     ratelimit.Algorithm(record.Algorithm),
		MaxRequests:   record.MaxRequests,
		WindowSeconds: record.WindowSeconds,
	}, nil
}

func (s *Store) CountConfigs() (int64, error) {
	var count int64
	err := s.db.Model(&RateLimitConfigRecord{}).Count(&count).Error
	return count, err
}

// AppendLog implements ratelimit.LogSink.
func (s *Store) AppendLog(_ context.Context, log ratelimit.RequestLog) error {
	record := RequestLogRecord{
		ID:             log.ID,
		APIKey:         log.APIKey,
		Endpoint:       log.Endpoint,
		Algorithm:      string(log.Algorithm),
		Allowed:        log.Allowed,
		RemainingQuota: log.RemainingQuota,
		Timestamp:      log.Timestamp,
	}
	return s.db.Create(&record).Error
}

func (s *Store) RecentLogs(limit int, apiKey string) ([]RequestLogRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.db.Order("timestamp desc").Limit(limit)
	if apiKey != "" {
		query = query.Where("api_key = ?", apiKey)
	}
	var logs []RequestLogRecord
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CountLogs() (int64, error) {
	var count int64
	err := s.db.Model(&RequestLogRecord{}).Count(&count).Error
	return count, err
}

func (s *Store) DeleteAllLogs() error {
	return s.db.Where("1 = 1").Delete(&RequestLogRecord{}).Error
}
