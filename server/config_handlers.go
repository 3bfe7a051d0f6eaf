package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haasonsaas/limitd/pkg/ratelimit"
)

func (s *Server) registerConfigRoutes(api *gin.RouterGroup) {
	api.POST("/rate-limit-configs", s.handleCreateConfig)
	api.GET("/rate-limit-configs", s.handleListConfigs)
}

func (s *Server) handleCreateConfig(c *gin.Context) {
	var req struct {
		APIKey        string  `json:"api_key"`
		Algorithm     string  `json:"algorithm"`
		MaxRequests   int     `json:"max_requests"`
		WindowSeconds float64 `json:"window_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}

	params := ratelimit.Params{
		Algorithm:     ratelimit.Algorithm(req.Algorithm),
		MaxRequests:   req.MaxRequests,
		WindowSeconds: req.WindowSeconds,
	}
	if err := params.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}

	if _, err := s.store.FindAPIKey(req.APIKey); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "api key not found", s.logger)
		} else {
			respondError(c, http.StatusInternalServerError, "api key lookup failed", s.logger)
		}
		return
	}

	record := RateLimitConfigRecord{
		ID:            uuid.NewString(),
		APIKey:        req.APIKey,
		Algorithm:     req.Algorithm,
		MaxRequests:   req.MaxRequests,
		WindowSeconds: req.WindowSeconds,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.PutConfig(&record); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to persist config", s.logger)
		return
	}

	// The registry notices the parameter change on the next decision for the
	// key and swaps the live instance, discarding accumulated state.
	logger := requestLogger(c, s.logger)
	logger.Info().
		Str("algorithm", record.Algorithm).
		Int("max_requests", record.MaxRequests).
		Float64("window_seconds", record.WindowSeconds).
		Msg("Stored rate limit config")
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListConfigs(c *gin.Context) {
	configs, err := s.store.ListConfigs()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list configs", s.logger)
		return
	}
	c.JSON(http.StatusOK, configs)
}
