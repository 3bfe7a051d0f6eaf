package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/haasonsaas/limitd/pkg/loadgen"
)

func (s *Server) registerLoadTestRoutes(api *gin.RouterGroup) {
	api.POST("/load-test", s.handleLoadTest)
}

func (s *Server) handleLoadTest(c *gin.Context) {
	var req struct {
		APIKey            string `json:"api_key"`
		RequestsPerSecond int    `json:"requests_per_second"`
		DurationSeconds   int    `json:"duration_seconds"`
		Endpoint          string `json:"endpoint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	if req.Endpoint == "" {
		req.Endpoint = "/api/protected/test"
	}

	cfg := loadgen.Config{
		APIKey:            req.APIKey,
		RequestsPerSecond: req.RequestsPerSecond,
		DurationSeconds:   req.DurationSeconds,
		Endpoint:          req.Endpoint,
	}
	if err := cfg.Validate(); err != nil {
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

	logger := requestLogger(c, s.logger)
	logger.Info().
		Int("rps", cfg.RequestsPerSecond).
		Int("duration_s", cfg.DurationSeconds).
		Msg("Starting load test")

	result, err := s.driver.Run(c.Request.Context(), cfg)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "load test failed", s.logger)
		return
	}

	logger.Info().
		Int("allowed", result.Allowed).
		Int("blocked", result.Blocked).
		Float64("actual_duration", result.ActualDuration).
		Msg("Load test finished")
	c.JSON(http.StatusOK, result)
}
