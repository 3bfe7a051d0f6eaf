package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haasonsaas/limitd/pkg/ratelimit"
)

func (s *Server) registerDecisionRoutes(api *gin.RouterGroup) {
	api.GET("/protected/test", s.handleProtectedTest)
}

func (s *Server) handleProtectedTest(c *gin.Context) {
	apiKey := c.Query("api_key")
	if apiKey == "" {
		respondError(c, http.StatusBadRequest, "api_key query parameter is required", s.logger)
		return
	}

	decision, err := s.gateway.Decide(c.Request.Context(), apiKey, "/api/protected/test")
	if err != nil {
		if errors.Is(err, ratelimit.ErrUnknownKey) {
			respondError(c, http.StatusUnauthorized, "unknown api key", s.logger)
		} else {
			respondError(c, http.StatusInternalServerError, "decision failed", s.logger)
		}
		return
	}

	s.metrics.observeDecision(decision)

	if !decision.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"detail":          "Rate limit exceeded",
			"algorithm":       decision.Algorithm,
			"remaining_quota": 0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Request allowed",
		"algorithm":       decision.Algorithm,
		"remaining_quota": decision.RemainingQuota,
		"timestamp":       decision.Timestamp.Format(time.RFC3339Nano),
	})
}
