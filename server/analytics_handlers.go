package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/haasonsaas/limitd/pkg/ratelimit"
)

func (s *Server) registerAnalyticsRoutes(api *gin.RouterGroup) {
	api.GET("/analytics/summary", s.handleSummary)
	api.GET("/analytics/recent-logs", s.handleRecentLogs)
	api.GET("/system-status", s.handleSystemStatus)
	api.DELETE("/reset-stats", s.handleResetStats)
}

func (s *Server) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.analytics.Summary())
}

func (s *Server) handleRecentLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer", s.logger)
			return
		}
		limit = parsed
	}
	apiKey := c.Query("api_key")
	logs := s.analytics.Recent(limit, apiKey)
	if len(logs) == 0 {
		// The ring is empty after a restart; persisted logs still serve the
		// dashboard.
		records, err := s.store.RecentLogs(limit, apiKey)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to read logs", s.logger)
			return
		}
		for _, r := range records {
			logs = append(logs, ratelimit.RequestLog{
				ID:             r.ID,
				APIKey:         r.APIKey,
				Endpoint:       r.Endpoint,
				Algorithm:      ratelimit.Algorithm(r.Algorithm),
				Allowed:        r.Allowed,
				RemainingQuota: r.RemainingQuota,
				Timestamp:      r.Timestamp,
			})
		}
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) handleSystemStatus(c *gin.Context) {
	activeKeys, err := s.store.CountAPIKeys()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to count api keys", s.logger)
		return
	}
	activeConfigs, err := s.store.CountConfigs()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to count configs", s.logger)
		return
	}
	totalLogs, err := s.store.CountLogs()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to count logs", s.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":                "operational",
		"active_api_keys":       activeKeys,
		"active_configs":        activeConfigs,
		"total_requests_logged": totalLogs,
		"active_rate_limiters":  s.registry.ActiveByAlgorithm(),
	})
}

func (s *Server) handleResetStats(c *gin.Context) {
	s.analytics.Reset()
	s.registry.Reset()
	if err := s.store.DeleteAllLogs(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to delete logs", s.logger)
		return
	}

	logger := requestLogger(c, s.logger)
	logger.Info().Msg("Reset statistics and live limiters")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
