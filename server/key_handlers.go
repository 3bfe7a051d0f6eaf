package main

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) registerKeyRoutes(api *gin.RouterGroup) {
	api.POST("/api-keys", s.handleCreateAPIKey)
	api.GET("/api-keys", s.handleListAPIKeys)
}

func (s *Server) handleCreateAPIKey(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	if req.Name == "" {
		respondError(c, http.StatusBadRequest, "name is required", s.logger)
		return
	}

	token, err := generateKeyToken()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to generate api key", s.logger)
		return
	}

	record := APIKeyRecord{
		ID:        uuid.NewString(),
		Name:      req.Name,
		APIKey:    token,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.PutAPIKey(&record); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to persist api key", s.logger)
		return
	}

	logger := requestLogger(c, s.logger)
	logger.Info().Str("key_name", record.Name).Msg("Issued api key")
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListAPIKeys(c *gin.Context) {
	keys, err := s.store.ListAPIKeys()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list api keys", s.logger)
		return
	}
	c.JSON(http.StatusOK, keys)
}

// generateKeyToken mints the opaque bearer token handed to a tenant.
func generateKeyToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "ak_" + base64.RawURLEncoding.EncodeToString(b), nil
}
