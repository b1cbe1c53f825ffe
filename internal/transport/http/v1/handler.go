// Package v1 provides HTTP handlers for the X-Ray backend.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/equalcollective/xray/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Ingestion boundary (consumed by the SDK batcher)
	e.POST("/ingest", h.Ingest)

	// Query boundary (consumed by UI/CLI tooling)
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/steps", h.GetRunSteps)
	e.GET("/v1/runs/:run_id/analyze", h.AnalyzeRun)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
