package v1

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/equalcollective/xray/domain"
)

// Ingest accepts a batch of events from the SDK.
// POST /ingest
func (h *Handler) Ingest(c echo.Context) error {
	var req domain.IngestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid ingest payload"})
	}

	processed, err := h.service.ApplyEvents(c.Request().Context(), req.Events)
	if err != nil {
		log.Printf("ERROR: failed to apply ingest batch: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to apply events"})
	}

	return c.JSON(http.StatusOK, domain.IngestResponse{
		Status:    "ok",
		Processed: processed,
	})
}
