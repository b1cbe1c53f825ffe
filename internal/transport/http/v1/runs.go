package v1

import (
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/equalcollective/xray/domain"
	"github.com/equalcollective/xray/store"
)

// ListRuns lists recent runs.
// GET /v1/runs?limit=&name=&status=
func (h *Handler) ListRuns(c echo.Context) error {
	filter := store.RunFilter{
		Name:   c.QueryParam("name"),
		Status: domain.RunStatus(c.QueryParam("status")),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	runs, err := h.service.ListRuns(c.Request().Context(), filter)
	if err != nil {
		log.Printf("ERROR: failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
	}
	if runs == nil {
		runs = []domain.Run{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetRun retrieves a single run.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	runID := c.Param("run_id")

	run, err := h.service.GetRun(c.Request().Context(), runID)
	if err != nil {
		log.Printf("ERROR: failed to get run: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get run"})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	return c.JSON(http.StatusOK, run)
}

// GetRunSteps retrieves all steps for a run in chronological order.
// GET /v1/runs/:run_id/steps
func (h *Handler) GetRunSteps(c echo.Context) error {
	runID := c.Param("run_id")
	ctx := c.Request().Context()

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to get run: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get run"})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	steps, err := h.service.GetSteps(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to get steps: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get steps"})
	}
	if steps == nil {
		steps = []domain.Step{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"steps": steps})
}

// AnalyzeRun reconstructs the decision funnel for a run.
// GET /v1/runs/:run_id/analyze
func (h *Handler) AnalyzeRun(c echo.Context) error {
	runID := c.Param("run_id")

	view, err := h.service.AnalyzeRun(c.Request().Context(), runID)
	if err != nil {
		log.Printf("ERROR: failed to analyze run: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to analyze run"})
	}
	if view == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	return c.JSON(http.StatusOK, view)
}
