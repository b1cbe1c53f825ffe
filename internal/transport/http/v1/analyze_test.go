package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/equalcollective/xray/domain"
)

func TestAnalyzeRun(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)
	run := seedRun(t, db, "run_an")

	step := &domain.Step{
		StepID: "step_an",
		RunID:  run.RunID,
		Name:   "filter_by_price",
		Kind:   domain.StepKindFilter,
		Metadata: map[string]any{
			domain.MetaTotalCount:         5000,
			domain.MetaSurvivorCount:      30,
			domain.MetaDropRate:           0.994,
			domain.MetaRejectionHistogram: map[string]int{"price_too_high": 4970},
		},
		StartedAt: run.StartedAt,
	}
	if err := db.UpsertStep(context.Background(), step); err != nil {
		t.Fatalf("failed to seed step: %v", err)
	}

	t.Run("Reconstruct Funnel", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_an/analyze", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/runs/:run_id/analyze")
		c.SetParamNames("run_id")
		c.SetParamValues("run_an")

		err := h.AnalyzeRun(c)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var view domain.FunnelView
		json.Unmarshal(rec.Body.Bytes(), &view)
		assert.Equal(t, "run_an", view.RunID)
		assert.Len(t, view.Funnel, 1)
		assert.Equal(t, 5000, view.Funnel[0].InputCount)
		assert.Equal(t, 30, view.Funnel[0].OutputCount)
		assert.Equal(t, 0.994, view.Funnel[0].DropRate)
		assert.Equal(t, 4970, view.Funnel[0].RejectionHistogram["price_too_high"])
	})

	t.Run("Unknown Run", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_nope/analyze", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/runs/:run_id/analyze")
		c.SetParamNames("run_id")
		c.SetParamValues("run_nope")

		err := h.AnalyzeRun(c)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
