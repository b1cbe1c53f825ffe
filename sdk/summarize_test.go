package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/equalcollective/xray/domain"
)

type candidate struct {
	ID     string  `json:"id"`
	Price  float64 `json:"price"`
	Rating float64 `json:"rating"`
}

func TestSummarizeConservation(t *testing.T) {
	var candidates []candidate
	for i := 0; i < 200; i++ {
		candidates = append(candidates, candidate{
			ID:     fmt.Sprintf("c%03d", i),
			Price:  float64(i),
			Rating: 4.0 + float64(i%10)*0.1,
		})
	}

	sum := Summarize(candidates, func(c candidate) (bool, string) {
		if c.Price > 100 {
			return false, "price_too_high"
		}
		if c.Rating < 4.5 {
			return false, "rating_too_low"
		}
		return true, ""
	})

	rejected := 0
	for _, n := range sum.Rejections {
		rejected += n
	}
	if len(sum.Survivors)+rejected != sum.Total {
		t.Fatalf("survivors (%d) + rejections (%d) != total (%d)", len(sum.Survivors), rejected, sum.Total)
	}
	if sum.Total != 200 {
		t.Fatalf("expected total 200, got %d", sum.Total)
	}
}

func TestSummarizeScenario(t *testing.T) {
	// 5000 candidates: 4000 priced out, 970 wrong category, 30 survive.
	var candidates []candidate
	for i := 0; i < 5000; i++ {
		c := candidate{ID: fmt.Sprintf("c%04d", i), Price: 50, Rating: 4.8}
		switch {
		case i < 4000:
			c.Price = 500
		case i < 4970:
			c.Rating = 3.0
		}
		candidates = append(candidates, c)
	}

	sum := Summarize(candidates, func(c candidate) (bool, string) {
		if c.Price > 100 {
			return false, "price_too_high"
		}
		if c.Rating < 4.5 {
			return false, "wrong_category"
		}
		return true, ""
	})

	if len(sum.Survivors) != 30 {
		t.Fatalf("expected 30 survivors, got %d", len(sum.Survivors))
	}
	if sum.Rejections["price_too_high"] != 4000 {
		t.Fatalf("expected 4000 price rejections, got %d", sum.Rejections["price_too_high"])
	}
	if sum.Rejections["wrong_category"] != 970 {
		t.Fatalf("expected 970 category rejections, got %d", sum.Rejections["wrong_category"])
	}
	if sum.DropRate != 0.994 {
		t.Fatalf("expected drop rate 0.994, got %v", sum.DropRate)
	}
}

func TestSummarizeEmptyInput(t *testing.T) {
	sum := Summarize(nil, func(c candidate) (bool, string) {
		t.Fatal("decision function must not be called for empty input")
		return false, ""
	})

	if sum.Total != 0 || len(sum.Survivors) != 0 || len(sum.Rejections) != 0 {
		t.Fatalf("expected empty summary, got %+v", sum)
	}
	if sum.DropRate != 0 {
		t.Fatalf("expected drop rate 0 for empty input, got %v", sum.DropRate)
	}
}

func TestSummarizePreservesOrder(t *testing.T) {
	candidates := []candidate{
		{ID: "a", Rating: 4.9},
		{ID: "b", Rating: 1.0},
		{ID: "c", Rating: 4.8},
		{ID: "d", Rating: 4.7},
	}

	sum := Summarize(candidates, func(c candidate) (bool, string) {
		return c.Rating >= 4.5, "rating_too_low"
	})

	want := []string{"a", "c", "d"}
	if len(sum.Survivors) != len(want) {
		t.Fatalf("expected %d survivors, got %d", len(want), len(sum.Survivors))
	}
	for i, s := range sum.Survivors {
		if s.ID != want[i] {
			t.Fatalf("survivor %d: expected %s, got %s", i, want[i], s.ID)
		}
	}
}

func TestSummarizeSentinelReasons(t *testing.T) {
	candidates := []candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	sum := Summarize(candidates, func(c candidate) (bool, string) {
		switch c.ID {
		case "a":
			return false, "" // empty reason
		case "b":
			panic("decision blew up")
		}
		return true, ""
	})

	if sum.Rejections[ReasonUnspecified] != 1 {
		t.Fatalf("expected 1 unspecified rejection, got %d", sum.Rejections[ReasonUnspecified])
	}
	if sum.Rejections[ReasonError] != 1 {
		t.Fatalf("expected 1 error rejection, got %d", sum.Rejections[ReasonError])
	}
	if len(sum.Survivors) != 1 || sum.Survivors[0].ID != "c" {
		t.Fatalf("expected survivor c, got %+v", sum.Survivors)
	}
}

func TestSummarizeCaseSensitiveReasons(t *testing.T) {
	candidates := []candidate{{ID: "a"}, {ID: "b"}}

	sum := Summarize(candidates, func(c candidate) (bool, string) {
		if c.ID == "a" {
			return false, "Price_Too_High"
		}
		return false, "price_too_high"
	})

	if sum.Rejections["Price_Too_High"] != 1 || sum.Rejections["price_too_high"] != 1 {
		t.Fatalf("reasons must not be normalized, got %v", sum.Rejections)
	}
}

func TestFilterCandidatesOutsideRun(t *testing.T) {
	sender := &memorySender{}
	client, done := newTestClient(sender)
	defer done()

	candidates := []candidate{{ID: "a", Price: 10}, {ID: "b", Price: 200}}
	survivors := FilterCandidates(context.Background(), client, "filter_by_price", candidates, func(c candidate) (bool, string) {
		return c.Price <= 100, "price_too_high"
	})

	if len(survivors) != 1 || survivors[0].ID != "a" {
		t.Fatalf("expected survivor a, got %+v", survivors)
	}
	if got := drain(client, sender); len(got) != 0 {
		t.Fatalf("expected no events outside a run, got %d", len(got))
	}
}

func TestFilterCandidatesEmitsStep(t *testing.T) {
	sender := &memorySender{}
	client, _ := newTestClient(sender)

	ctx, run := client.StartRun(context.Background(), "pipeline", nil)

	candidates := []candidate{
		{ID: "a", Price: 10},
		{ID: "b", Price: 200},
		{ID: "c", Price: 300},
	}
	survivors := FilterCandidates(ctx, client, "filter_by_price", candidates, func(c candidate) (bool, string) {
		return c.Price <= 100, "price_too_high"
	})
	run.End(nil)

	if len(survivors) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(survivors))
	}

	events := drain(client, sender)
	var step *domain.Step
	for _, ev := range events {
		if ev.Type == domain.EventTypeStepComplete {
			var s domain.Step
			if err := json.Unmarshal(ev.Data, &s); err != nil {
				t.Fatalf("failed to unmarshal step event: %v", err)
			}
			step = &s
		}
	}
	if step == nil {
		t.Fatal("expected a step_complete event")
	}

	if step.Name != "filter_by_price" {
		t.Fatalf("expected step name filter_by_price, got %s", step.Name)
	}
	if step.Kind != domain.StepKindFilter {
		t.Fatalf("expected filter kind, got %s", step.Kind)
	}
	if step.RunID != run.ID() {
		t.Fatalf("expected step bound to run %s, got %s", run.ID(), step.RunID)
	}
	if step.CompletedAt == nil {
		t.Fatal("expected step to be completed")
	}

	meta, ok := step.Metadata.(map[string]any)
	if !ok {
		t.Fatalf("expected metadata map, got %T", step.Metadata)
	}
	if got := meta[domain.MetaTotalCount]; got != float64(3) {
		t.Fatalf("expected total_count 3, got %v", got)
	}
	if got := meta[domain.MetaSurvivorCount]; got != float64(1) {
		t.Fatalf("expected survivor_count 1, got %v", got)
	}
	hist, ok := meta[domain.MetaRejectionHistogram].(map[string]any)
	if !ok {
		t.Fatalf("expected rejection histogram map, got %T", meta[domain.MetaRejectionHistogram])
	}
	if hist["price_too_high"] != float64(2) {
		t.Fatalf("expected 2 price rejections, got %v", hist["price_too_high"])
	}
}

func TestAttachSummary(t *testing.T) {
	sender := &memorySender{}
	client, _ := newTestClient(sender)

	ctx, run := client.StartRun(context.Background(), "pipeline", nil)
	_, step, err := client.StartStep(ctx, "filter_candidates", domain.StepKindFilter)
	if err != nil {
		t.Fatalf("failed to start step: %v", err)
	}

	sum := Summarize([]candidate{{ID: "a"}, {ID: "b", Price: 200}}, func(c candidate) (bool, string) {
		return c.Price <= 100, "price_too_high"
	})
	AttachSummary(step, sum)
	step.End(nil)
	run.End(nil)

	snap := step.Snapshot()
	meta, ok := snap.Metadata.(map[string]any)
	if !ok {
		t.Fatalf("expected metadata map, got %T", snap.Metadata)
	}
	if meta[domain.MetaTotalCount] != 2 {
		t.Fatalf("expected total_count 2, got %v", meta[domain.MetaTotalCount])
	}
	outputs, ok := snap.Outputs.(map[string]any)
	if !ok {
		t.Fatalf("expected outputs map, got %T", snap.Outputs)
	}
	if outputs[domain.MetaSurvivorCount] != 1 {
		t.Fatalf("expected survivor_count 1, got %v", outputs[domain.MetaSurvivorCount])
	}

	drain(client, sender)
}
