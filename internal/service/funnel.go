package service

import (
	"context"
	"fmt"

	"github.com/equalcollective/xray/domain"
)

// AnalyzeRun reconstructs the decision funnel for a run from its stored
// steps. The view is derived fresh on every call and never persisted.
// Returns nil when the run does not exist.
func (s *Service) AnalyzeRun(ctx context.Context, runID string) (*domain.FunnelView, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, nil
	}

	steps, err := s.store.GetSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}

	view := BuildFunnel(run, steps)
	return &view, nil
}

// BuildFunnel derives a funnel view from a run and its chronologically
// ordered steps. It is a pure function of its inputs: no re-execution of
// pipeline logic, no side effects, identical output for identical input.
// Counts come from the summarizer metadata when a step carries it and fall
// back to structural counts otherwise, so a step with malformed metadata
// degrades instead of failing the whole view.
func BuildFunnel(run *domain.Run, steps []domain.Step) domain.FunnelView {
	view := domain.FunnelView{
		RunID:     run.RunID,
		RunName:   run.Name,
		Status:    run.Status,
		TotalCost: run.TotalCost,
		Funnel:    make([]domain.FunnelStep, 0, len(steps)),
	}

	for _, step := range steps {
		view.Funnel = append(view.Funnel, buildFunnelStep(step))
		if step.Error == "" {
			view.FinalOutput = step.Outputs
		}
	}
	return view
}

func buildFunnelStep(step domain.Step) domain.FunnelStep {
	md := asMap(step.Metadata)
	hist := asHistogram(md[domain.MetaRejectionHistogram])

	inputCount := deriveInputCount(step, md)
	outputCount := deriveOutputCount(step, md)
	dropRate := deriveDropRate(md, inputCount, outputCount)

	return domain.FunnelStep{
		StepID:             step.StepID,
		StepName:           step.Name,
		StepKind:           step.Kind,
		InputCount:         inputCount,
		OutputCount:        outputCount,
		DropRate:           dropRate,
		RejectionHistogram: hist,
		Reasoning:          step.Reasoning,
		Cost:               step.Cost,
		Error:              step.Error,
	}
}

// deriveInputCount prefers the summarizer's total; otherwise the cardinality
// of a sequence-shaped inputs payload; otherwise 1 (a non-batch step).
func deriveInputCount(step domain.Step, md map[string]any) int {
	if n, ok := asCount(md[domain.MetaTotalCount]); ok {
		return n
	}
	if seq, ok := asSlice(step.Inputs); ok {
		return len(seq)
	}
	if in := asMap(step.Inputs); in != nil {
		if n, ok := asCount(in["candidate_count"]); ok {
			return n
		}
	}
	return 1
}

// deriveOutputCount prefers the summarizer's survivor count; otherwise the
// cardinality of a sequence-shaped outputs payload; otherwise 1.
func deriveOutputCount(step domain.Step, md map[string]any) int {
	if n, ok := asCount(md[domain.MetaSurvivorCount]); ok {
		return n
	}
	if seq, ok := asSlice(step.Outputs); ok {
		return len(seq)
	}
	if out := asMap(step.Outputs); out != nil {
		if n, ok := asCount(out[domain.MetaSurvivorCount]); ok {
			return n
		}
	}
	return 1
}

// deriveDropRate reads the SDK-computed rate when present (authoritative),
// else derives it structurally. Always clamped to [0,1]; a zero input count
// yields 0, never a division fault.
func deriveDropRate(md map[string]any, inputCount, outputCount int) float64 {
	if md != nil {
		if rate, ok := asNumber(md[domain.MetaDropRate]); ok {
			return clampRate(rate)
		}
	}
	if inputCount <= 0 {
		return 0
	}
	return clampRate(1 - float64(outputCount)/float64(inputCount))
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}

// Stored payloads round-trip through JSON, so numbers arrive as float64 and
// objects as map[string]any. Anything else is treated as absent.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asCount(v any) (int, bool) {
	n, ok := asNumber(v)
	if !ok || n < 0 {
		return 0, false
	}
	return int(n), true
}

func asHistogram(v any) map[string]int {
	m := asMap(v)
	if m == nil {
		return nil
	}
	hist := make(map[string]int, len(m))
	for reason, count := range m {
		if n, ok := asCount(count); ok {
			hist[reason] = n
		}
	}
	return hist
}
