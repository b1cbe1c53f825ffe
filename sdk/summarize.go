package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/equalcollective/xray/domain"

	"github.com/google/uuid"
)

// Sentinel rejection-reason buckets. Reason strings are case-sensitive and
// never normalized.
const (
	ReasonUnspecified = "unspecified"
	ReasonError       = "error"
)

// DecisionFunc decides one candidate: whether it is accepted, and the
// rejection reason when it is not. An empty reason on rejection is bucketed
// under ReasonUnspecified.
type DecisionFunc[T any] func(candidate T) (accepted bool, reason string)

// Summary is the compact result of a filtering pass: survivors keep their
// full identity, rejected candidates contribute only a histogram entry.
type Summary[T any] struct {
	Survivors  []T
	Rejections map[string]int
	DropRate   float64
	Total      int
}

// Summarize runs decide over every candidate, in order, exactly once each.
// A panicking decision rejects that candidate under ReasonError and the pass
// continues, so len(Survivors) plus the histogram sum always equals Total.
func Summarize[T any](candidates []T, decide DecisionFunc[T]) Summary[T] {
	sum := Summary[T]{
		Rejections: make(map[string]int),
		Total:      len(candidates),
	}

	for _, c := range candidates {
		accepted, reason := safeDecide(decide, c)
		if accepted {
			sum.Survivors = append(sum.Survivors, c)
			continue
		}
		if reason == "" {
			reason = ReasonUnspecified
		}
		sum.Rejections[reason]++
	}

	if sum.Total > 0 {
		sum.DropRate = float64(sum.Total-len(sum.Survivors)) / float64(sum.Total)
	}
	return sum
}

func safeDecide[T any](decide DecisionFunc[T], candidate T) (accepted bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			accepted = false
			reason = ReasonError
		}
	}()
	return decide(candidate)
}

func (s Summary[T]) metadata() map[string]any {
	return map[string]any{
		domain.MetaTotalCount:         s.Total,
		domain.MetaSurvivorCount:      len(s.Survivors),
		domain.MetaDropRate:           s.DropRate,
		domain.MetaRejectionHistogram: s.Rejections,
	}
}

// AttachSummary records a summarize pass on an open step scope: the summary
// lands in the step's metadata and the survivors become its outputs.
func AttachSummary[T any](ss *StepScope, sum Summary[T]) {
	ss.SetOutputs(map[string]any{
		domain.MetaSurvivorCount: len(sum.Survivors),
		"survivors":              jsonSafe(sum.Survivors),
	})
	ss.setMetadata(sum.metadata())
}

// FilterCandidates summarizes a filtering pass over candidates and records it
// as a self-contained filter step in the current run, parented under the
// current step if one is open. Outside any run it just applies the filter.
// Returns the surviving candidates in their original order.
func FilterCandidates[T any](ctx context.Context, c *Client, name string, candidates []T, decide DecisionFunc[T]) []T {
	sum := Summarize(candidates, decide)

	rs := runScopeFrom(ctx)
	if rs == nil {
		return sum.Survivors
	}
	if name == "" {
		name = "filter_candidates"
	}

	now := time.Now().UTC()
	step := domain.Step{
		StepID:    "step_" + uuid.NewString(),
		RunID:     rs.run.RunID,
		Name:      name,
		Kind:      domain.StepKindFilter,
		StartedAt: now,
		Inputs: map[string]any{
			"candidate_count": sum.Total,
			"sample_input":    sampleInput(candidates),
		},
		Outputs: map[string]any{
			domain.MetaSurvivorCount: len(sum.Survivors),
			"survivors":              jsonSafe(sum.Survivors),
		},
		Metadata: sum.metadata(),
		Reasoning: fmt.Sprintf("Filtered %d candidates, %d survived. Rejection reasons: %v",
			sum.Total, len(sum.Survivors), sum.Rejections),
	}
	if parent := stepScopeFrom(ctx); parent != nil {
		step.ParentStepID = parent.step.StepID
	}
	step.CompletedAt = &now

	c.emitStep(domain.EventTypeStepComplete, step)
	return sum.Survivors
}

func sampleInput[T any](candidates []T) any {
	if len(candidates) == 0 {
		return nil
	}
	return jsonSafe(candidates[0])
}
