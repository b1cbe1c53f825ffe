// Package policy decides which ingested events are stored.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the ingest policy.
const (
	DecisionStore = "store"
	DecisionDrop  = "drop"
)

// Engine is the OPA policy engine evaluated once per ingested event.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given rego policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.xray_ingest.decision"),
		rego.Module("xray_ingest.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// EventInput is the policy input for one ingested event.
type EventInput struct {
	Type string         `json:"type"`
	Name string         `json:"name"`
	Tags map[string]any `json:"tags"`
}

// Evaluate returns the store/drop decision for one event. Evaluation faults
// fail open: observability data is dropped only by an explicit policy match.
func (e *Engine) Evaluate(ctx context.Context, input EventInput) string {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return DecisionStore
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionStore
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok && s == DecisionDrop {
		return DecisionDrop
	}
	return DecisionStore
}

// DefaultPolicy stores everything except runs explicitly opted out of
// sampling via their tags.
const DefaultPolicy = `
package xray_ingest

default decision = "store"

decision = "drop" {
	input.tags.xray_sampled == false
}
`
