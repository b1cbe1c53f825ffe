// Package domain defines the core data model shared by the SDK and the backend.
package domain

import (
	"encoding/json"
	"time"
)

// RunStatus represents the lifecycle status of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// StepKind represents the kind of work a step performs.
type StepKind string

const (
	StepKindLLM       StepKind = "llm"
	StepKindRetrieval StepKind = "retrieval"
	StepKindFilter    StepKind = "filter"
	StepKindLogic     StepKind = "logic"
)

// EventType represents the type of an ingest event.
type EventType string

const (
	EventTypeRunStart     EventType = "run_start"
	EventTypeRunComplete  EventType = "run_complete"
	EventTypeRunFailed    EventType = "run_failed"
	EventTypeStepComplete EventType = "step_complete"
	EventTypeStepFailed   EventType = "step_failed"
)

// Run represents one end-to-end execution of an instrumented pipeline.
type Run struct {
	RunID       string         `json:"run_id"`
	Name        string         `json:"name"`
	Status      RunStatus      `json:"status"`
	TotalCost   float64        `json:"total_cost"`
	Tags        map[string]any `json:"tags,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Step represents one discrete, nameable action within a run. Steps may nest:
// ParentStepID points at the enclosing step, empty for top-level steps.
type Step struct {
	StepID       string     `json:"step_id"`
	RunID        string     `json:"run_id"`
	ParentStepID string     `json:"parent_step_id,omitempty"`
	Name         string     `json:"name"`
	Kind         StepKind   `json:"kind"`
	Reasoning    string     `json:"reasoning,omitempty"`
	Inputs       any        `json:"inputs,omitempty"`
	Outputs      any        `json:"outputs,omitempty"`
	Metadata     any        `json:"metadata,omitempty"`
	Cost         float64    `json:"cost"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// IngestEvent is one element of an ingest batch. Data holds a Run or Step
// serialized by the SDK, depending on Type.
type IngestEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// IngestRequest is the batch payload accepted by the ingestion boundary.
type IngestRequest struct {
	Events []IngestEvent `json:"events"`
}

// IngestResponse acknowledges how many events were processed.
type IngestResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
}
