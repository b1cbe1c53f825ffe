package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/equalcollective/xray/domain"

	"github.com/google/uuid"
)

// The active run/step association rides on context.Context values, never on
// package-level state. A goroutine spawned with the parent's ctx inherits a
// snapshot of the current scopes; goroutines with unrelated contexts see none.
type ctxKey int

const (
	runScopeKey ctxKey = iota
	stepScopeKey
)

// RunScope is the handle for an open run. Release it with End on every exit
// path (typically via defer); End finalizes the run, enqueues its record and
// never blocks or fails the caller.
type RunScope struct {
	client *Client

	mu   sync.Mutex
	run  domain.Run
	done bool
}

// StartRun opens a new run in RUNNING status and binds it as current in the
// returned context. Runs opened in the same context nest independently; the
// inner run simply shadows the outer one until its scope ends.
func (c *Client) StartRun(ctx context.Context, name string, tags map[string]any) (context.Context, *RunScope) {
	rs := &RunScope{
		client: c,
		run: domain.Run{
			RunID:     "run_" + uuid.NewString(),
			Name:      name,
			Status:    domain.RunStatusRunning,
			Tags:      jsonSafeMap(tags),
			StartedAt: time.Now().UTC(),
		},
	}
	c.emitRun(domain.EventTypeRunStart, rs.run)

	ctx = context.WithValue(ctx, runScopeKey, rs)
	// A fresh run starts with no current step, even when an outer run had one.
	ctx = context.WithValue(ctx, stepScopeKey, (*StepScope)(nil))
	return ctx, rs
}

// ID returns the run's opaque identifier.
func (rs *RunScope) ID() string { return rs.run.RunID }

// Name returns the run's declared name.
func (rs *RunScope) Name() string { return rs.run.Name }

// AddCost adds to the run's aggregate cost.
func (rs *RunScope) AddCost(cost float64) {
	rs.mu.Lock()
	rs.run.TotalCost += cost
	rs.mu.Unlock()
}

// Snapshot returns a copy of the run's current state.
func (rs *RunScope) Snapshot() domain.Run {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.run
}

// End finalizes the run and enqueues its record: COMPLETED on a clean exit,
// FAILED when *errp is non-nil or the scope is unwinding from a panic. The
// panic is re-raised after the run is recorded. End is idempotent.
func (rs *RunScope) End(errp *error) {
	panicked := recover()
	var cause error
	if errp != nil {
		cause = *errp
	}
	rs.finish(panicked, cause)
	if panicked != nil {
		panic(panicked)
	}
}

func (rs *RunScope) finish(panicked any, cause error) {
	rs.mu.Lock()
	if rs.done {
		rs.mu.Unlock()
		return
	}
	rs.done = true

	now := time.Now().UTC()
	rs.run.CompletedAt = &now
	rs.run.Status = domain.RunStatusCompleted
	evType := domain.EventTypeRunComplete
	switch {
	case panicked != nil:
		rs.run.Status = domain.RunStatusFailed
		rs.run.Error = fmt.Sprintf("panic: %v", panicked)
		evType = domain.EventTypeRunFailed
	case cause != nil:
		rs.run.Status = domain.RunStatusFailed
		rs.run.Error = cause.Error()
		evType = domain.EventTypeRunFailed
	}
	snapshot := rs.run
	rs.mu.Unlock()

	rs.client.emitRun(evType, snapshot)
}

// StepScope is the handle for an open step.
type StepScope struct {
	client *Client
	run    *RunScope
	parent *StepScope

	mu   sync.Mutex
	step domain.Step
	done bool
}

// StepOption configures a step at open time.
type StepOption func(*domain.Step)

// WithReasoning records free-form reasoning for the step.
func WithReasoning(reasoning string) StepOption {
	return func(s *domain.Step) { s.Reasoning = reasoning }
}

// WithInputs records the step's input payload.
func WithInputs(v any) StepOption {
	return func(s *domain.Step) { s.Inputs = jsonSafe(v) }
}

// WithCost sets a pre-calculated cost for the step.
func WithCost(cost float64) StepOption {
	return func(s *domain.Step) { s.Cost = cost }
}

// WithTokenUsage derives the step's cost from LLM token usage.
func WithTokenUsage(usage TokenUsage) StepOption {
	return func(s *domain.Step) { s.Cost = CalculateLLMCost(usage) }
}

// StartStep opens a step within the current run and binds it as current in
// the returned context. The step is parented to whichever step was current,
// capturing nesting. Returns ErrNoActiveRun when the context carries no run.
func (c *Client) StartStep(ctx context.Context, name string, kind domain.StepKind, opts ...StepOption) (context.Context, *StepScope, error) {
	rs := runScopeFrom(ctx)
	if rs == nil {
		return ctx, nil, ErrNoActiveRun
	}
	parent := stepScopeFrom(ctx)

	ss := &StepScope{
		client: c,
		run:    rs,
		parent: parent,
		step: domain.Step{
			StepID:    "step_" + uuid.NewString(),
			RunID:     rs.run.RunID,
			Name:      name,
			Kind:      kind,
			StartedAt: time.Now().UTC(),
		},
	}
	if parent != nil {
		ss.step.ParentStepID = parent.step.StepID
	}
	for _, opt := range opts {
		opt(&ss.step)
	}

	return context.WithValue(ctx, stepScopeKey, ss), ss, nil
}

// ID returns the step's opaque identifier.
func (ss *StepScope) ID() string { return ss.step.StepID }

// SetInputs records the step's input payload.
func (ss *StepScope) SetInputs(v any) {
	ss.mu.Lock()
	ss.step.Inputs = jsonSafe(v)
	ss.mu.Unlock()
}

// SetOutputs records the step's output payload.
func (ss *StepScope) SetOutputs(v any) {
	ss.mu.Lock()
	ss.step.Outputs = jsonSafe(v)
	ss.mu.Unlock()
}

func (ss *StepScope) setMetadata(v any) {
	ss.mu.Lock()
	ss.step.Metadata = jsonSafe(v)
	ss.mu.Unlock()
}

// AddCost adds to the step's cost.
func (ss *StepScope) AddCost(cost float64) {
	ss.mu.Lock()
	ss.step.Cost += cost
	ss.mu.Unlock()
}

// Snapshot returns a copy of the step's current state.
func (ss *StepScope) Snapshot() domain.Step {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.step
}

// End finalizes the step, propagates its cost into the parent step (or the
// run, for top-level steps) and enqueues the record. Failure handling and
// panic behavior match RunScope.End. End is idempotent.
func (ss *StepScope) End(errp *error) {
	panicked := recover()
	var cause error
	if errp != nil {
		cause = *errp
	}
	ss.finish(panicked, cause)
	if panicked != nil {
		panic(panicked)
	}
}

func (ss *StepScope) finish(panicked any, cause error) {
	ss.mu.Lock()
	if ss.done {
		ss.mu.Unlock()
		return
	}
	ss.done = true

	now := time.Now().UTC()
	ss.step.CompletedAt = &now
	evType := domain.EventTypeStepComplete
	switch {
	case panicked != nil:
		ss.step.Error = fmt.Sprintf("panic: %v", panicked)
		evType = domain.EventTypeStepFailed
	case cause != nil:
		ss.step.Error = cause.Error()
		evType = domain.EventTypeStepFailed
	}
	snapshot := ss.step
	ss.mu.Unlock()

	if snapshot.Cost != 0 {
		if ss.parent != nil {
			ss.parent.AddCost(snapshot.Cost)
		} else {
			ss.run.AddCost(snapshot.Cost)
		}
	}

	ss.client.emitStep(evType, snapshot)
}

// CurrentRun returns the run scope bound to ctx, if any.
func CurrentRun(ctx context.Context) (*RunScope, bool) {
	rs := runScopeFrom(ctx)
	return rs, rs != nil
}

// CurrentStep returns the step scope bound to ctx, if any.
func CurrentStep(ctx context.Context) (*StepScope, bool) {
	ss := stepScopeFrom(ctx)
	return ss, ss != nil
}

func runScopeFrom(ctx context.Context) *RunScope {
	rs, _ := ctx.Value(runScopeKey).(*RunScope)
	return rs
}

func stepScopeFrom(ctx context.Context) *StepScope {
	ss, _ := ctx.Value(stepScopeKey).(*StepScope)
	return ss
}

func (c *Client) emitRun(t domain.EventType, run domain.Run) {
	data, err := json.Marshal(run)
	if err != nil {
		log.Printf("WARN: xray: failed to marshal run record: %v", err)
		return
	}
	c.batcher.enqueue(domain.IngestEvent{Type: t, Data: data})
}

func (c *Client) emitStep(t domain.EventType, step domain.Step) {
	data, err := json.Marshal(step)
	if err != nil {
		log.Printf("WARN: xray: failed to marshal step record: %v", err)
		return
	}
	c.batcher.enqueue(domain.IngestEvent{Type: t, Data: data})
}

// jsonSafe returns v when it serializes cleanly, else its string form, so a
// non-serializable payload can never fail a record at flush time.
func jsonSafe(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}

func jsonSafeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonSafe(v)
	}
	return out
}
