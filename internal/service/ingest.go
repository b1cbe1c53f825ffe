package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/equalcollective/xray/domain"
	"github.com/equalcollective/xray/policy"
)

// ApplyEvents applies one ingested batch in order. Each event is evaluated
// against the ingest policy, then upserted. Malformed events are logged and
// skipped; they never fail the rest of the batch. Returns the number of
// events handled (stored or dropped by policy).
func (s *Service) ApplyEvents(ctx context.Context, events []domain.IngestEvent) (int, error) {
	processed := 0
	for _, event := range events {
		if err := s.applyEvent(ctx, event); err != nil {
			log.Printf("WARN: skipping %s event: %v", event.Type, err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) applyEvent(ctx context.Context, event domain.IngestEvent) error {
	switch event.Type {
	case domain.EventTypeRunStart, domain.EventTypeRunComplete, domain.EventTypeRunFailed:
		var run domain.Run
		if err := json.Unmarshal(event.Data, &run); err != nil {
			return fmt.Errorf("failed to decode run payload: %w", err)
		}
		if run.RunID == "" {
			return fmt.Errorf("run payload missing run_id")
		}
		if s.decide(ctx, event.Type, run.Name, run.Tags) == policy.DecisionDrop {
			return nil
		}
		if err := s.store.UpsertRun(ctx, &run); err != nil {
			return fmt.Errorf("failed to upsert run %s: %w", run.RunID, err)
		}
		s.notify(run.RunID, event)
		return nil

	case domain.EventTypeStepComplete, domain.EventTypeStepFailed:
		var step domain.Step
		if err := json.Unmarshal(event.Data, &step); err != nil {
			return fmt.Errorf("failed to decode step payload: %w", err)
		}
		if step.StepID == "" || step.RunID == "" {
			return fmt.Errorf("step payload missing step_id or run_id")
		}
		if s.decide(ctx, event.Type, step.Name, nil) == policy.DecisionDrop {
			return nil
		}
		if err := s.store.UpsertStep(ctx, &step); err != nil {
			return fmt.Errorf("failed to upsert step %s: %w", step.StepID, err)
		}
		s.notify(step.RunID, event)
		return nil

	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

func (s *Service) decide(ctx context.Context, t domain.EventType, name string, tags map[string]any) string {
	if s.policyEngine == nil {
		return policy.DecisionStore
	}
	return s.policyEngine.Evaluate(ctx, policy.EventInput{
		Type: string(t),
		Name: name,
		Tags: tags,
	})
}

func (s *Service) notify(runID string, event domain.IngestEvent) {
	if s.notifier != nil {
		s.notifier.NotifyRunEvent(runID, event)
	}
}
