// Package service implements the backend operations: applying ingested
// event batches, querying runs, and reconstructing decision funnels.
package service

import (
	"github.com/equalcollective/xray/domain"
	"github.com/equalcollective/xray/internal/config"
	"github.com/equalcollective/xray/policy"
	"github.com/equalcollective/xray/store"
)

// Notifier receives events after they are stored, for live watchers.
// Implementations must not block.
type Notifier interface {
	NotifyRunEvent(runID string, event domain.IngestEvent)
}

type Service struct {
	store        store.Store
	policyEngine *policy.Engine
	config       *config.Config
	notifier     Notifier
}

// New creates the backend service. notifier may be nil.
func New(st store.Store, policyEngine *policy.Engine, cfg *config.Config, notifier Notifier) *Service {
	return &Service{
		store:        st,
		policyEngine: policyEngine,
		config:       cfg,
		notifier:     notifier,
	}
}
