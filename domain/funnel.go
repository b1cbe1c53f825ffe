package domain

// Metadata keys written by the SDK summarizer and read back by the funnel
// reconstructor. Stored as plain JSON so they stay queryable.
const (
	MetaTotalCount         = "total_count"
	MetaSurvivorCount      = "survivor_count"
	MetaDropRate           = "drop_rate"
	MetaRejectionHistogram = "rejection_histogram"
)

// FunnelStep is one entry of a reconstructed decision funnel.
type FunnelStep struct {
	StepID             string         `json:"step_id"`
	StepName           string         `json:"step_name"`
	StepKind           StepKind       `json:"step_kind"`
	InputCount         int            `json:"input_count"`
	OutputCount        int            `json:"output_count"`
	DropRate           float64        `json:"drop_rate"`
	RejectionHistogram map[string]int `json:"rejection_histogram,omitempty"`
	Reasoning          string         `json:"reasoning,omitempty"`
	Cost               float64        `json:"cost"`
	Error              string         `json:"error,omitempty"`
}

// FunnelView is the derived, read-time reconstruction of a run's decision
// funnel. It is computed fresh on every request and never persisted.
type FunnelView struct {
	RunID       string       `json:"run_id"`
	RunName     string       `json:"run_name"`
	Status      RunStatus    `json:"status"`
	TotalCost   float64      `json:"total_cost"`
	Funnel      []FunnelStep `json:"funnel"`
	FinalOutput any          `json:"final_output,omitempty"`
}
