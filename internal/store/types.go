package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/ftltune/internal/space"
)

// Record is the outcome of one tuning run: the incumbent configuration and
// its score. Only the best result is kept; per-trial history is not stored.
type Record struct {
	// RunID is the unique identifier for this run
	RunID string `json:"runId"`

	// Values maps each parameter name to its winning value
	Values map[string]int `json:"values"`

	// Score is the benchmark score recovered from Fitness
	Score float64 `json:"score"`

	// Fitness is the optimizer's incumbent fitness
	Fitness float64 `json:"fitness"`

	// Trials and Failed count the evaluations made during the run
	Trials int `json:"trials"`
	Failed int `json:"failed"`

	// Budget is the evaluation budget the run was started with
	Budget int `json:"budget"`

	// Strategy names the optimizer (hyperband, mayfly)
	Strategy string `json:"strategy"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`
}

// RecordInfo contains the metadata shown when listing runs.
type RecordInfo struct {
	RunID     string    `json:"runId"`
	Score     float64   `json:"score"`
	Trials    int       `json:"trials"`
	Strategy  string    `json:"strategy"`
	Timestamp time.Time `json:"timestamp"`
}

// ToInfo converts a full Record to RecordInfo (metadata only).
func (r *Record) ToInfo() RecordInfo {
	return RecordInfo{
		RunID:     r.RunID,
		Score:     r.Score,
		Trials:    r.Trials,
		Strategy:  r.Strategy,
		Timestamp: r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *Record) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(r.Values) == 0 {
		return &ValidationError{Field: "Values", Reason: "cannot be empty"}
	}
	if r.Fitness <= 0 {
		return &ValidationError{Field: "Fitness", Reason: "must be positive"}
	}
	if r.Trials < 0 || r.Failed < 0 {
		return &ValidationError{Field: "Trials", Reason: "cannot be negative"}
	}
	if r.Failed > r.Trials {
		return &ValidationError{Field: "Failed", Reason: fmt.Sprintf("exceeds trials (%d > %d)", r.Failed, r.Trials)}
	}
	if r.Budget <= 0 {
		return &ValidationError{Field: "Budget", Reason: "must be positive"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// Configuration rebuilds the winning configuration against s. It fails if
// the space has changed so that a stored value is no longer legal.
func (r *Record) Configuration(s *space.Space) (space.Configuration, error) {
	cfg, err := s.NewConfiguration(r.Values)
	if err != nil {
		return space.Configuration{}, fmt.Errorf("record %s does not fit the configuration space: %w", r.RunID, err)
	}
	return cfg, nil
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
