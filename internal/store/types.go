package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
)

// RunRecord is the persisted summary of a finished (or stopped) run. The
// per-iteration snapshots live next to it in trace.jsonl.
type RunRecord struct {
	// RunID is the unique identifier for this run
	RunID string `json:"runId"`

	// Origin records what produced the run ("cli" or "server")
	Origin string `json:"origin"`

	Objective string             `json:"objective"`
	Dimension int                `json:"dimension"`
	Seed      int64              `json:"seed"`
	Params    firefly.Parameters `json:"params"`

	// Iterations is the number of completed steps
	Iterations int `json:"iterations"`

	// InitialBestFitness is the best fitness of the iteration-0 population
	InitialBestFitness float64 `json:"initialBestFitness"`

	BestPosition []float64 `json:"bestPosition"`
	BestFitness  float64   `json:"bestFitness"`

	// Timestamp records when the record was written
	Timestamp time.Time `json:"timestamp"`
}

// RunInfo contains metadata about a run without the position data.
type RunInfo struct {
	RunID       string    `json:"runId"`
	Origin      string    `json:"origin"`
	Objective   string    `json:"objective"`
	Dimension   int       `json:"dimension"`
	Iterations  int       `json:"iterations"`
	BestFitness float64   `json:"bestFitness"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRunRecord builds a record from the states of a run, first to last.
func NewRunRecord(runID, origin, objectiveName string, dim int, seed int64, params firefly.Parameters, states []firefly.PopulationState) *RunRecord {
	rec := &RunRecord{
		RunID:     runID,
		Origin:    origin,
		Objective: objectiveName,
		Dimension: dim,
		Seed:      seed,
		Params:    params,
		Timestamp: time.Now(),
	}
	if len(states) > 0 {
		first, last := states[0], states[len(states)-1]
		rec.InitialBestFitness = first.BestFitness
		rec.Iterations = last.Iteration
		rec.BestPosition = append([]float64(nil), last.BestPosition...)
		rec.BestFitness = last.BestFitness
	}
	return rec
}

// ToInfo converts a full RunRecord to RunInfo (metadata only).
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		RunID:       r.RunID,
		Origin:      r.Origin,
		Objective:   r.Objective,
		Dimension:   r.Dimension,
		Iterations:  r.Iterations,
		BestFitness: r.BestFitness,
		Timestamp:   r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.Objective == "" {
		return &ValidationError{Field: "Objective", Reason: "cannot be empty"}
	}
	if err := r.Params.Validate(r.Dimension); err != nil {
		return &ValidationError{Field: "Params", Reason: err.Error()}
	}
	if r.Iterations < 0 || r.Iterations > r.Params.MaxIterations {
		return &ValidationError{
			Field:  "Iterations",
			Reason: fmt.Sprintf("must be within [0, %d]", r.Params.MaxIterations),
		}
	}
	if len(r.BestPosition) != r.Dimension {
		return &ValidationError{
			Field:  "BestPosition",
			Reason: fmt.Sprintf("length mismatch: expected %d, got %d", r.Dimension, len(r.BestPosition)),
		}
	}
	if r.BestFitness > r.InitialBestFitness {
		return &ValidationError{Field: "BestFitness", Reason: "cannot exceed the initial best"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// MarshalJSON writes non-finite fitness values as strings.
func (r RunRecord) MarshalJSON() ([]byte, error) {
	type plain RunRecord
	return json.Marshal(struct {
		plain
		InitialBestFitness objective.Float `json:"initialBestFitness"`
		BestFitness        objective.Float `json:"bestFitness"`
	}{plain(r), objective.Float(r.InitialBestFitness), objective.Float(r.BestFitness)})
}

func (r *RunRecord) UnmarshalJSON(data []byte) error {
	type plain RunRecord
	aux := struct {
		*plain
		InitialBestFitness objective.Float `json:"initialBestFitness"`
		BestFitness        objective.Float `json:"bestFitness"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.InitialBestFitness = float64(aux.InitialBestFitness)
	r.BestFitness = float64(aux.BestFitness)
	return nil
}
