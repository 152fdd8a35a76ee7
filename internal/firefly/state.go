package firefly

import (
	"encoding/json"

	"github.com/cwbudde/fireflyviz/internal/objective"
)

// PopulationState is one snapshot of the swarm. A state is never modified
// after Initialize or Step returns it; the next iteration is a new value
// with its own slices.
type PopulationState struct {
	Positions          [][]float64 `json:"positions"`
	Fitness            []float64   `json:"fitness"` // Parallel to Positions, lower is better
	Iteration          int         `json:"iteration"`
	RandomizationScale float64     `json:"randomizationScale"` // Decayed alpha
	BestPosition       []float64   `json:"bestPosition"`
	BestFitness        float64     `json:"bestFitness"` // All-time minimum
}

// Size returns the number of fireflies.
func (s PopulationState) Size() int {
	return len(s.Positions)
}

// Dimension returns the dimensionality of the search space.
func (s PopulationState) Dimension() int {
	return len(s.BestPosition)
}

// Clone returns a deep copy, for callers that want to edit a snapshot.
func (s PopulationState) Clone() PopulationState {
	out := s
	out.Positions = clonePositions(s.Positions)
	out.Fitness = append([]float64(nil), s.Fitness...)
	out.BestPosition = append([]float64(nil), s.BestPosition...)
	return out
}

func clonePositions(positions [][]float64) [][]float64 {
	out := make([][]float64, len(positions))
	for i, p := range positions {
		out[i] = append([]float64(nil), p...)
	}
	return out
}

// MarshalJSON encodes fitness values through Float, so a population holding
// an infinite fitness still serializes.
func (s PopulationState) MarshalJSON() ([]byte, error) {
	type plain PopulationState
	return json.Marshal(struct {
		plain
		Fitness     []objective.Float `json:"fitness"`
		BestFitness objective.Float   `json:"bestFitness"`
	}{plain(s), objective.Floats(s.Fitness), objective.Float(s.BestFitness)})
}

func (s *PopulationState) UnmarshalJSON(data []byte) error {
	type plain PopulationState
	aux := struct {
		*plain
		Fitness     []objective.Float `json:"fitness"`
		BestFitness objective.Float   `json:"bestFitness"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Fitness = objective.Float64s(aux.Fitness)
	s.BestFitness = float64(aux.BestFitness)
	return nil
}
