package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// minMayflyPopulation is the smallest population mayfly v0.1.0 accepts.
const minMayflyPopulation = 20

// MayflyAdapter wraps the external Mayfly library as a baseline optimizer
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter. Populations below the
// library minimum are raised to it.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	if popSize < minMayflyPopulation {
		popSize = minMayflyPopulation
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Name implements Optimizer.
func (m *MayflyAdapter) Name() string {
	return "mayfly"
}

// Run executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	config := mayfly.NewDefaultConfig()

	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize

	// The library takes scalar bounds; use the widest box covering every dimension
	config.LowerBound, config.UpperBound = lower[0], upper[0]
	for d := 1; d < len(lower) && d < len(upper); d++ {
		config.LowerBound = min(config.LowerBound, lower[d])
		config.UpperBound = max(config.UpperBound, upper[d])
	}

	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		slog.Warn("Mayfly optimization failed, using fallback point", "error", err)
		return fallback(eval, lower, upper, dim)
	}

	return result.GlobalBest.Position, result.GlobalBest.Cost
}
