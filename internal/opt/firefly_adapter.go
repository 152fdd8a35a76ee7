package opt

import (
	"log/slog"

	"github.com/cwbudde/fireflyviz/internal/firefly"
)

// FireflyAdapter runs the firefly algorithm behind the Optimizer interface.
// With convergence detection enabled it stops before MaxIterations once
// the best fitness stagnates.
type FireflyAdapter struct {
	params      firefly.Parameters
	seed        int64
	convergence firefly.ConvergenceConfig
	iterations  int
}

// NewFirefly creates a firefly optimizer. The bounds passed to Run replace
// those in params.
func NewFirefly(params firefly.Parameters, seed int64) *FireflyAdapter {
	return &FireflyAdapter{
		params:      params,
		seed:        seed,
		convergence: firefly.DisabledConvergenceConfig(),
	}
}

// WithConvergence enables early stopping.
func (f *FireflyAdapter) WithConvergence(cfg firefly.ConvergenceConfig) *FireflyAdapter {
	f.convergence = cfg
	return f
}

// Name implements Optimizer.
func (f *FireflyAdapter) Name() string {
	return "firefly"
}

// Iterations reports how many steps the last Run performed.
func (f *FireflyAdapter) Iterations() int {
	return f.iterations
}

// Run implements Optimizer.
func (f *FireflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	params := f.params
	params.Lower = append([]float64(nil), lower...)
	params.Upper = append([]float64(nil), upper...)

	src := firefly.NewSource(f.seed)
	state, err := firefly.Initialize(params, eval, dim, src)
	if err != nil {
		slog.Warn("Firefly optimization failed, using fallback point", "error", err)
		f.iterations = 0
		return fallback(eval, lower, upper, dim)
	}

	tracker := firefly.NewConvergenceTracker(f.convergence)
	tracker.Update(state.BestFitness)
	for state.Iteration < params.MaxIterations {
		state = firefly.Step(state, params, eval, src)
		if tracker.Update(state.BestFitness) {
			slog.Debug("Firefly converged early", "iteration", state.Iteration, "best_fitness", state.BestFitness)
			break
		}
	}

	f.iterations = state.Iteration
	return state.BestPosition, state.BestFitness
}
