package opt

import (
	"math"
	"testing"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
)

func TestFireflyAdapterOnSphere(t *testing.T) {
	params := firefly.DefaultParameters()
	params.PopulationSize = 20
	params.MaxIterations = 100
	params.RandomizationScale = 0.5

	optimizer := NewFirefly(params, 42)

	dim := 2
	best, cost := optimizer.Run(objective.Sphere, []float64{-5, -5}, []float64{5, 5}, dim)

	if len(best) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(best))
	}
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	if optimizer.Iterations() != params.MaxIterations {
		t.Errorf("Expected %d iterations without early stop, got %d", params.MaxIterations, optimizer.Iterations())
	}
}

func TestFireflyAdapterMatchesRunToCompletion(t *testing.T) {
	params := firefly.DefaultParameters()

	best, cost := NewFirefly(params, 7).Run(objective.Example, []float64{-3}, []float64{3}, 1)

	states, err := firefly.RunToCompletion(params, objective.Example, 1, 7)
	if err != nil {
		t.Fatalf("RunToCompletion failed: %v", err)
	}
	final := states[len(states)-1]
	if cost != final.BestFitness || best[0] != final.BestPosition[0] {
		t.Errorf("Adapter result (%v, %f) differs from driver (%v, %f)",
			best, cost, final.BestPosition, final.BestFitness)
	}
}

func TestFireflyAdapterEarlyStop(t *testing.T) {
	params := firefly.DefaultParameters()
	params.PopulationSize = 1 // a lone firefly never improves
	params.MaxIterations = 500

	optimizer := NewFirefly(params, 3).WithConvergence(firefly.ConvergenceConfig{
		Enabled:   true,
		Patience:  5,
		Threshold: 1e-6,
	})
	optimizer.Run(objective.Example, []float64{-3}, []float64{3}, 1)

	if optimizer.Iterations() != 5 {
		t.Errorf("Expected early stop after 5 iterations, got %d", optimizer.Iterations())
	}
}

func TestFireflyAdapterInvalidConfigFallsBack(t *testing.T) {
	params := firefly.DefaultParameters()
	params.PopulationSize = 0

	best, cost := NewFirefly(params, 1).Run(objective.Sphere, []float64{1, -2}, []float64{2, 2}, 2)

	if best[0] != 1 || best[1] != 0 {
		t.Errorf("Expected clamped origin [1 0], got %v", best)
	}
	if math.Abs(cost-1) > 1e-12 {
		t.Errorf("Expected cost 1, got %f", cost)
	}
}

func TestOptimizerInterface(t *testing.T) {
	var _ Optimizer = (*FireflyAdapter)(nil)
	var _ Optimizer = (*MayflyAdapter)(nil)
}
