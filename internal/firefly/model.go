package firefly

import (
	"math"

	"github.com/cwbudde/fireflyviz/internal/objective"
	"gonum.org/v1/gonum/floats"
)

// initPopulation samples every coordinate uniformly from its bounds,
// individual by individual, and evaluates the swarm.
func initPopulation(params Parameters, fn objective.Func, dim int, src Source) PopulationState {
	lower, upper := params.Bounds(dim)

	positions := make([][]float64, params.PopulationSize)
	for i := range positions {
		pos := make([]float64, dim)
		for d := range pos {
			pos[d] = lower[d] + src.Float64()*(upper[d]-lower[d])
		}
		positions[i] = pos
	}

	fitness := evaluate(fn, positions)
	bestIdx := floats.MinIdx(fitness)

	return PopulationState{
		Positions:          positions,
		Fitness:            fitness,
		Iteration:          0,
		RandomizationScale: params.RandomizationScale,
		BestPosition:       append([]float64(nil), positions[bestIdx]...),
		BestFitness:        fitness[bestIdx],
	}
}

// advance performs one generation: move, clamp, evaluate, update best, decay.
func advance(state PopulationState, params Parameters, fn objective.Func, src Source) PopulationState {
	dim := state.Dimension()
	lower, upper := params.Bounds(dim)

	// All reads come from the snapshot, all writes go to next.
	positions := state.Positions
	next := clonePositions(positions)
	alpha := state.RandomizationScale

	for i := range positions {
		for j := range positions {
			if i == j || !(state.Fitness[j] < state.Fitness[i]) {
				continue
			}
			r := floats.Distance(positions[i], positions[j], 2)
			beta := params.BaseAttractiveness * math.Exp(-params.AbsorptionCoefficient*r*r)

			// A later brighter j replaces the move toward an earlier one.
			for d := 0; d < dim; d++ {
				next[i][d] = positions[i][d]*(1-beta) + positions[j][d]*beta + alpha*(src.Float64()-0.5)
			}
		}
		clamp(next[i], lower, upper)
	}

	fitness := evaluate(fn, next)

	bestPosition := state.BestPosition
	bestFitness := state.BestFitness
	if idx := floats.MinIdx(fitness); fitness[idx] < bestFitness {
		bestPosition = append([]float64(nil), next[idx]...)
		bestFitness = fitness[idx]
	}

	return PopulationState{
		Positions:          next,
		Fitness:            fitness,
		Iteration:          state.Iteration + 1,
		RandomizationScale: alpha * params.AlphaDecayRate,
		BestPosition:       bestPosition,
		BestFitness:        bestFitness,
	}
}

func evaluate(fn objective.Func, positions [][]float64) []float64 {
	fitness := make([]float64, len(positions))
	for i, p := range positions {
		fitness[i] = fn(p)
	}
	return fitness
}

// clamp pins every coordinate into [lower[d], upper[d]].
func clamp(pos, lower, upper []float64) {
	for d, v := range pos {
		pos[d] = math.Min(math.Max(v, lower[d]), upper[d])
	}
}
