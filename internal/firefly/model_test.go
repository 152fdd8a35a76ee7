package firefly

import (
	"testing"

	"github.com/cwbudde/fireflyviz/internal/objective"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed sequence of draws, cycling when exhausted.
type scriptedSource struct {
	values []float64
	calls  int
}

func (s *scriptedSource) Float64() float64 {
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return v
}

func stateFor(fn objective.Func, alpha float64, positions ...[]float64) PopulationState {
	fitness := evaluate(fn, positions)
	best := 0
	for i, f := range fitness {
		if f < fitness[best] {
			best = i
		}
	}
	return PopulationState{
		Positions:          positions,
		Fitness:            fitness,
		RandomizationScale: alpha,
		BestPosition:       append([]float64(nil), positions[best]...),
		BestFitness:        fitness[best],
	}
}

func TestInitPopulationUsesBoundsAndOrder(t *testing.T) {
	p := DefaultParameters()
	p.PopulationSize = 2
	p.Lower = []float64{0, 10}
	p.Upper = []float64{1, 20}

	src := &scriptedSource{values: []float64{0.5, 0.25, 0.0, 0.9}}
	state := initPopulation(p, objective.Sphere, 2, src)

	assert.Equal(t, [][]float64{{0.5, 12.5}, {0, 19}}, state.Positions)
	assert.Equal(t, []float64{0.25 + 12.5*12.5, 19 * 19}, state.Fitness)
	assert.Equal(t, []float64{0.5, 12.5}, state.BestPosition)
	assert.Equal(t, state.Fitness[0], state.BestFitness)
	assert.Equal(t, 0, state.Iteration)
	assert.Equal(t, p.RandomizationScale, state.RandomizationScale)
	assert.Equal(t, 4, src.calls)
}

func TestMoveRuleSinglePair(t *testing.T) {
	p := DefaultParameters().ScalarBounds(-1, 1)
	p.BaseAttractiveness = 0.5
	p.AbsorptionCoefficient = 0 // beta = beta0 regardless of distance
	p.AlphaDecayRate = 0.9

	alpha := 0.2
	state := stateFor(objective.Sphere, alpha, []float64{0}, []float64{1})
	src := &scriptedSource{values: []float64{0.75}}

	next := advance(state, p, objective.Sphere, src)

	// Firefly 0 is the brightest and stays put; firefly 1 moves halfway plus 0.2*(0.75-0.5)
	require.Len(t, next.Positions, 2)
	assert.Equal(t, 0.0, next.Positions[0][0])
	assert.InDelta(t, 0.55, next.Positions[1][0], 1e-15)
	assert.InDelta(t, 0.55*0.55, next.Fitness[1], 1e-15)
	assert.Equal(t, 1, src.calls)

	// Best only changes on strict improvement
	assert.Equal(t, 0.0, next.BestFitness)
	assert.Equal(t, alpha*p.AlphaDecayRate, next.RandomizationScale)
	assert.Equal(t, 1, next.Iteration)
}

func TestMoveRuleAttractivenessDecaysWithDistance(t *testing.T) {
	p := DefaultParameters().ScalarBounds(-10, 10)
	p.BaseAttractiveness = 1
	p.AbsorptionCoefficient = 0.5

	state := stateFor(objective.Sphere, 0, []float64{0, 0}, []float64{3, 4})
	next := advance(state, p, objective.Sphere, &scriptedSource{values: []float64{0.5}})

	// r = 5, beta = exp(-0.5 * 25)
	beta := 3.726653172078671e-06
	assert.InDelta(t, 3*(1-beta), next.Positions[1][0], 1e-12)
	assert.InDelta(t, 4*(1-beta), next.Positions[1][1], 1e-12)
}

func TestMoveRuleLastBrighterNeighborWins(t *testing.T) {
	p := DefaultParameters().ScalarBounds(-5, 5)
	p.BaseAttractiveness = 1
	p.AbsorptionCoefficient = 0
	p.RandomizationScale = 0

	// Fitness 4, 0.25, 1: firefly 0 has two brighter neighbours, index 2 is processed last.
	state := stateFor(objective.Sphere, 0, []float64{2}, []float64{0.5}, []float64{1})
	src := &scriptedSource{values: []float64{0.3}}

	next := advance(state, p, objective.Sphere, src)

	assert.Equal(t, 1.0, next.Positions[0][0], "move toward firefly 2 overwrites the move toward firefly 1")
	assert.Equal(t, 0.5, next.Positions[1][0])
	assert.Equal(t, 0.5, next.Positions[2][0])

	// One draw per dimension per brighter comparison: 2 for firefly 0, 1 for firefly 2
	assert.Equal(t, 3, src.calls)
}

func TestMoveRuleReadsFromSnapshot(t *testing.T) {
	p := DefaultParameters().ScalarBounds(-5, 5)
	p.BaseAttractiveness = 1
	p.AbsorptionCoefficient = 0
	p.RandomizationScale = 0

	// Firefly 1 moves onto firefly 0 first; firefly 2 must still see firefly 1 at its old position.
	state := stateFor(objective.Sphere, 0, []float64{0}, []float64{1}, []float64{2})
	next := advance(state, p, objective.Sphere, &scriptedSource{values: []float64{0.5}})

	assert.Equal(t, [][]float64{{0}, {0}, {1}}, next.Positions)

	// The input snapshot is untouched
	assert.Equal(t, [][]float64{{0}, {1}, {2}}, state.Positions)
}

func TestMoveRuleClampsToBounds(t *testing.T) {
	p := DefaultParameters().ScalarBounds(-1, 1)
	p.BaseAttractiveness = 0

	state := stateFor(objective.Sphere, 10, []float64{0.9}, []float64{0})
	next := advance(state, p, objective.Sphere, &scriptedSource{values: []float64{0.99}})

	assert.Equal(t, 1.0, next.Positions[0][0])
	assert.Equal(t, 1.0, next.Fitness[0])

	next = advance(state, p, objective.Sphere, &scriptedSource{values: []float64{0.0}})
	assert.Equal(t, -1.0, next.Positions[0][0])
}

func TestBestUpdatesOnStrictImprovement(t *testing.T) {
	p := DefaultParameters().ScalarBounds(-5, 5)
	p.BaseAttractiveness = 1
	p.AbsorptionCoefficient = 0

	// Noise pushes firefly 1 past firefly 0 toward the origin.
	state := stateFor(objective.Sphere, 1, []float64{1}, []float64{2})
	next := advance(state, p, objective.Sphere, &scriptedSource{values: []float64{0.0}})

	assert.Equal(t, 0.5, next.Positions[1][0])
	assert.Equal(t, []float64{0.5}, next.BestPosition)
	assert.Equal(t, 0.25, next.BestFitness)
	assert.Equal(t, []float64{1}, state.BestPosition)
}

func TestClamp(t *testing.T) {
	pos := []float64{-3, 0.5, 7}
	clamp(pos, []float64{-1, 0, 0}, []float64{1, 1, 5})
	assert.Equal(t, []float64{-1, 0.5, 5}, pos)
}
