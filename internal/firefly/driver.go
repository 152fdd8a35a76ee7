package firefly

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/fireflyviz/internal/objective"
)

// Phase is the lifecycle position of a run.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseInitialized   Phase = "initialized"
	PhaseRunning       Phase = "running"
	PhaseCompleted     Phase = "completed"
)

// Initialize validates the parameters and creates the iteration-0 state.
func Initialize(params Parameters, fn objective.Func, dim int, src Source) (PopulationState, error) {
	if err := params.Validate(dim); err != nil {
		return PopulationState{}, err
	}
	if fn == nil {
		return PopulationState{}, &ConfigError{Field: "objective", Reason: "cannot be nil"}
	}
	if src == nil {
		return PopulationState{}, &ConfigError{Field: "source", Reason: "cannot be nil"}
	}

	state := initPopulation(params, fn, dim, src)
	slog.Debug("Firefly population initialized",
		"population", params.PopulationSize,
		"dimension", dim,
		"best_fitness", state.BestFitness,
	)
	return state, nil
}

// Step advances the run by exactly one generation. Once the state has
// reached params.MaxIterations it is returned unchanged.
func Step(state PopulationState, params Parameters, fn objective.Func, src Source) PopulationState {
	if state.Iteration >= params.MaxIterations {
		return state
	}
	next := advance(state, params, fn, src)
	slog.Debug("Firefly step",
		"iteration", next.Iteration,
		"alpha", next.RandomizationScale,
		"best_fitness", next.BestFitness,
	)
	return next
}

// RunToCompletion runs a fresh, independently seeded run and returns every
// state from iteration 0 through params.MaxIterations.
func RunToCompletion(params Parameters, fn objective.Func, dim int, seed int64) ([]PopulationState, error) {
	return RunWithSource(params, fn, dim, NewSource(seed))
}

// RunWithSource is RunToCompletion with an explicit random source.
func RunWithSource(params Parameters, fn objective.Func, dim int, src Source) ([]PopulationState, error) {
	state, err := Initialize(params, fn, dim, src)
	if err != nil {
		return nil, err
	}

	states := make([]PopulationState, 0, params.MaxIterations+1)
	states = append(states, state)
	for state.Iteration < params.MaxIterations {
		state = Step(state, params, fn, src)
		states = append(states, state)
	}
	return states, nil
}

// PhaseOf reports where state sits in the run lifecycle.
func PhaseOf(state PopulationState, params Parameters) Phase {
	switch {
	case state.Positions == nil:
		return PhaseUninitialized
	case state.Iteration >= params.MaxIterations:
		return PhaseCompleted
	case state.Iteration == 0:
		return PhaseInitialized
	default:
		return PhaseRunning
	}
}

// Driver binds a run's inputs together for interactive stepping. It holds
// only the latest state; the caller serializes access.
type Driver struct {
	params Parameters
	fn     objective.Func
	dim    int
	src    Source
	state  PopulationState
	ready  bool
}

// NewDriver validates the inputs and returns an uninitialized driver.
func NewDriver(params Parameters, fn objective.Func, dim int, src Source) (*Driver, error) {
	if err := params.Validate(dim); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, &ConfigError{Field: "objective", Reason: "cannot be nil"}
	}
	if src == nil {
		return nil, &ConfigError{Field: "source", Reason: "cannot be nil"}
	}
	return &Driver{params: params, fn: fn, dim: dim, src: src}, nil
}

// Reset discards the current state and initializes a new population.
func (d *Driver) Reset() (PopulationState, error) {
	state, err := Initialize(d.params, d.fn, d.dim, d.src)
	if err != nil {
		return PopulationState{}, fmt.Errorf("failed to initialize population: %w", err)
	}
	d.state = state
	d.ready = true
	return state, nil
}

// Step advances one generation, initializing first if needed.
func (d *Driver) Step() (PopulationState, error) {
	if !d.ready {
		return d.Reset()
	}
	d.state = Step(d.state, d.params, d.fn, d.src)
	return d.state, nil
}

// State returns the latest snapshot and whether one exists.
func (d *Driver) State() (PopulationState, bool) {
	return d.state, d.ready
}

// Phase reports the driver's lifecycle phase.
func (d *Driver) Phase() Phase {
	if !d.ready {
		return PhaseUninitialized
	}
	return PhaseOf(d.state, d.params)
}

// Done reports whether the run has reached MaxIterations.
func (d *Driver) Done() bool {
	return d.Phase() == PhaseCompleted
}

