package firefly

import (
	"log/slog"
	"math"
)

// ConvergenceConfig controls stagnation detection on the best fitness.
type ConvergenceConfig struct {
	Enabled bool

	// Patience is the number of consecutive updates without significant
	// progress after which the run counts as converged.
	Patience int

	// Threshold is the relative gain over the last significant best that
	// counts as progress. A zero anchor uses the absolute gain.
	Threshold float64
}

// DefaultConvergenceConfig is the setting used by the CLI reports.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: true, Patience: 10, Threshold: 1e-4}
}

// DisabledConvergenceConfig never reports convergence.
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{}
}

// ConvergenceTracker consumes the best fitness of successive states.
type ConvergenceTracker struct {
	config  ConvergenceConfig
	anchor  float64 // best at the last significant gain
	started bool
	stale   int
}

func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{config: config}
}

// Update records the next best fitness and reports whether the run has
// stagnated for Patience updates. The first value only sets the anchor.
func (c *ConvergenceTracker) Update(best float64) bool {
	if !c.config.Enabled {
		return false
	}
	if !c.started {
		c.started = true
		c.anchor = best
		return false
	}

	if gain(c.anchor, best) >= c.config.Threshold {
		c.anchor = best
		c.stale = 0
		return false
	}

	c.stale++
	if c.stale < c.config.Patience {
		return false
	}
	slog.Debug("Convergence detected", "stale", c.stale, "patience", c.config.Patience, "best_fitness", c.anchor)
	return true
}

// gain measures the improvement of cur over anchor. Leaving an infinite
// anchor for a finite value is unbounded progress.
func gain(anchor, cur float64) float64 {
	switch {
	case math.IsNaN(cur) || cur >= anchor:
		return 0
	case math.IsInf(anchor, 1):
		return math.Inf(1)
	case anchor == 0:
		return -cur
	}
	return (anchor - cur) / math.Abs(anchor)
}

// ConvergedAt replays a finished run and returns the iteration at which the
// tracker first reported convergence, or -1.
func ConvergedAt(states []PopulationState, config ConvergenceConfig) int {
	tracker := NewConvergenceTracker(config)
	for _, s := range states {
		if tracker.Update(s.BestFitness) {
			return s.Iteration
		}
	}
	return -1
}
