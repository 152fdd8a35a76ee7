package firefly

import (
	"errors"
	"fmt"
	"math"
)

// Parameters is the immutable configuration of one run.
//
// Lower and Upper hold either a single value, which applies to every
// dimension, or one value per dimension.
type Parameters struct {
	PopulationSize        int       `json:"populationSize" yaml:"population_size"`
	Lower                 []float64 `json:"lowerBound" yaml:"lower_bound"`
	Upper                 []float64 `json:"upperBound" yaml:"upper_bound"`
	BaseAttractiveness    float64   `json:"baseAttractiveness" yaml:"base_attractiveness"`       // beta0
	RandomizationScale    float64   `json:"randomizationScale" yaml:"randomization_scale"`       // alpha
	AbsorptionCoefficient float64   `json:"absorptionCoefficient" yaml:"absorption_coefficient"` // gamma
	AlphaDecayRate        float64   `json:"alphaDecayRate" yaml:"alpha_decay_rate"`              // delta
	MaxIterations         int       `json:"maxIterations" yaml:"max_iterations"`
}

// DefaultParameters returns the settings used by the interactive visualization.
func DefaultParameters() Parameters {
	return Parameters{
		PopulationSize:        10,
		Lower:                 []float64{-3},
		Upper:                 []float64{3},
		BaseAttractiveness:    1.0,
		RandomizationScale:    0.2,
		AbsorptionCoefficient: 1.0,
		AlphaDecayRate:        0.97,
		MaxIterations:         60,
	}
}

// ScalarBounds sets the same [lower, upper] range on every dimension.
func (p Parameters) ScalarBounds(lower, upper float64) Parameters {
	p.Lower = []float64{lower}
	p.Upper = []float64{upper}
	return p
}

// Bounds returns the per-dimension bounds for a search space of dim
// dimensions, broadcasting scalar bounds. The returned slices are fresh.
func (p Parameters) Bounds(dim int) (lower, upper []float64) {
	lower = broadcast(p.Lower, dim)
	upper = broadcast(p.Upper, dim)
	return lower, upper
}

func broadcast(v []float64, dim int) []float64 {
	out := make([]float64, dim)
	if len(v) == 1 {
		for d := range out {
			out[d] = v[0]
		}
		return out
	}
	copy(out, v)
	return out
}

// ErrInvalidConfig matches every *ConfigError via errors.Is.
var ErrInvalidConfig = &ConfigError{}

// ConfigError reports a parameter that makes a run impossible.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration"
	}
	return "invalid configuration: " + e.Field + " " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// Validate checks the parameters against a search space of dim dimensions.
func (p Parameters) Validate(dim int) error {
	if dim <= 0 {
		return &ConfigError{Field: "dimension", Reason: fmt.Sprintf("must be positive, got %d", dim)}
	}
	if p.PopulationSize <= 0 {
		return &ConfigError{Field: "PopulationSize", Reason: fmt.Sprintf("must be positive, got %d", p.PopulationSize)}
	}
	if p.MaxIterations <= 0 {
		return &ConfigError{Field: "MaxIterations", Reason: fmt.Sprintf("must be positive, got %d", p.MaxIterations)}
	}
	if err := checkBoundLen("Lower", p.Lower, dim); err != nil {
		return err
	}
	if err := checkBoundLen("Upper", p.Upper, dim); err != nil {
		return err
	}

	lower, upper := p.Bounds(dim)
	for d := 0; d < dim; d++ {
		if !isFinite(lower[d]) || !isFinite(upper[d]) {
			return &ConfigError{Field: "Bounds", Reason: fmt.Sprintf("dimension %d must be finite", d)}
		}
		if lower[d] > upper[d] {
			return &ConfigError{
				Field:  "Bounds",
				Reason: fmt.Sprintf("dimension %d: lower %g exceeds upper %g", d, lower[d], upper[d]),
			}
		}
	}

	if !(p.BaseAttractiveness >= 0) {
		return &ConfigError{Field: "BaseAttractiveness", Reason: "cannot be negative"}
	}
	if !(p.RandomizationScale >= 0) {
		return &ConfigError{Field: "RandomizationScale", Reason: "cannot be negative"}
	}
	if !(p.AbsorptionCoefficient >= 0) {
		return &ConfigError{Field: "AbsorptionCoefficient", Reason: "cannot be negative"}
	}
	if !(p.AlphaDecayRate > 0 && p.AlphaDecayRate <= 1) {
		return &ConfigError{Field: "AlphaDecayRate", Reason: fmt.Sprintf("must be in (0, 1], got %g", p.AlphaDecayRate)}
	}
	return nil
}

func checkBoundLen(field string, v []float64, dim int) error {
	if len(v) == 1 || len(v) == dim {
		return nil
	}
	return &ConfigError{
		Field:  field,
		Reason: fmt.Sprintf("needs 1 or %d values, got %d", dim, len(v)),
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsConfigError reports whether err was caused by invalid parameters.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
