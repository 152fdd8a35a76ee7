package opt

// Optimizer defines an optimization algorithm interface
type Optimizer interface {
	// Name identifies the algorithm in reports
	Name() string

	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// fallback evaluates the origin of the search space clamped into bounds,
// used when an optimizer cannot start.
func fallback(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	x := make([]float64, dim)
	for d := range x {
		if d < len(lower) && x[d] < lower[d] {
			x[d] = lower[d]
		}
		if d < len(upper) && x[d] > upper[d] {
			x[d] = upper[d]
		}
	}
	return x, eval(x)
}
