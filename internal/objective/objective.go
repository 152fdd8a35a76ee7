package objective

import (
	"fmt"
	"math"
	"sort"
)

// Func is an objective function to minimize. Implementations must be pure:
// no hidden state, no side effects, callable any number of times.
// Passing a position of the wrong dimensionality is a programming error.
type Func func(x []float64) float64

// Example is the function shown in the interactive visualization:
//
//	f(x) = (x/5 - x^3) * exp(-2x^2)
//
// For more than one dimension the per-coordinate terms are summed, so the
// 1D case is exactly the formula above.
func Example(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += (v/5 - v*v*v) * math.Exp(-2*v*v)
	}
	return sum
}

// Sphere: f(x) = sum(x_i^2), minimum 0 at the origin
func Sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// Rastrigin is highly multimodal with its global minimum 0 at the origin.
func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Ackley has a nearly flat outer region and a deep hole at the origin.
func Ackley(x []float64) float64 {
	n := float64(len(x))
	var sumSq, sumCos float64
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E
}

// Himmelblau is defined on two dimensions only and has four equal minima of 0.
func Himmelblau(x []float64) float64 {
	a := x[0]*x[0] + x[1] - 11
	b := x[0] + x[1]*x[1] - 7
	return a*a + b*b
}

// Guard wraps f so that NaN results become +Inf. A guarded individual can
// never be selected as best, since nothing compares lower than +Inf.
func Guard(f Func) Func {
	return func(x []float64) float64 {
		y := f(x)
		if math.IsNaN(y) {
			return math.Inf(1)
		}
		return y
	}
}

// Definition describes a named benchmark.
type Definition struct {
	Name  string
	Func  Func
	Lower float64 // Suggested search-space bounds
	Upper float64
	Dims  int // Fixed dimensionality, 0 if any
}

var registry = map[string]Definition{
	"example":    {Name: "example", Func: Example, Lower: -3, Upper: 3},
	"sphere":     {Name: "sphere", Func: Sphere, Lower: -5, Upper: 5},
	"rastrigin":  {Name: "rastrigin", Func: Rastrigin, Lower: -5.12, Upper: 5.12},
	"ackley":     {Name: "ackley", Func: Ackley, Lower: -5, Upper: 5},
	"himmelblau": {Name: "himmelblau", Func: Himmelblau, Lower: -5, Upper: 5, Dims: 2},
}

// Lookup returns the named benchmark.
func Lookup(name string) (Definition, error) {
	def, ok := registry[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown objective %q (available: %v)", name, Names())
	}
	return def, nil
}

// Names lists the registered benchmarks in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckDimension reports whether the benchmark accepts dim dimensions.
func (d Definition) CheckDimension(dim int) error {
	if dim <= 0 {
		return fmt.Errorf("objective %s: dimension must be positive, got %d", d.Name, dim)
	}
	if d.Dims != 0 && d.Dims != dim {
		return fmt.Errorf("objective %s is defined for %d dimensions, got %d", d.Name, d.Dims, dim)
	}
	return nil
}
