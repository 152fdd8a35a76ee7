package objective

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Point is one sample of a 1D curve.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MarshalJSON writes a non-finite Y as a string.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X Float `json:"x"`
		Y Float `json:"y"`
	}{Float(p.X), Float(p.Y)})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var aux struct {
		X Float `json:"x"`
		Y Float `json:"y"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.X, p.Y = float64(aux.X), float64(aux.Y)
	return nil
}

// SampleCurve evaluates f on n evenly spaced points across [lower, upper].
// It is only used for plotting and has no bearing on the optimization.
func SampleCurve(f Func, lower, upper float64, n int) []Point {
	xs := grid(lower, upper, n)
	points := make([]Point, len(xs))
	arg := make([]float64, 1)
	for i, x := range xs {
		arg[0] = x
		points[i] = Point{X: x, Y: f(arg)}
	}
	return points
}

// GridMinimum searches a regular grid with n points per dimension and
// returns the best position and value found. It is an independent oracle
// for checking optimizer results, so keep n*len(lower) small in >2 dimensions.
func GridMinimum(f Func, lower, upper []float64, n int) ([]float64, float64) {
	dim := len(lower)
	axes := make([][]float64, dim)
	for d := range axes {
		axes[d] = grid(lower[d], upper[d], n)
	}

	best := make([]float64, dim)
	bestVal := math.Inf(1)
	idx := make([]int, dim)
	x := make([]float64, dim)

	for {
		for d := range x {
			x[d] = axes[d][idx[d]]
		}
		if v := f(x); v < bestVal {
			bestVal = v
			copy(best, x)
		}

		// Odometer increment over the grid indices
		d := 0
		for d < dim {
			idx[d]++
			if idx[d] < len(axes[d]) {
				break
			}
			idx[d] = 0
			d++
		}
		if d == dim {
			break
		}
	}

	return best, bestVal
}

func grid(lower, upper float64, n int) []float64 {
	if n < 2 || lower == upper {
		return []float64{lower}
	}
	return floats.Span(make([]float64, n), lower, upper)
}
