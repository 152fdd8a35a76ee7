// Package chart renders population snapshots as standalone go-echarts HTML.
package chart

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
)

// DefaultCurvePoints is the sampling density of the objective curve in 1D.
const DefaultCurvePoints = 200

// Report is everything needed to draw one frame of a run.
type Report struct {
	Title string
	Func  objective.Func
	Lower []float64
	Upper []float64
	State firefly.PopulationState

	// History holds the best fitness per iteration; empty skips the
	// convergence chart
	History []float64

	CurvePoints int
}

// Render writes an HTML page with the swarm chart and, when history is
// present, the convergence chart.
func Render(w io.Writer, r Report) error {
	swarm, err := Swarm(r)
	if err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = r.Title
	page.AddCharts(swarm)
	if len(r.History) > 0 {
		page.AddCharts(Convergence(r.History))
	}
	return page.Render(w)
}

// Swarm builds a scatter chart of the firefly positions. In 1D the objective
// curve is drawn underneath and fireflies sit at (x, f(x)); in 2D the plane
// is shown directly.
func Swarm(r Report) (*charts.Scatter, error) {
	dim := r.State.Dimension()
	if dim < 1 || dim > 2 {
		return nil, fmt.Errorf("can only plot 1D or 2D populations, got %d dimensions", dim)
	}

	scatter := charts.NewScatter()
	xName, yName := "x", "f(x)"
	if dim == 2 {
		xName, yName = "x1", "x2"
	}
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    r.Title,
			Subtitle: fmt.Sprintf("iteration %d, best %.6g", r.State.Iteration, r.State.BestFitness),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: xName,
			Type: "value",
			Min:  r.Lower[0],
			Max:  r.Upper[0],
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: yName,
			Type: "value",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
	)

	if dim == 1 && r.Func != nil {
		n := r.CurvePoints
		if n <= 0 {
			n = DefaultCurvePoints
		}
		curve := objective.SampleCurve(r.Func, r.Lower[0], r.Upper[0], n)
		data := make([]opts.ScatterData, 0, len(curve))
		for _, p := range curve {
			if !finite(p.Y) {
				continue
			}
			data = append(data, opts.ScatterData{
				Value:      []float64{p.X, p.Y},
				Symbol:     "circle",
				SymbolSize: 2,
			})
		}
		scatter.AddSeries("objective", data)
	}

	// A 1D point carries its fitness as y, which must be finite to plot.
	fireflies := make([]opts.ScatterData, 0, r.State.Size())
	for i, pos := range r.State.Positions {
		if dim == 1 && !finite(r.State.Fitness[i]) {
			continue
		}
		fireflies = append(fireflies, opts.ScatterData{
			Value:      point(pos, r.State.Fitness[i]),
			Symbol:     "circle",
			SymbolSize: 10,
		})
	}
	var best []opts.ScatterData
	if dim == 2 || finite(r.State.BestFitness) {
		best = append(best, opts.ScatterData{
			Value:      point(r.State.BestPosition, r.State.BestFitness),
			Symbol:     "triangle",
			SymbolSize: 14,
		})
	}

	scatter.AddSeries("fireflies", fireflies).
		AddSeries("best", best).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)
	return scatter, nil
}

// Convergence builds a line chart of the best fitness per iteration.
func Convergence(history []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Best fitness"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "f"}),
	)

	iterations := make([]int, len(history))
	data := make([]opts.LineData, len(history))
	for i, f := range history {
		iterations[i] = i
		if finite(f) {
			data[i] = opts.LineData{Value: f}
		} else {
			data[i] = opts.LineData{Value: "-"} // echarts gap
		}
	}
	line.SetXAxis(iterations).AddSeries("best", data)
	return line
}

// point maps a position to chart coordinates: (x, f) in 1D, (x1, x2) in 2D.
func point(pos []float64, fitness float64) []float64 {
	if len(pos) == 1 {
		return []float64{pos[0], fitness}
	}
	return []float64{pos[0], pos[1]}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// BestHistory extracts the best fitness of each state.
func BestHistory(states []firefly.PopulationState) []float64 {
	h := make([]float64, len(states))
	for i, s := range states {
		h[i] = s.BestFitness
	}
	return h
}
