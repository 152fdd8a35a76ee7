package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cwbudde/fireflyviz/internal/objective"
)

var (
	curveObjective string
	curveLower     float64
	curveUpper     float64
	curvePoints    int
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Sample a 1D objective as CSV",
	Long:  `Evaluates a 1D objective on evenly spaced points and writes x,f(x) rows as CSV to stdout.`,
	RunE:  runCurve,
}

func init() {
	curveCmd.Flags().StringVar(&curveObjective, "objective", "example", "Objective function: "+joinNames())
	curveCmd.Flags().Float64Var(&curveLower, "lower", 0, "Lower end of the range (default: objective range)")
	curveCmd.Flags().Float64Var(&curveUpper, "upper", 0, "Upper end of the range (default: objective range)")
	curveCmd.Flags().IntVar(&curvePoints, "points", 200, "Number of sample points")
	rootCmd.AddCommand(curveCmd)
}

func runCurve(cmd *cobra.Command, args []string) error {
	def, err := objective.Lookup(curveObjective)
	if err != nil {
		return err
	}
	if err := def.CheckDimension(1); err != nil {
		return err
	}

	lower, upper := def.Lower, def.Upper
	if cmd.Flags().Changed("lower") {
		lower = curveLower
	}
	if cmd.Flags().Changed("upper") {
		upper = curveUpper
	}
	if lower > upper {
		return fmt.Errorf("lower %g exceeds upper %g", lower, upper)
	}
	if curvePoints < 1 {
		return fmt.Errorf("points must be positive, got %d", curvePoints)
	}

	return writeCurveCSV(cmd.OutOrStdout(), objective.SampleCurve(def.Func, lower, upper, curvePoints))
}

func writeCurveCSV(w io.Writer, points []objective.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "f"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
