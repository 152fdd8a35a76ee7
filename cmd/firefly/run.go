package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/fireflyviz/internal/chart"
	"github.com/cwbudde/fireflyviz/internal/config"
	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
	"github.com/cwbudde/fireflyviz/internal/store"
)

var (
	runParams     paramFlags
	runConfigPath string
	runDataDir    string
	runHTMLPath   string
	runPatience   int
	runThreshold  float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization to completion",
	Long: `Runs the firefly algorithm for the configured number of iterations and
prints the best solution. Optionally persists the run and its trace, and
writes an HTML chart of the final swarm.`,
	RunE: runOptimization,
}

func init() {
	conv := firefly.DefaultConvergenceConfig()
	runParams.register(runCmd.Flags())
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "YAML run configuration")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Persist the run and its trace under this directory")
	runCmd.Flags().StringVar(&runHTMLPath, "html", "", "Write a chart of the final swarm to this HTML file (1D/2D)")
	runCmd.Flags().IntVar(&runPatience, "patience", conv.Patience, "Iterations without improvement before reporting convergence (0 = off)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", conv.Threshold, "Relative improvement that counts as progress")

	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags(), runConfigPath, &runParams)
	if err != nil {
		return err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	fn, err := cfg.Func()
	if err != nil {
		return err
	}

	slog.Info("Starting optimization",
		"objective", cfg.Objective,
		"dimension", cfg.Dimension,
		"population", cfg.Params.PopulationSize,
		"iters", cfg.Params.MaxIterations,
		"seed", cfg.Seed,
	)

	start := time.Now()
	states, err := firefly.RunToCompletion(cfg.Params, fn, cfg.Dimension, cfg.Seed)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	first, final := states[0], states[len(states)-1]
	slog.Info("Optimization complete",
		"elapsed", elapsed,
		"initial_best", first.BestFitness,
		"best_fitness", final.BestFitness,
	)

	convergence := firefly.DisabledConvergenceConfig()
	if runPatience > 0 {
		convergence = firefly.ConvergenceConfig{Enabled: true, Patience: runPatience, Threshold: runThreshold}
	}
	printRunReport(cmd.OutOrStdout(), cfg, states, convergence)

	if runDataDir != "" {
		runID, err := saveRun(runDataDir, cfg, states)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved run %s\n", runID)
	}

	if runHTMLPath != "" {
		if err := writeChart(runHTMLPath, cfg, states); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", runHTMLPath)
	}
	return nil
}

// printRunReport summarizes a finished run. For 1D and 2D objectives the
// result is compared against a grid search.
func printRunReport(w io.Writer, cfg *config.RunConfig, states []firefly.PopulationState, convergence firefly.ConvergenceConfig) {
	first, final := states[0], states[len(states)-1]

	fmt.Fprintf(w, "Objective:      %s (%dD)\n", cfg.Objective, cfg.Dimension)
	fmt.Fprintf(w, "Seed:           %d\n", cfg.Seed)
	fmt.Fprintf(w, "Iterations:     %d\n", final.Iteration)
	fmt.Fprintf(w, "Initial best:   %.8g\n", first.BestFitness)
	fmt.Fprintf(w, "Best fitness:   %.8g\n", final.BestFitness)
	fmt.Fprintf(w, "Best position:  %v\n", formatPosition(final.BestPosition))
	fmt.Fprintf(w, "Final alpha:    %.6g\n", final.RandomizationScale)

	if convergence.Enabled {
		if at := firefly.ConvergedAt(states, convergence); at >= 0 {
			fmt.Fprintf(w, "Converged at:   iteration %d\n", at)
		} else {
			fmt.Fprintf(w, "Converged at:   not within %d iterations\n", final.Iteration)
		}
	}

	if n := gridPoints(cfg.Dimension); n > 0 {
		def, err := objective.Lookup(cfg.Objective)
		if err == nil {
			lower, upper := cfg.Params.Bounds(cfg.Dimension)
			pos, val := objective.GridMinimum(def.Func, lower, upper, n)
			fmt.Fprintf(w, "Grid minimum:   %.8g at %v (gap %.3g)\n", val, formatPosition(pos), math.Abs(final.BestFitness-val))
		}
	}
}

func gridPoints(dim int) int {
	switch dim {
	case 1:
		return 20001
	case 2:
		return 401
	default:
		return 0
	}
}

func formatPosition(pos []float64) string {
	s := "["
	for i, v := range pos {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.6g", v)
	}
	return s + "]"
}

func saveRun(dataDir string, cfg *config.RunConfig, states []firefly.PopulationState) (string, error) {
	st, err := store.NewFSStore(dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to open run store: %w", err)
	}

	runID := uuid.New().String()
	record := store.NewRunRecord(runID, "cli", cfg.Objective, cfg.Dimension, cfg.Seed, cfg.Params, states)
	if err := st.SaveRunWithTrace(record, states); err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	slog.Info("Run saved", "run_id", runID, "dir", st.Dir(runID))
	return runID, nil
}

func writeChart(path string, cfg *config.RunConfig, states []firefly.PopulationState) error {
	def, err := objective.Lookup(cfg.Objective)
	if err != nil {
		return err
	}
	lower, upper := cfg.Params.Bounds(cfg.Dimension)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	err = chart.Render(f, chart.Report{
		Title:   fmt.Sprintf("Firefly on %s", cfg.Objective),
		Func:    def.Func,
		Lower:   lower,
		Upper:   upper,
		State:   states[len(states)-1],
		History: chart.BestHistory(states),
	})
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
