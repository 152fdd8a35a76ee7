package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/fireflyviz/internal/config"
	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/opt"
)

var (
	compareParams     paramFlags
	compareConfigPath string
	compareSeeds      int
	compareWorkers    int
	comparePatience   int
	compareThreshold  float64
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the firefly algorithm against a Mayfly baseline",
	Long: `Runs the firefly algorithm and the Mayfly optimizer on the same objective
over a range of seeds, in parallel, and reports best-cost statistics.
Seeds start at --seed (default 1) and increase by one.`,
	RunE: runCompare,
}

func init() {
	compareParams.register(compareCmd.Flags())
	compareCmd.Flags().StringVar(&compareConfigPath, "config", "", "YAML run configuration")
	compareCmd.Flags().IntVar(&compareSeeds, "seeds", 10, "Number of seeds per optimizer")
	compareCmd.Flags().IntVar(&compareWorkers, "workers", runtime.GOMAXPROCS(0), "Concurrent runs")
	compareCmd.Flags().IntVar(&comparePatience, "patience", 0, "Stop a firefly run after this many iterations without improvement (0 = off)")
	compareCmd.Flags().Float64Var(&compareThreshold, "threshold", firefly.DefaultConvergenceConfig().Threshold, "Relative improvement that counts as progress")
	rootCmd.AddCommand(compareCmd)
}

// optimizerFactory builds an optimizer for one seed.
type optimizerFactory func(params firefly.Parameters, seed int64) opt.Optimizer

// compareOptimizers returns the firefly and mayfly factories. The firefly
// runs stop early when convergence detection is enabled.
func compareOptimizers(convergence firefly.ConvergenceConfig) []optimizerFactory {
	return []optimizerFactory{
		func(p firefly.Parameters, seed int64) opt.Optimizer {
			return opt.NewFirefly(p, seed).WithConvergence(convergence)
		},
		func(p firefly.Parameters, seed int64) opt.Optimizer {
			return opt.NewMayfly(p.MaxIterations, p.PopulationSize, seed)
		},
	}
}

// iterationCounter is implemented by optimizers that can stop early.
type iterationCounter interface {
	Iterations() int
}

type compareResult struct {
	Optimizer  string
	Seed       int64
	Cost       float64
	Iterations int
	Elapsed    time.Duration
}

type compareSummary struct {
	Optimizer string
	Runs      int
	Mean      float64
	StdDev    float64
	Best      float64
	Worst     float64
	AvgIters  float64
	Elapsed   time.Duration
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags(), compareConfigPath, &compareParams)
	if err != nil {
		return err
	}
	if compareSeeds < 1 {
		return fmt.Errorf("seeds must be positive, got %d", compareSeeds)
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}

	convergence := firefly.DisabledConvergenceConfig()
	if comparePatience > 0 {
		convergence = firefly.ConvergenceConfig{Enabled: true, Patience: comparePatience, Threshold: compareThreshold}
	}

	results, err := compareRuns(cfg, compareSeeds, compareWorkers, compareOptimizers(convergence))
	if err != nil {
		return err
	}
	printComparison(cmd.OutOrStdout(), cfg, summarize(results))
	return nil
}

// compareRuns executes every optimizer on every seed with at most workers
// runs in flight. Each run owns its random source.
func compareRuns(cfg *config.RunConfig, seeds, workers int, factories []optimizerFactory) ([]compareResult, error) {
	fn, err := cfg.Func()
	if err != nil {
		return nil, err
	}
	lower, upper := cfg.Params.Bounds(cfg.Dimension)

	p := pool.NewWithResults[compareResult]().WithMaxGoroutines(max(workers, 1))
	for i := 0; i < seeds; i++ {
		seed := cfg.Seed + int64(i)
		for _, factory := range factories {
			p.Go(func() compareResult {
				o := factory(cfg.Params, seed)
				start := time.Now()
				_, cost := o.Run(fn, lower, upper, cfg.Dimension)
				iters := cfg.Params.MaxIterations
				if c, ok := o.(iterationCounter); ok {
					iters = c.Iterations()
				}
				slog.Debug("Compare run finished", "optimizer", o.Name(), "seed", seed, "cost", cost, "iterations", iters)
				return compareResult{Optimizer: o.Name(), Seed: seed, Cost: cost, Iterations: iters, Elapsed: time.Since(start)}
			})
		}
	}
	return p.Wait(), nil
}

// summarize groups results by optimizer, in name order.
func summarize(results []compareResult) []compareSummary {
	byName := map[string][]compareResult{}
	for _, r := range results {
		byName[r.Optimizer] = append(byName[r.Optimizer], r)
	}

	summaries := make([]compareSummary, 0, len(byName))
	for name, rs := range byName {
		costs := make([]float64, len(rs))
		var elapsed time.Duration
		iters := 0
		for i, r := range rs {
			costs[i] = r.Cost
			elapsed += r.Elapsed
			iters += r.Iterations
		}
		s := compareSummary{
			Optimizer: name,
			Runs:      len(rs),
			Best:      floats.Min(costs),
			Worst:     floats.Max(costs),
			AvgIters:  float64(iters) / float64(len(rs)),
			Elapsed:   elapsed / time.Duration(len(rs)),
		}
		if len(costs) > 1 {
			s.Mean, s.StdDev = stat.MeanStdDev(costs, nil)
		} else {
			s.Mean, s.StdDev = costs[0], 0
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Optimizer < summaries[j].Optimizer })
	return summaries
}

func printComparison(w io.Writer, cfg *config.RunConfig, summaries []compareSummary) {
	fmt.Fprintf(w, "Objective %s (%dD), %d iterations, population %d\n\n",
		cfg.Objective, cfg.Dimension, cfg.Params.MaxIterations, cfg.Params.PopulationSize)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPTIMIZER\tRUNS\tMEAN\tSTD\tBEST\tWORST\tAVG ITERS\tAVG TIME")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.6g\t%.3g\t%.6g\t%.6g\t%.1f\t%s\n",
			s.Optimizer, s.Runs, s.Mean, zeroIfNaN(s.StdDev), s.Best, s.Worst, s.AvgIters, s.Elapsed.Round(time.Microsecond))
	}
	tw.Flush()
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
