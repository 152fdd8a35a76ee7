package main

import (
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cwbudde/fireflyviz/internal/config"
	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/logger"
	"github.com/cwbudde/fireflyviz/internal/objective"
)

// paramFlags binds the algorithm parameters to command-line flags. Only
// flags the user actually set override values from a config file.
type paramFlags struct {
	objective string
	dim       int
	seed      int64

	pop   int
	lower []float64
	upper []float64
	beta0 float64
	alpha float64
	gamma float64
	delta float64
	iters int
}

func (f *paramFlags) register(fs *pflag.FlagSet) {
	d := firefly.DefaultParameters()
	fs.StringVar(&f.objective, "objective", "example", "Objective function: "+joinNames())
	fs.IntVar(&f.dim, "dim", 1, "Search-space dimension")
	fs.Int64Var(&f.seed, "seed", 0, "Random seed (0 = time-based)")

	fs.IntVar(&f.pop, "pop", d.PopulationSize, "Population size")
	fs.Float64SliceVar(&f.lower, "lower", nil, "Lower bound, one value or one per dimension (default: objective range)")
	fs.Float64SliceVar(&f.upper, "upper", nil, "Upper bound, one value or one per dimension (default: objective range)")
	fs.Float64Var(&f.beta0, "beta0", d.BaseAttractiveness, "Base attractiveness")
	fs.Float64Var(&f.alpha, "alpha", d.RandomizationScale, "Initial randomization scale")
	fs.Float64Var(&f.gamma, "gamma", d.AbsorptionCoefficient, "Light absorption coefficient")
	fs.Float64Var(&f.delta, "delta", d.AlphaDecayRate, "Per-iteration decay factor of alpha")
	fs.IntVar(&f.iters, "iters", d.MaxIterations, "Max iterations")
}

// apply overlays the explicitly set flags onto cfg. When the objective
// changes and no bounds were given, the objective's suggested range is used.
func (f *paramFlags) apply(fs *pflag.FlagSet, cfg *config.RunConfig) error {
	if fs.Changed("objective") {
		cfg.Objective = f.objective
		if !fs.Changed("lower") || !fs.Changed("upper") {
			def, err := objective.Lookup(f.objective)
			if err != nil {
				return err
			}
			cfg.Params = cfg.Params.ScalarBounds(def.Lower, def.Upper)
			if def.Dims != 0 && !fs.Changed("dim") {
				cfg.Dimension = def.Dims
			}
		}
	}
	if fs.Changed("dim") {
		cfg.Dimension = f.dim
	}
	if fs.Changed("seed") {
		cfg.Seed = f.seed
	}

	p := &cfg.Params
	if fs.Changed("pop") {
		p.PopulationSize = f.pop
	}
	if fs.Changed("lower") {
		p.Lower = append([]float64(nil), f.lower...)
	}
	if fs.Changed("upper") {
		p.Upper = append([]float64(nil), f.upper...)
	}
	if fs.Changed("beta0") {
		p.BaseAttractiveness = f.beta0
	}
	if fs.Changed("alpha") {
		p.RandomizationScale = f.alpha
	}
	if fs.Changed("gamma") {
		p.AbsorptionCoefficient = f.gamma
	}
	if fs.Changed("delta") {
		p.AlphaDecayRate = f.delta
	}
	if fs.Changed("iters") {
		p.MaxIterations = f.iters
	}
	return nil
}

// resolveConfig loads the optional config file, applies flag overrides and
// validates the result.
func resolveConfig(fs *pflag.FlagSet, path string, f *paramFlags) (*config.RunConfig, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if level, ok := fileLogLevel(fs, cfg); ok {
		logger.Setup(level, logFormat, os.Stderr)
	}
	if err := f.apply(fs, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileLogLevel returns the config file's log level when the --log-level
// flag was not given explicitly.
func fileLogLevel(fs *pflag.FlagSet, cfg *config.RunConfig) (string, bool) {
	if cfg.LogLevel == "" || fs.Changed("log-level") {
		return "", false
	}
	return cfg.LogLevel, true
}

func joinNames() string {
	return strings.Join(objective.Names(), ", ")
}
