// Command mdvrp solves one multi-depot instance from the command line and
// writes the best solution found.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"mdvrp/internal/buildinfo"
	"mdvrp/internal/config"
	"mdvrp/internal/events"
	"mdvrp/internal/instance"
	"mdvrp/internal/model"
	"mdvrp/internal/runner"
	"mdvrp/internal/store"
)

type options struct {
	configDir   string
	problem     string
	reference   string
	out         string
	generations int
	seed        int64
	printConfig bool
	version     bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("mdvrp", flag.ContinueOnError)
	fs.StringVar(&o.configDir, "config", ".", "directory holding mdvrp.env")
	fs.StringVar(&o.problem, "problem", "", "problem file (overrides PROBLEM_PATH)")
	fs.StringVar(&o.reference, "reference", "", "reference solution file (overrides OPTIMAL_SOLUTION_PATH)")
	fs.StringVar(&o.out, "out", "", "solution output file (overrides SOLUTION_PATH)")
	fs.IntVar(&o.generations, "generations", -1, "generations to evolve (overrides GENERATIONS)")
	fs.Int64Var(&o.seed, "seed", 0, "random seed, 0 for time based (overrides SEED)")
	fs.BoolVar(&o.printConfig, "print-config", false, "print the effective configuration and exit")
	fs.BoolVar(&o.version, "version", false, "print the version and exit")
	err := fs.Parse(args)
	return o, err
}

// apply overlays the flags that were given on cfg.
func (o options) apply(cfg *config.Config) {
	if o.problem != "" {
		cfg.ProblemPath = o.problem
	}
	if o.reference != "" {
		cfg.OptimalSolutionPath = o.reference
	}
	if o.out != "" {
		cfg.SolutionPath = o.out
	}
	if o.generations >= 0 {
		cfg.Generations = o.generations
	}
	if o.seed != 0 {
		cfg.Seed = o.seed
	}
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if o.version {
		fmt.Println(buildinfo.String())
		return
	}
	cfg, err := config.Load(o.configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	cfg.SetupLogger()
	if o.printConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("print config")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := solve(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("solve")
	}
}

func solve(ctx context.Context, cfg config.Config) error {
	if cfg.ProblemPath == "" {
		return errors.New("no problem file: set PROBLEM_PATH or -problem")
	}
	p, err := instance.LoadProblem(cfg.ProblemPath)
	if err != nil {
		return err
	}
	var ref *instance.Reference
	if cfg.OptimalSolutionPath != "" {
		if ref, err = instance.LoadReference(cfg.OptimalSolutionPath); err != nil {
			return err
		}
	}

	r := runner.New(ctx, store.NewMemory(), events.NewMemoryBroker(), nil, log.Logger)
	// Local files are trusted; the ceilings only guard the API.
	r.Limits = runner.Limits{}
	req := model.RunRequest{
		Name:        p.Name,
		Generations: cfg.Generations,
		Seed:        cfg.Seed,
		ReportEvery: cfg.DrawRate,
		Params:      cfg.Params(),
	}
	run, err := r.Create(ctx, req, p)
	if err != nil {
		return err
	}

	progress := r.Events.Subscribe(run.ID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range progress {
			if evt.Type != events.TypeGeneration {
				continue
			}
			log.Info().
				Any("generation", evt.Data["generation"]).
				Any("best", evt.Data["best"]).
				Any("mean", evt.Data["mean"]).
				Any("feasible", evt.Data["feasible"]).
				Msg("generation")
		}
	}()
	res, err := r.Execute(ctx, run, p, cfg.DrawRate)
	r.Events.Unsubscribe(run.ID, progress)
	<-done
	if err != nil {
		return err
	}

	if err := instance.SaveSolution(cfg.SolutionPath, p, res.Model, res.Best); err != nil {
		return err
	}
	summary := log.Info().
		Str("problem", p.Name).
		Float64("score", *res.Best.Score).
		Bool("feasible", res.Run.Feasible).
		Str("solution", cfg.SolutionPath)
	if ref != nil {
		summary = summary.Float64("reference", ref.Score).Float64("gapPct", runner.Gap(*res.Best.Score, ref.Score))
		if sol, err := ref.Solution(p); err == nil {
			if cost, err := sol.Evaluate(res.Model, cfg.InfeasibilityPenalty); err == nil {
				summary = summary.Float64("referenceRecomputed", cost)
			}
		}
	}
	summary.Msg("done")
	return nil
}
