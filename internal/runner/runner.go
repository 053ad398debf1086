// Package runner executes optimization runs: it drives the genetic search
// generation by generation and records progress in the store, the event
// broker, Prometheus and the completion webhook.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mdvrp/internal/events"
	"mdvrp/internal/metrics"
	"mdvrp/internal/model"
	"mdvrp/internal/opt"
	"mdvrp/internal/store"
	"mdvrp/internal/webhooks"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid run request")

// Limits caps the size of a run. Zero fields are unlimited.
type Limits struct {
	MaxNodes       int // customers plus vehicles
	MaxPopulation  int // also bounds populationGenStep and tournamentSize
	MaxGenerations int
	MaxMutations   int // per mutation kind and child
}

func DefaultLimits() Limits {
	return Limits{MaxNodes: 5000, MaxPopulation: 2000, MaxGenerations: 1_000_000, MaxMutations: 1000}
}

// Check validates req and enforces the ceilings.
func (l Limits) Check(req model.RunRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	p := req.Params
	switch {
	case over(p.PopulationSize, l.MaxPopulation):
		return fmt.Errorf("%w: populationSize must be <= %d", ErrInvalidRequest, l.MaxPopulation)
	case over(p.PopulationGenStep, l.MaxPopulation):
		return fmt.Errorf("%w: populationGenStep must be <= %d", ErrInvalidRequest, l.MaxPopulation)
	case over(p.TournamentSize, l.MaxPopulation):
		return fmt.Errorf("%w: tournamentSize must be <= %d", ErrInvalidRequest, l.MaxPopulation)
	case over(req.Generations, l.MaxGenerations):
		return fmt.Errorf("%w: generations must be <= %d", ErrInvalidRequest, l.MaxGenerations)
	case over(p.SingleSwapMutMax, l.MaxMutations), over(p.VehicleRemoveMutMax, l.MaxMutations):
		return fmt.Errorf("%w: mutation maxima must be <= %d", ErrInvalidRequest, l.MaxMutations)
	}
	return nil
}

// CheckProblem enforces the node ceiling on an already parsed problem.
func (l Limits) CheckProblem(p *model.Problem) error {
	if over(p.NodeCount(), l.MaxNodes) {
		return fmt.Errorf("%w: %d nodes exceeds the limit of %d", ErrInvalidRequest, p.NodeCount(), l.MaxNodes)
	}
	return nil
}

func over(v, limit int) bool { return limit > 0 && v > limit }

type Runner struct {
	Store    store.Store
	Events   events.Broker
	Notifier *webhooks.Notifier
	Log      zerolog.Logger
	Limits   Limits

	base context.Context
	wg   sync.WaitGroup
}

// New returns a Runner whose background runs stop when base is cancelled.
func New(base context.Context, s store.Store, b events.Broker, n *webhooks.Notifier, log zerolog.Logger) *Runner {
	if b == nil {
		b = events.NewMemoryBroker()
	}
	return &Runner{Store: s, Events: b, Notifier: n, Log: log, Limits: DefaultLimits(), base: base}
}

// Result is the outcome of Execute.
type Result struct {
	Run   model.Run
	Best  opt.Solution
	Model *model.Model
}

// Validate checks the run settings that the optimizer does not.
func Validate(req model.RunRequest) error {
	if err := req.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Generations < 0 {
		return fmt.Errorf("%w: generations must be >= 0", ErrInvalidRequest)
	}
	if req.ReportEvery < 0 {
		return fmt.Errorf("%w: reportEvery must be >= 0", ErrInvalidRequest)
	}
	return nil
}

// Create stores a queued run for req after checking it against r.Limits.
func (r *Runner) Create(ctx context.Context, req model.RunRequest, p *model.Problem) (model.Run, error) {
	if err := r.Limits.Check(req); err != nil {
		return model.Run{}, err
	}
	if err := r.Limits.CheckProblem(p); err != nil {
		return model.Run{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = p.Name
	}
	return r.Store.CreateRun(ctx, model.Run{
		Name:        name,
		Status:      model.RunQueued,
		Instance:    p.Info(),
		Params:      req.Params,
		Generations: req.Generations,
		Seed:        req.Seed,
	})
}

// Submit creates the run and executes it in the background.
func (r *Runner) Submit(ctx context.Context, req model.RunRequest, p *model.Problem) (model.Run, error) {
	run, err := r.Create(ctx, req, p)
	if err != nil {
		return model.Run{}, err
	}
	base := r.base
	if base == nil {
		base = context.Background()
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = r.Execute(base, run, p, req.ReportEvery)
	}()
	return run, nil
}

// Wait blocks until every submitted run has returned.
func (r *Runner) Wait() { r.wg.Wait() }

// Execute runs the search synchronously. Progress is recorded every
// reportEvery generations (every generation when zero) and after the last
// one. A failed run is stored with its error before Execute returns it.
func (r *Runner) Execute(ctx context.Context, run model.Run, p *model.Problem, reportEvery int) (Result, error) {
	log := r.Log.With().Str("run", run.ID).Logger()
	if reportEvery < 1 {
		reportEvery = 1
	}
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()
	defer metrics.BestFitness.DeleteLabelValues(run.ID)

	started := time.Now().UTC()
	run.Status, run.StartedAt = model.RunRunning, &started
	if err := r.Store.UpdateRun(ctx, run); err != nil {
		return r.fail(ctx, log, run, fmt.Errorf("mark running: %w", err))
	}
	r.Events.Publish(run.ID, events.Event{Type: events.TypeRunStarted, Data: map[string]any{"runId": run.ID, "instance": run.Instance}})
	log.Info().Str("name", run.Name).Int("customers", run.Instance.Customers).Int("depots", run.Instance.Depots).
		Int("generations", run.Generations).Msg("run started")

	m := model.NewModel(p)
	sim, err := opt.NewSimulation(m, p.DepotPlans(), run.Params, run.Seed)
	if err != nil {
		return r.fail(ctx, log, run, err)
	}
	if err := sim.GeneratePopulation(ctx); err != nil {
		return r.fail(ctx, log, run, err)
	}
	rep := reporter{r: r, log: log, start: time.Now()}
	metrics.Evaluations.Add(float64(sim.Evaluations()))
	if err := rep.report(ctx, &run, sim); err != nil {
		return r.fail(ctx, log, run, err)
	}

	for g := 1; g <= run.Generations; g++ {
		t0 := time.Now()
		before := sim.Evaluations()
		if err := sim.Run(ctx); err != nil {
			return r.fail(ctx, log, run, fmt.Errorf("generation %d: %w", g, err))
		}
		metrics.GenerationDuration.Observe(time.Since(t0).Seconds())
		metrics.Generations.Inc()
		metrics.Evaluations.Add(float64(sim.Evaluations() - before))
		if g%reportEvery == 0 || g == run.Generations {
			if err := rep.report(ctx, &run, sim); err != nil {
				return r.fail(ctx, log, run, err)
			}
		}
	}

	best, err := sim.Best()
	if err != nil {
		return r.fail(ctx, log, run, err)
	}
	finished := time.Now().UTC()
	run.Status, run.FinishedAt = model.RunCompleted, &finished
	run.Routes, run.BestScore, run.Feasible = best.Routes, best.Score, best.Feasible(m)
	if err := r.Store.UpdateRun(ctx, run); err != nil {
		return r.fail(ctx, log, run, fmt.Errorf("store result: %w", err))
	}
	metrics.Runs.WithLabelValues(string(model.RunCompleted)).Inc()
	data := map[string]any{"runId": run.ID, "bestScore": *best.Score, "feasible": run.Feasible, "generation": run.Generation}
	r.Events.Publish(run.ID, events.Event{Type: events.TypeRunCompleted, Data: data})
	if err := r.Notifier.Notify(ctx, events.TypeRunCompleted, data); err != nil {
		log.Warn().Err(err).Msg("completion webhook")
	}
	log.Info().Float64("best", *best.Score).Bool("feasible", run.Feasible).
		Dur("elapsed", finished.Sub(started)).Msg("run completed")
	return Result{Run: run, Best: best, Model: m}, nil
}

func (r *Runner) fail(ctx context.Context, log zerolog.Logger, run model.Run, cause error) (Result, error) {
	// Record the failure even when ctx was cancelled.
	ctx = context.WithoutCancel(ctx)
	finished := time.Now().UTC()
	run.Status, run.FinishedAt, run.Error = model.RunFailed, &finished, cause.Error()
	if err := r.Store.UpdateRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("store failed run")
	}
	metrics.Runs.WithLabelValues(string(model.RunFailed)).Inc()
	data := map[string]any{"runId": run.ID, "error": run.Error}
	r.Events.Publish(run.ID, events.Event{Type: events.TypeRunFailed, Data: data})
	if err := r.Notifier.Notify(ctx, events.TypeRunFailed, data); err != nil {
		log.Warn().Err(err).Msg("failure webhook")
	}
	log.Error().Err(cause).Msg("run failed")
	return Result{Run: run}, cause
}

// reporter records a progress snapshot.
type reporter struct {
	r     *Runner
	log   zerolog.Logger
	start time.Time
}

func (rp reporter) report(ctx context.Context, run *model.Run, sim *opt.Simulation) error {
	stats, err := sim.Stats()
	if err != nil {
		return err
	}
	snap := model.Snapshot{
		RunID:       run.ID,
		Stats:       stats,
		Evaluations: sim.Evaluations(),
		ElapsedMs:   time.Since(rp.start).Milliseconds(),
		At:          time.Now().UTC(),
	}
	if err := rp.r.Store.SaveSnapshots(ctx, run.ID, []model.Snapshot{snap}); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	best := stats.Best
	run.Generation, run.BestScore, run.Feasible = stats.Generation, &best, stats.Feasible
	if err := rp.r.Store.UpdateRun(ctx, *run); err != nil {
		return fmt.Errorf("store progress: %w", err)
	}
	metrics.BestFitness.WithLabelValues(run.ID).Set(stats.Best)
	rp.r.Events.Publish(run.ID, events.Event{Type: events.TypeGeneration, Data: map[string]any{
		"generation": stats.Generation,
		"best":       stats.Best,
		"mean":       stats.Mean,
		"worst":      stats.Worst,
		"feasible":   stats.Feasible,
	}})
	rp.log.Debug().Int("generation", stats.Generation).Float64("best", stats.Best).
		Float64("mean", stats.Mean).Bool("feasible", stats.Feasible).Msg("progress")
	return nil
}

// Gap is the relative distance of score above reference, in percent.
func Gap(score, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	return (score - reference) / reference * 100
}
