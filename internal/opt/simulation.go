package opt

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Stats summarizes the current generation.
type Stats struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Mean       float64 `json:"mean"`
	Worst      float64 `json:"worst"`
	Feasible   bool    `json:"feasible"`
}

// Simulation drives the genetic search over one problem. It has no stopping
// rule of its own; callers decide how many generations to Run.
type Simulation struct {
	lookup      Lookup
	plans       []DepotPlan
	params      Params
	rng         *rand.Rand
	population  *Population
	generation  int
	evaluations int
}

// NewSimulation validates params and seeds the generator. A zero seed
// picks a time-based one.
func NewSimulation(l Lookup, plans []DepotPlan, params Params, seed int64) (*Simulation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Simulation{lookup: l, plans: plans, params: params, rng: rngFromSeed(seed)}, nil
}

// GeneratePopulation builds PopulationSize chromosomes from independent
// savings constructions, PopulationGenStep of them per batch, and
// evaluates the result.
func (s *Simulation) GeneratePopulation(ctx context.Context) error {
	size := s.params.PopulationSize
	chs := make([]Chromosome, 0, size)
	for len(chs) < size {
		step := min(s.params.PopulationGenStep, size-len(chs))
		batch := make([]Chromosome, step)
		base := s.rng.Int63()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.params.workers())
		for i := 0; i < step; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				sol, err := ConstructSolution(s.lookup, s.plans, s.params, deriveRNG(base, uint64(i)))
				if err != nil {
					return err
				}
				c, err := Encode(sol)
				if err != nil {
					return err
				}
				batch[i] = c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("generate population: %w", err)
		}
		chs = append(chs, batch...)
	}

	pop := NewPopulation(chs)
	n, err := pop.Evaluate(ctx, s.lookup, s.params)
	if err != nil {
		return err
	}
	s.population = pop
	s.generation = 0
	s.evaluations += n
	return nil
}

// Run advances one generation.
func (s *Simulation) Run(ctx context.Context) error {
	if s.population == nil {
		return fmt.Errorf("%w: run before population was generated", ErrInvariant)
	}
	next, err := s.population.Evolve(ctx, s.params, s.rng)
	if err != nil {
		return err
	}
	n, err := next.Evaluate(ctx, s.lookup, s.params)
	if err != nil {
		return err
	}
	s.population = next
	s.generation++
	s.evaluations += n
	return nil
}

// Best decodes the fittest chromosome of the current generation.
func (s *Simulation) Best() (Solution, error) {
	if s.population == nil {
		return Solution{}, fmt.Errorf("%w: no population", ErrInvariant)
	}
	c, err := s.population.Best()
	if err != nil {
		return Solution{}, err
	}
	return Decode(c)
}

func (s *Simulation) Generation() int { return s.generation }

// Evaluations is the number of fitness evaluations performed so far.
func (s *Simulation) Evaluations() int { return s.evaluations }

func (s *Simulation) Population() *Population { return s.population }

func (s *Simulation) Params() Params { return s.params }

// Stats reports best, mean and worst fitness of the current generation.
func (s *Simulation) Stats() (Stats, error) {
	if s.population == nil || !s.population.Evaluated() {
		return Stats{}, fmt.Errorf("%w: no evaluated population", ErrInvariant)
	}
	scores := s.population.Scores
	var sum float64
	for _, sc := range scores {
		sum += sc.Value
	}
	best, err := s.Best()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Generation: s.generation,
		Best:       scores[0].Value,
		Mean:       sum / float64(len(scores)),
		Worst:      scores[len(scores)-1].Value,
		Feasible:   best.Feasible(s.lookup),
	}, nil
}
