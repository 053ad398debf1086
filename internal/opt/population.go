package opt

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Score pairs a chromosome index with its fitness.
type Score struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Population holds one generation. Scores is sorted ascending (best
// first) after Evaluate.
type Population struct {
	Chromosomes []Chromosome
	Scores      []Score
}

func NewPopulation(chs []Chromosome) *Population {
	return &Population{Chromosomes: chs}
}

// Evaluated reports whether Scores covers every chromosome.
func (p *Population) Evaluated() bool {
	return len(p.Chromosomes) > 0 && len(p.Scores) == len(p.Chromosomes)
}

// Evaluate scores every unscored chromosome on a bounded worker pool and
// rebuilds Scores. It returns the number of chromosomes it had to score.
func (p *Population) Evaluate(ctx context.Context, l Lookup, params Params) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(params.workers())
	evaluated := 0
	for i := range p.Chromosomes {
		c := &p.Chromosomes[i]
		if c.scored {
			continue
		}
		evaluated++
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := c.Evaluate(l, params.InfeasibilityPenalty)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	scores := make([]Score, len(p.Chromosomes))
	for i, c := range p.Chromosomes {
		scores[i] = Score{Index: i, Value: c.score}
	}
	sort.Slice(scores, func(a, b int) bool {
		if scores[a].Value != scores[b].Value {
			return scores[a].Value < scores[b].Value
		}
		return scores[a].Index < scores[b].Index
	})
	p.Scores = scores
	return evaluated, nil
}

// Best returns the lowest-scoring chromosome.
func (p *Population) Best() (Chromosome, error) {
	if !p.Evaluated() {
		return Chromosome{}, fmt.Errorf("%w: population is not evaluated", ErrInvariant)
	}
	return p.Chromosomes[p.Scores[0].Index], nil
}

// tournament draws k chromosomes with replacement and returns the fittest;
// ties go to the earliest draw.
func (p *Population) tournament(k int, rng *rand.Rand) Chromosome {
	best := p.Chromosomes[rng.Intn(len(p.Chromosomes))]
	for i := 1; i < k; i++ {
		c := p.Chromosomes[rng.Intn(len(p.Chromosomes))]
		if c.score < best.score {
			best = c
		}
	}
	return best
}

// Evolve builds the next generation: the EliteCount best chromosomes are
// copied, then the remaining slots are filled pairwise by tournament
// selection, crossover and mutation. Pairs are bred concurrently, each with
// a generator derived from rng, and stored by pair index so a fixed seed
// gives a fixed result. An odd slot count drops the last second child.
// The returned population is not evaluated.
func (p *Population) Evolve(ctx context.Context, params Params, rng *rand.Rand) (*Population, error) {
	if !p.Evaluated() {
		return nil, fmt.Errorf("%w: evolve called before evaluate", ErrInvariant)
	}
	n := len(p.Chromosomes)
	elite := min(params.EliteCount, n)
	next := make([]Chromosome, n)
	for k := 0; k < elite; k++ {
		next[k] = p.Chromosomes[p.Scores[k].Index].Clone()
	}

	pairs := (n - elite + 1) / 2
	base := rng.Int63()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(params.workers())
	for pi := 0; pi < pairs; pi++ {
		pi := pi
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c1, c2, err := p.breed(params, deriveRNG(base, uint64(pi)))
			if err != nil {
				return err
			}
			slot := elite + 2*pi
			next[slot] = c1
			if slot+1 < n {
				next[slot+1] = c2
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewPopulation(next), nil
}

func (p *Population) breed(params Params, rng *rand.Rand) (Chromosome, Chromosome, error) {
	a := p.tournament(params.TournamentSize, rng)
	b := p.tournament(params.TournamentSize, rng)
	var c1, c2 Chromosome
	if rng.Float64() < params.CrossoverRate {
		var err error
		if c1, c2, err = OrderOneCrossover(a, b, rng); err != nil {
			return Chromosome{}, Chromosome{}, err
		}
	} else {
		c1, c2 = a.Clone(), b.Clone()
	}
	c1, err := mutate(c1, params, rng)
	if err != nil {
		return Chromosome{}, Chromosome{}, err
	}
	c2, err = mutate(c2, params, rng)
	if err != nil {
		return Chromosome{}, Chromosome{}, err
	}
	return c1, c2, nil
}

// mutate applies vehicle removal then swaps, each gated by its rate and
// repeated a uniform number of times in [0, max].
func mutate(c Chromosome, params Params, rng *rand.Rand) (Chromosome, error) {
	if rng.Float64() < params.VehicleRemoveMutRate {
		for n := rng.Intn(params.VehicleRemoveMutMax + 1); n > 0; n-- {
			var err error
			if c, err = RemoveVehicle(c, rng); err != nil {
				return Chromosome{}, err
			}
		}
	}
	if rng.Float64() < params.SingleSwapMutRate {
		for n := rng.Intn(params.SingleSwapMutMax + 1); n > 0; n-- {
			c = SingleSwap(c, rng)
		}
	}
	return c, nil
}
