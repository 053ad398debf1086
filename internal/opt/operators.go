package opt

import (
	"fmt"
	"math/rand"
)

// OrderOneCrossover cuts both parents at i in [0,n) and j in [i,n). Each
// child keeps one parent's segment [i,j) in place and fills the remaining
// slots, starting at j and wrapping, with the other parent's genes read
// from j onwards, skipping genes already in the segment.
func OrderOneCrossover(a, b Chromosome, rng *rand.Rand) (Chromosome, Chromosome, error) {
	n := len(a.Genes)
	if n == 0 || n != len(b.Genes) {
		return Chromosome{}, Chromosome{}, fmt.Errorf("%w: crossover of %d and %d genes", ErrMalformed, n, len(b.Genes))
	}
	i := rng.Intn(n)
	j := i + rng.Intn(n-i)
	c1, c2 := orderOne(a.Genes, b.Genes, i, j), orderOne(b.Genes, a.Genes, i, j)
	return NewChromosome(c1), NewChromosome(c2), nil
}

func orderOne(keep, fill []Gene, i, j int) []Gene {
	n := len(keep)
	child := make([]Gene, n)
	seg := make(map[Gene]struct{}, j-i)
	for k := i; k < j; k++ {
		child[k] = keep[k]
		seg[keep[k]] = struct{}{}
	}
	pos := j
	for k := 0; k < n; k++ {
		g := fill[(j+k)%n]
		if _, ok := seg[g]; ok {
			continue
		}
		child[pos] = g
		pos = (pos + 1) % n
	}
	return child
}

// SingleSwap exchanges two uniformly drawn positions. They may coincide.
func SingleSwap(c Chromosome, rng *rand.Rand) Chromosome {
	genes := c.cloneGenes()
	if n := len(genes); n > 1 {
		i, j := rng.Intn(n), rng.Intn(n)
		genes[i], genes[j] = genes[j], genes[i]
	}
	return NewChromosome(genes)
}

// RemoveVehicle empties one route: from a random position it finds the next
// Depot gene and moves it forward one slot at a time until another Depot
// gene follows it, handing its customers to the preceding route.
// Chromosomes with fewer than two Depot genes come back unchanged.
func RemoveVehicle(c Chromosome, rng *rand.Rand) (Chromosome, error) {
	genes := c.cloneGenes()
	n := len(genes)
	depots := 0
	for _, g := range genes {
		if g.Kind == Depot {
			depots++
		}
	}
	if depots < 2 {
		return NewChromosome(genes), nil
	}

	idx := rng.Intn(n)
	for genes[idx].Kind != Depot {
		idx = (idx + 1) % n
	}
	limit := 2*n + 2
	for steps := 0; genes[(idx+1)%n].Kind != Depot; steps++ {
		if steps > limit {
			return Chromosome{}, fmt.Errorf("%w: vehicle removal did not settle after %d moves", ErrInvariant, steps)
		}
		next := (idx + 1) % n
		genes[idx], genes[next] = genes[next], genes[idx]
		idx = next
	}
	return NewChromosome(genes), nil
}
