package opt

import (
	"fmt"
	"strconv"
)

// GeneKind tags a gene as a customer visit or a vehicle marker.
type GeneKind uint8

const (
	Customer GeneKind = iota
	Depot
)

func (k GeneKind) String() string {
	if k == Depot {
		return "depot"
	}
	return "customer"
}

// Gene is one symbol of a chromosome. A Depot gene carries a vehicle id and
// opens that vehicle's route; the Customer genes that follow it, up to the
// next Depot gene, are the route's visits.
type Gene struct {
	Kind GeneKind `json:"kind"`
	ID   int      `json:"id"`
}

func CustomerGene(id int) Gene { return Gene{Kind: Customer, ID: id} }
func DepotGene(id int) Gene    { return Gene{Kind: Depot, ID: id} }

func (g Gene) String() string {
	if g.Kind == Depot {
		return "d" + strconv.Itoa(g.ID)
	}
	return "c" + strconv.Itoa(g.ID)
}

// Chromosome is a cyclic gene sequence with a cached fitness. Only
// Evaluate sets the score; operators always return unscored chromosomes.
type Chromosome struct {
	Genes  []Gene
	score  float64
	scored bool
}

// NewChromosome wraps genes without copying them.
func NewChromosome(genes []Gene) Chromosome { return Chromosome{Genes: genes} }

// Score returns the cached fitness and whether it is set.
func (c Chromosome) Score() (float64, bool) { return c.score, c.scored }

func (c Chromosome) Len() int { return len(c.Genes) }

// Clone copies the genes and keeps the cached score.
func (c Chromosome) Clone() Chromosome {
	return Chromosome{Genes: c.cloneGenes(), score: c.score, scored: c.scored}
}

func (c Chromosome) cloneGenes() []Gene {
	out := make([]Gene, len(c.Genes))
	copy(out, c.Genes)
	return out
}

// firstDepotIndex is the canonical starting point of the cyclic sequence,
// shared by Decode and Evaluate.
func firstDepotIndex(genes []Gene) (int, error) {
	for i, g := range genes {
		if g.Kind == Depot {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: chromosome of %d genes has no depot gene", ErrMalformed, len(genes))
}

// Encode flattens a solution: each route becomes its vehicle's Depot gene
// followed by the route's customers.
func Encode(s Solution) (Chromosome, error) {
	if len(s.Routes) == 0 {
		return Chromosome{}, fmt.Errorf("%w: solution has no routes", ErrMalformed)
	}
	var genes []Gene
	for i, r := range s.Routes {
		if len(r) < 2 {
			return Chromosome{}, fmt.Errorf("%w: route %d has %d stops, need at least 2", ErrMalformed, i, len(r))
		}
		if r[0] != r[len(r)-1] {
			return Chromosome{}, fmt.Errorf("%w: route %d starts at %d and ends at %d", ErrMalformed, i, r[0], r[len(r)-1])
		}
		genes = append(genes, DepotGene(r[0]))
		for _, c := range r[1 : len(r)-1] {
			genes = append(genes, CustomerGene(c))
		}
	}
	return NewChromosome(genes), nil
}

// Decode rebuilds routes starting at the first Depot gene and wrapping
// around, so customers placed before it belong to the last vehicle. Every
// route starts and ends with its own vehicle id.
func Decode(c Chromosome) (Solution, error) {
	n := len(c.Genes)
	start, err := firstDepotIndex(c.Genes)
	if err != nil {
		return Solution{}, err
	}
	var routes [][]int
	v := c.Genes[start].ID
	cur := []int{v}
	for k := 1; k < n; k++ {
		g := c.Genes[(start+k)%n]
		if g.Kind == Customer {
			cur = append(cur, g.ID)
			continue
		}
		routes = append(routes, append(cur, v))
		v = g.ID
		cur = []int{v}
	}
	routes = append(routes, append(cur, v))

	sol := Solution{Routes: routes}
	if c.scored {
		score := c.score
		sol.Score = &score
	}
	return sol, nil
}

// Evaluate returns the fitness, computing and caching it on first use.
func (c *Chromosome) Evaluate(l Lookup, penalty float64) (float64, error) {
	if c.scored {
		return c.score, nil
	}
	score, err := fitness(c.Genes, l, penalty)
	if err != nil {
		return 0, err
	}
	c.score, c.scored = score, true
	return score, nil
}

// fitness walks the sequence once from the canonical start. Capacity is
// reset to the vehicle's capacity at each Depot gene, and every visit that
// leaves it negative adds penalty.
func fitness(genes []Gene, l Lookup, penalty float64) (float64, error) {
	n := len(genes)
	start, err := firstDepotIndex(genes)
	if err != nil {
		return 0, err
	}
	v := genes[start].ID
	prev, left := v, l.Demand(v)
	var cost float64
	for k := 1; k < n; k++ {
		g := genes[(start+k)%n]
		if g.Kind == Depot {
			cost += l.Distance(prev, v)
			v = g.ID
			prev, left = v, l.Demand(v)
			continue
		}
		cost += l.Distance(prev, g.ID)
		left -= l.Demand(g.ID)
		if left < 0 {
			cost += penalty
		}
		prev = g.ID
	}
	return cost + l.Distance(prev, v), nil
}
