package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixtureChromosome(t *testing.T, seed int64) Chromosome {
	t.Helper()
	l, plans := twoDepotFixture()
	sol, err := ConstructSolution(l, plans, DefaultParams(), rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	c, err := Encode(sol)
	require.NoError(t, err)
	return c
}

func TestOrderOneKeepsSegmentAndFillsCyclically(t *testing.T) {
	a := []Gene{CustomerGene(1), CustomerGene(2), CustomerGene(3), CustomerGene(4), CustomerGene(5), CustomerGene(6)}
	b := []Gene{CustomerGene(6), CustomerGene(5), CustomerGene(4), CustomerGene(3), CustomerGene(2), CustomerGene(1)}

	child := orderOne(a, b, 2, 4)
	require.Equal(t, []Gene{
		CustomerGene(6), CustomerGene(5), CustomerGene(3), CustomerGene(4), CustomerGene(2), CustomerGene(1),
	}, child)

	// An empty segment reproduces the donor.
	require.Equal(t, b, orderOne(a, b, 3, 3))
}

func TestOrderOneChildrenArePermutationsForEveryCut(t *testing.T) {
	a := fixtureChromosome(t, 1)
	b := fixtureChromosome(t, 2)
	rand.New(rand.NewSource(8)).Shuffle(len(b.Genes), func(i, j int) { b.Genes[i], b.Genes[j] = b.Genes[j], b.Genes[i] })

	want := geneKeys(a.Genes)
	n := len(a.Genes)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c1 := orderOne(a.Genes, b.Genes, i, j)
			c2 := orderOne(b.Genes, a.Genes, i, j)
			require.Equal(t, want, geneKeys(c1), "cut %d..%d", i, j)
			require.Equal(t, want, geneKeys(c2), "cut %d..%d", i, j)
			require.Equal(t, a.Genes[i:j], c1[i:j])
			require.Equal(t, b.Genes[i:j], c2[i:j])
		}
	}
}

func TestOrderOneCrossoverRejectsMismatchedParents(t *testing.T) {
	a := fixtureChromosome(t, 1)
	short := NewChromosome(a.Genes[:3])
	_, _, err := OrderOneCrossover(a, short, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestMutationsPreserveGenesAndInput(t *testing.T) {
	c := fixtureChromosome(t, 3)
	orig := c.Clone()
	want := geneKeys(c.Genes)
	rng := rand.New(rand.NewSource(11))

	for n := 0; n < 200; n++ {
		s := SingleSwap(c, rng)
		require.Equal(t, want, geneKeys(s.Genes))
		_, scored := s.Score()
		require.False(t, scored)

		r, err := RemoveVehicle(c, rng)
		require.NoError(t, err)
		require.Equal(t, want, geneKeys(r.Genes))
	}
	require.Equal(t, orig.Genes, c.Genes)
}

func TestRemoveVehicleEmptiesARoute(t *testing.T) {
	c := NewChromosome([]Gene{
		DepotGene(9), CustomerGene(1), CustomerGene(2),
		DepotGene(10), CustomerGene(3), CustomerGene(4),
	})
	rng := rand.New(rand.NewSource(6))
	for n := 0; n < 50; n++ {
		r, err := RemoveVehicle(c, rng)
		require.NoError(t, err)
		sol, err := Decode(r)
		require.NoError(t, err)

		empty := 0
		for _, route := range sol.Routes {
			if len(route) == 2 {
				empty++
			}
		}
		require.Equal(t, 1, empty, "routes %v", sol.Routes)
	}
}

func TestRemoveVehicleSingleDepotIsNoop(t *testing.T) {
	c := NewChromosome([]Gene{DepotGene(9), CustomerGene(1), CustomerGene(2)})
	r, err := RemoveVehicle(c, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, c.Genes, r.Genes)
}
