package opt

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func colinear() (planeLookup, DepotPlan) {
	l := planeLookup{
		pos:    map[int][2]float64{1: {10, 0}, 2: {20, 0}, 3: {30, 0}, 4: {0, 0}},
		demand: map[int]int{1: 10, 2: 20, 3: 30, 4: 100},
	}
	return l, DepotPlan{Depot: 1, Vehicles: []int{4}, Customers: []int{1, 2, 3}}
}

func TestConstructRoutesColinearSingleVehicle(t *testing.T) {
	l, plan := colinear()
	p := DefaultParams()
	p.CWSBias = 1

	routes, err := ConstructRoutes(l, plan, p, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, routes, 1)
	r := routes[0]
	require.Equal(t, 4, r[0])
	require.Equal(t, 4, r[len(r)-1])
	require.ElementsMatch(t, []int{1, 2, 3}, r[1:len(r)-1])
	require.InDelta(t, 60.0, RouteDistance(l, r), 1e-9)
}

func TestConstructRoutesForcedMergePaysPenaltyOnce(t *testing.T) {
	l := planeLookup{
		pos:    map[int][2]float64{1: {10, 0}, 2: {-10, 0}, 3: {0, 0}},
		demand: map[int]int{1: 60, 2: 60, 3: 100},
	}
	plan := DepotPlan{Depot: 1, Vehicles: []int{3}, Customers: []int{1, 2}}
	p := DefaultParams()

	routes, err := ConstructRoutes(l, plan, p, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Len(t, routes, 1)

	sol := Solution{Routes: routes}
	score, err := sol.Evaluate(l, p.InfeasibilityPenalty)
	require.NoError(t, err)
	require.InDelta(t, 40+p.InfeasibilityPenalty, score, 1e-9)
	require.False(t, sol.Feasible(l))
}

func TestConstructRoutesStopsWithoutPositiveSaving(t *testing.T) {
	// Opposite customers: merging saves nothing and two vehicles are free.
	l := planeLookup{
		pos:    map[int][2]float64{1: {10, 0}, 2: {-10, 0}, 3: {0, 0}, 4: {0, 0}},
		demand: map[int]int{1: 5, 2: 5, 3: 100, 4: 100},
	}
	plan := DepotPlan{Depot: 1, Vehicles: []int{3, 4}, Customers: []int{1, 2}}

	routes, err := ConstructRoutes(l, plan, DefaultParams(), rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	require.Len(t, routes, 2)
	require.Len(t, routes[0], 3)
	require.Len(t, routes[1], 3)
	require.Equal(t, 3, routes[0][0])
	require.Equal(t, 4, routes[1][0])
}

func TestConstructRoutesRespectsFleetSize(t *testing.T) {
	l, plans := twoDepotFixture()
	p := DefaultParams()
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		for _, plan := range plans {
			routes, err := ConstructRoutes(l, plan, p, rng)
			require.NoError(t, err)
			require.Len(t, routes, len(plan.Vehicles))

			var seen []int
			for k, r := range routes {
				require.Equal(t, plan.Vehicles[k], r[0])
				require.Equal(t, plan.Vehicles[k], r[len(r)-1])
				seen = append(seen, r[1:len(r)-1]...)
			}
			require.ElementsMatch(t, plan.Customers, seen)
		}
	}
}

func TestConstructRoutesEmptyAndMissingVehicles(t *testing.T) {
	l, plan := colinear()

	empty := DepotPlan{Depot: 1, Vehicles: []int{4}}
	routes, err := ConstructRoutes(l, empty, DefaultParams(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, [][]int{{4, 4}}, routes)

	plan.Vehicles = nil
	_, err = ConstructRoutes(l, plan, DefaultParams(), rand.New(rand.NewSource(1)))
	require.True(t, errors.Is(err, ErrInvariant))
}

func TestConstructSolutionConcatenatesDepots(t *testing.T) {
	l, plans := twoDepotFixture()
	sol, err := ConstructSolution(l, plans, DefaultParams(), rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	require.Len(t, sol.Routes, 4)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, customersOf(sol))
}
