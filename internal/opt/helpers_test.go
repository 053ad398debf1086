package opt

import (
	"math"
	"sort"
)

// planeLookup is a Euclidean lookup over explicit node coordinates.
type planeLookup struct {
	pos    map[int][2]float64
	demand map[int]int
}

func (l planeLookup) Distance(a, b int) float64 {
	pa, pb := l.pos[a], l.pos[b]
	return math.Hypot(pa[0]-pb[0], pa[1]-pb[1])
}

func (l planeLookup) Demand(n int) int { return l.demand[n] }

// twoDepotFixture has customers 1..8 around two depots; vehicles 9,10 sit
// at depot A and 11,12 at depot B.
func twoDepotFixture() (planeLookup, []DepotPlan) {
	l := planeLookup{
		pos: map[int][2]float64{
			1: {2, 3}, 2: {4, 1}, 3: {-3, 2}, 4: {1, -4},
			5: {22, 3}, 6: {18, -2}, 7: {25, 5}, 8: {21, -4},
			9: {0, 0}, 10: {0, 0}, 11: {20, 0}, 12: {20, 0},
		},
		demand: map[int]int{
			1: 4, 2: 6, 3: 5, 4: 3, 5: 7, 6: 2, 7: 6, 8: 5,
			9: 10, 10: 10, 11: 10, 12: 10,
		},
	}
	plans := []DepotPlan{
		{Depot: 1, Vehicles: []int{9, 10}, Customers: []int{1, 2, 3, 4}},
		{Depot: 2, Vehicles: []int{11, 12}, Customers: []int{5, 6, 7, 8}},
	}
	return l, plans
}

func geneKeys(genes []Gene) []string {
	out := make([]string, len(genes))
	for i, g := range genes {
		out[i] = g.String()
	}
	sort.Strings(out)
	return out
}

func customersOf(s Solution) []int {
	var out []int
	for _, r := range s.Routes {
		if len(r) > 2 {
			out = append(out, r[1:len(r)-1]...)
		}
	}
	sort.Ints(out)
	return out
}
