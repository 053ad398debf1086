package opt

import (
	"fmt"
	"math/rand"
	"sort"
)

// route is a construction-phase route: customers only, the home vehicle is
// implied by the depot being solved.
type route struct {
	stops     []int
	cost      float64
	evaluated bool
}

// evaluate memoizes the route cost; later calls return the cached value.
func (r *route) evaluate(l Lookup, home int, penalty float64) float64 {
	if !r.evaluated {
		r.cost = chainCost(l, home, penalty, r.stops, nil)
		r.evaluated = true
	}
	return r.cost
}

// chainCost prices home -> a... -> b... -> home. Capacity starts at the home
// vehicle's capacity and every visit that leaves it negative adds penalty.
func chainCost(l Lookup, home int, penalty float64, a, b []int) float64 {
	left := l.Demand(home)
	prev := home
	var cost float64
	for _, part := range [2][]int{a, b} {
		for _, c := range part {
			cost += l.Distance(prev, c)
			left -= l.Demand(c)
			if left < 0 {
				cost += penalty
			}
			prev = c
		}
	}
	return cost + l.Distance(prev, home)
}

// saving records the gain of appending routes[j] to routes[i].
type saving struct {
	i, j  int
	value float64
}

// ConstructRoutes builds one route per vehicle of the plan with a randomized
// Clarke-Wright savings heuristic. Each round one of the CWSBias best merges
// is applied at random. Merging stops once no merge saves distance and the
// route count fits the fleet; while it does not fit, the best available
// merge is applied even when it costs distance. Vehicles left without a
// route get an empty [v, v] route.
func ConstructRoutes(l Lookup, plan DepotPlan, p Params, rng *rand.Rand) ([][]int, error) {
	if len(plan.Vehicles) == 0 {
		if len(plan.Customers) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: depot %d has %d customers and no vehicles", ErrInvariant, plan.Depot, len(plan.Customers))
	}
	home := plan.Vehicles[0]
	bias := p.CWSBias
	if bias < 1 {
		bias = 1
	}

	routes := make([]*route, 0, len(plan.Customers))
	for _, c := range plan.Customers {
		r := &route{stops: []int{c}}
		r.evaluate(l, home, p.InfeasibilityPenalty)
		routes = append(routes, r)
	}

	var savings []saving
	for len(routes) > 1 {
		savings = savings[:0]
		for i, ri := range routes {
			for j, rj := range routes {
				if i == j {
					continue
				}
				merged := chainCost(l, home, p.InfeasibilityPenalty, ri.stops, rj.stops)
				savings = append(savings, saving{i: i, j: j, value: ri.cost + rj.cost - merged})
			}
		}
		sort.SliceStable(savings, func(a, b int) bool { return savings[a].value > savings[b].value })
		if savings[0].value <= 0 && len(routes) <= len(plan.Vehicles) {
			break
		}
		top := savings
		if len(top) > bias {
			top = top[:bias]
		}
		pick := top[rng.Intn(len(top))]
		routes = mergeRoutes(routes, pick.i, pick.j, l, home, p.InfeasibilityPenalty)
	}
	if len(routes) > len(plan.Vehicles) {
		return nil, fmt.Errorf("%w: depot %d ended with %d routes for %d vehicles", ErrInvariant, plan.Depot, len(routes), len(plan.Vehicles))
	}

	out := make([][]int, len(plan.Vehicles))
	for k, v := range plan.Vehicles {
		r := []int{v}
		if k < len(routes) {
			r = append(r, routes[k].stops...)
		}
		out[k] = append(r, v)
	}
	return out, nil
}

// mergeRoutes removes routes i and j by index and appends their
// concatenation i++j.
func mergeRoutes(routes []*route, i, j int, l Lookup, home int, penalty float64) []*route {
	stops := make([]int, 0, len(routes[i].stops)+len(routes[j].stops))
	stops = append(stops, routes[i].stops...)
	stops = append(stops, routes[j].stops...)
	merged := &route{stops: stops}
	merged.evaluate(l, home, penalty)

	next := make([]*route, 0, len(routes)-1)
	for k, r := range routes {
		if k != i && k != j {
			next = append(next, r)
		}
	}
	return append(next, merged)
}

// ConstructSolution runs ConstructRoutes for every plan and concatenates
// the routes in plan order.
func ConstructSolution(l Lookup, plans []DepotPlan, p Params, rng *rand.Rand) (Solution, error) {
	var sol Solution
	for _, plan := range plans {
		routes, err := ConstructRoutes(l, plan, p, rng)
		if err != nil {
			return Solution{}, err
		}
		sol.Routes = append(sol.Routes, routes...)
	}
	return sol, nil
}
