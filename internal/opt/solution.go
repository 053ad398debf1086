package opt

// Solution is a set of routes, each of the form [v, c1, ..., ck, v] for a
// vehicle id v. Score is set once the solution has been evaluated.
type Solution struct {
	Routes [][]int  `json:"routes"`
	Score  *float64 `json:"score,omitempty"`
}

// Evaluate scores the solution through its chromosome encoding so both
// representations price identically.
func (s *Solution) Evaluate(l Lookup, penalty float64) (float64, error) {
	c, err := Encode(*s)
	if err != nil {
		return 0, err
	}
	score, err := c.Evaluate(l, penalty)
	if err != nil {
		return 0, err
	}
	s.Score = &score
	return score, nil
}

// Feasible reports whether every route's load fits its vehicle.
func (s Solution) Feasible(l Lookup) bool {
	for _, r := range s.Routes {
		if len(r) > 0 && RouteLoad(l, r) > l.Demand(r[0]) {
			return false
		}
	}
	return true
}

// Visited counts customer visits across all routes.
func (s Solution) Visited() int {
	n := 0
	for _, r := range s.Routes {
		if len(r) > 2 {
			n += len(r) - 2
		}
	}
	return n
}

// RouteDistance is the travelled distance of a single route, without
// penalties.
func RouteDistance(l Lookup, r []int) float64 {
	var d float64
	for i := 1; i < len(r); i++ {
		d += l.Distance(r[i-1], r[i])
	}
	return d
}

// RouteLoad sums the demand of the route's customers.
func RouteLoad(l Lookup, r []int) int {
	if len(r) < 3 {
		return 0
	}
	load := 0
	for _, c := range r[1 : len(r)-1] {
		load += l.Demand(c)
	}
	return load
}
