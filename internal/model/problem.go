package model

import (
	"fmt"
	"math"

	"mdvrp/internal/opt"
)

// Pos is an integer grid position as found in instance files.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Distance is the Euclidean distance between two positions.
func (p Pos) Distance(q Pos) float64 {
	return math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y))
}

type Customer struct {
	Number      int `json:"number"`
	Pos         Pos `json:"pos"`
	ServiceTime int `json:"serviceTime"`
	Demand      int `json:"demand"`
}

// Depot numbers run from 1 to NumDepots in file order.
type Depot struct {
	Number      int `json:"number"`
	Pos         Pos `json:"pos"`
	MaxDuration int `json:"maxDuration"`
	Capacity    int `json:"capacity"`
}

// Vehicle is a marker node. Number continues after the last customer:
// depot d (1-based) owns NumCustomers + (d-1)*MaxVehicles + 1 onwards.
type Vehicle struct {
	Number   int `json:"number"`
	Depot    int `json:"depot"`
	Index    int `json:"index"` // 1-based position within the depot's fleet
	Capacity int `json:"capacity"`
}

// Problem is a parsed multi-depot instance.
type Problem struct {
	Name         string     `json:"name,omitempty"`
	MaxVehicles  int        `json:"maxVehicles"`
	NumCustomers int        `json:"numCustomers"`
	NumDepots    int        `json:"numDepots"`
	Customers    []Customer `json:"customers"`
	Depots       []Depot    `json:"depots"`
	Vehicles     []Vehicle  `json:"vehicles"`
}

// NewProblem checks numbering and derives the vehicle markers.
func NewProblem(maxVehicles int, customers []Customer, depots []Depot) (*Problem, error) {
	if maxVehicles < 0 {
		return nil, fmt.Errorf("max vehicles must be >= 0, got %d", maxVehicles)
	}
	if len(depots) == 0 {
		return nil, fmt.Errorf("problem has no depots")
	}
	for i, c := range customers {
		if c.Number != i+1 {
			return nil, fmt.Errorf("customer %d has number %d, want %d", i, c.Number, i+1)
		}
		if c.Demand < 0 {
			return nil, fmt.Errorf("customer %d has negative demand %d", c.Number, c.Demand)
		}
	}
	p := &Problem{
		MaxVehicles:  maxVehicles,
		NumCustomers: len(customers),
		NumDepots:    len(depots),
		Customers:    customers,
		Depots:       depots,
	}
	next := len(customers) + 1
	for i := range depots {
		if depots[i].Number != i+1 {
			return nil, fmt.Errorf("depot %d has number %d, want %d", i, depots[i].Number, i+1)
		}
		for k := 0; k < maxVehicles; k++ {
			p.Vehicles = append(p.Vehicles, Vehicle{Number: next, Depot: depots[i].Number, Index: k + 1, Capacity: depots[i].Capacity})
			next++
		}
	}
	return p, nil
}

// NodeCount covers customers and vehicle markers.
func (p *Problem) NodeCount() int { return p.NumCustomers + len(p.Vehicles) }

func (p *Problem) IsCustomer(node int) bool { return node >= 1 && node <= p.NumCustomers }

// Vehicle returns the marker with the given node number.
func (p *Problem) Vehicle(node int) (Vehicle, bool) {
	i := node - p.NumCustomers - 1
	if i < 0 || i >= len(p.Vehicles) {
		return Vehicle{}, false
	}
	return p.Vehicles[i], true
}

// VehicleID maps a depot number and a 1-based fleet index to a node number.
func (p *Problem) VehicleID(depot, index int) (int, bool) {
	if depot < 1 || depot > p.NumDepots || index < 1 || index > p.MaxVehicles {
		return 0, false
	}
	return p.NumCustomers + (depot-1)*p.MaxVehicles + index, true
}

// Pos resolves customers and vehicle markers; markers sit on their depot.
func (p *Problem) Pos(node int) Pos {
	if p.IsCustomer(node) {
		return p.Customers[node-1].Pos
	}
	v, _ := p.Vehicle(node)
	return p.Depots[v.Depot-1].Pos
}

// DepotPlans assigns each customer to its nearest depot, lower depot
// number on ties, and lists each depot's vehicles.
func (p *Problem) DepotPlans() []opt.DepotPlan {
	plans := make([]opt.DepotPlan, len(p.Depots))
	for i, d := range p.Depots {
		plans[i].Depot = d.Number
	}
	for _, v := range p.Vehicles {
		plans[v.Depot-1].Vehicles = append(plans[v.Depot-1].Vehicles, v.Number)
	}
	for _, c := range p.Customers {
		best, bestDist := 0, math.Inf(1)
		for i, d := range p.Depots {
			if dist := c.Pos.Distance(d.Pos); dist < bestDist {
				best, bestDist = i, dist
			}
		}
		plans[best].Customers = append(plans[best].Customers, c.Number)
	}
	return plans
}
