package opt

// Lookup answers the two questions the optimizer asks about a problem
// instance. Node ids cover customers and vehicle markers; a vehicle id
// resolves to its depot's position and capacity. Implementations must be
// safe for concurrent reads.
type Lookup interface {
	Distance(from, to int) float64
	Demand(node int) int
}

// DepotPlan is the slice of the problem handled by one depot: the vehicle
// ids it owns (in order) and the customers assigned to it.
type DepotPlan struct {
	Depot     int   `json:"depot"`
	Vehicles  []int `json:"vehicles"`
	Customers []int `json:"customers"`
}
