package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func smallProblem(t *testing.T) *Problem {
	t.Helper()
	customers := []Customer{
		{Number: 1, Pos: Pos{1, 1}, Demand: 3},
		{Number: 2, Pos: Pos{9, 0}, Demand: 4},
		{Number: 3, Pos: Pos{5, 0}, Demand: 5},
	}
	depots := []Depot{
		{Number: 1, Pos: Pos{0, 0}, Capacity: 10},
		{Number: 2, Pos: Pos{10, 0}, Capacity: 20},
	}
	p, err := NewProblem(2, customers, depots)
	require.NoError(t, err)
	return p
}

func TestNewProblemNumbersVehiclesAfterCustomers(t *testing.T) {
	p := smallProblem(t)
	require.Equal(t, 7, p.NodeCount())
	require.Equal(t, []Vehicle{
		{Number: 4, Depot: 1, Index: 1, Capacity: 10},
		{Number: 5, Depot: 1, Index: 2, Capacity: 10},
		{Number: 6, Depot: 2, Index: 1, Capacity: 20},
		{Number: 7, Depot: 2, Index: 2, Capacity: 20},
	}, p.Vehicles)

	id, ok := p.VehicleID(2, 1)
	require.True(t, ok)
	require.Equal(t, 6, id)
	_, ok = p.VehicleID(3, 1)
	require.False(t, ok)

	v, ok := p.Vehicle(5)
	require.True(t, ok)
	require.Equal(t, 1, v.Depot)
	_, ok = p.Vehicle(2)
	require.False(t, ok)
}

func TestNewProblemRejectsBadNumbering(t *testing.T) {
	_, err := NewProblem(1, []Customer{{Number: 2}}, []Depot{{Number: 1}})
	require.Error(t, err)
	_, err = NewProblem(1, nil, nil)
	require.Error(t, err)
}

func TestDepotPlansAssignNearestDepot(t *testing.T) {
	p := smallProblem(t)
	plans := p.DepotPlans()
	require.Len(t, plans, 2)
	require.Equal(t, []int{4, 5}, plans[0].Vehicles)
	require.Equal(t, []int{6, 7}, plans[1].Vehicles)
	// Customer 3 is equidistant and goes to the lower depot.
	require.Equal(t, []int{1, 3}, plans[0].Customers)
	require.Equal(t, []int{2}, plans[1].Customers)
}

func TestModelDistancesAndDemands(t *testing.T) {
	p := smallProblem(t)
	m := NewModel(p)
	require.Equal(t, 7, m.Nodes())
	require.InDelta(t, 1.0, m.Distance(2, 6), 1e-9)
	require.InDelta(t, m.Distance(1, 3), m.Distance(3, 1), 1e-12)
	require.Zero(t, m.Distance(4, 5))
	require.Zero(t, m.Distance(2, 2))
	require.Equal(t, 4, m.Demand(2))
	require.Equal(t, 20, m.Demand(7))
}
