package model

// Model is the read-only distance and demand table the optimizer works
// against. Node n maps to row n-1.
type Model struct {
	n      int
	dist   []float64
	demand []int
}

// NewModel precomputes all pairwise distances. Vehicle markers carry their
// depot's capacity as demand.
func NewModel(p *Problem) *Model {
	n := p.NodeCount()
	m := &Model{n: n, dist: make([]float64, n*n), demand: make([]int, n)}
	pos := make([]Pos, n)
	for node := 1; node <= n; node++ {
		pos[node-1] = p.Pos(node)
		if p.IsCustomer(node) {
			m.demand[node-1] = p.Customers[node-1].Demand
		} else {
			v, _ := p.Vehicle(node)
			m.demand[node-1] = v.Capacity
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := pos[i].Distance(pos[j])
			m.dist[i*n+j] = d
			m.dist[j*n+i] = d
		}
	}
	return m
}

func (m *Model) Distance(from, to int) float64 { return m.dist[(from-1)*m.n+(to-1)] }

func (m *Model) Demand(node int) int { return m.demand[node-1] }

// Nodes is the number of addressable node ids.
func (m *Model) Nodes() int { return m.n }
