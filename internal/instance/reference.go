package instance

import (
	"fmt"
	"io"
	"os"

	"mdvrp/internal/model"
	"mdvrp/internal/opt"
)

// ReferenceRoute is one line of a reference solution.
type ReferenceRoute struct {
	Depot     int     `json:"depot"`
	Vehicle   int     `json:"vehicle"`
	Duration  float64 `json:"duration"`
	Load      int     `json:"load"`
	Customers []int   `json:"customers"`
}

// Reference is a published (usually optimal) solution.
type Reference struct {
	Score  float64          `json:"score"`
	Routes []ReferenceRoute `json:"routes"`
}

// ParseReference reads a .res file: the total cost, then one line per
// route with depot, vehicle, duration, load, a depot column and the
// customer stops. Zero stops mark the depot and are skipped.
func ParseReference(r io.Reader) (*Reference, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty reference file", ErrFormat)
	}
	score, err := lines[0].float(0)
	if err != nil {
		return nil, err
	}
	ref := &Reference{Score: score}
	for _, l := range lines[1:] {
		head, err := l.ints(0, 1)
		if err != nil {
			return nil, err
		}
		dur, err := l.float(2)
		if err != nil {
			return nil, err
		}
		load, err := l.int(3)
		if err != nil {
			return nil, err
		}
		rr := ReferenceRoute{Depot: head[0], Vehicle: head[1], Duration: dur, Load: load}
		for col := 5; col < len(l.fields); col++ {
			c, err := l.int(col)
			if err != nil {
				return nil, err
			}
			if c != 0 {
				rr.Customers = append(rr.Customers, c)
			}
		}
		ref.Routes = append(ref.Routes, rr)
	}
	return ref, nil
}

// LoadReference parses the reference solution at path.
func LoadReference(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ref, err := ParseReference(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ref, nil
}

// Solution maps the reference onto the problem's vehicle ids. Vehicles
// without a line get an empty route.
func (r *Reference) Solution(p *model.Problem) (opt.Solution, error) {
	byVehicle := make(map[int][]int, len(r.Routes))
	for _, rr := range r.Routes {
		id, ok := p.VehicleID(rr.Depot, rr.Vehicle)
		if !ok {
			return opt.Solution{}, fmt.Errorf("%w: reference route for depot %d vehicle %d is outside the fleet", ErrFormat, rr.Depot, rr.Vehicle)
		}
		if _, dup := byVehicle[id]; dup {
			return opt.Solution{}, fmt.Errorf("%w: depot %d vehicle %d appears twice", ErrFormat, rr.Depot, rr.Vehicle)
		}
		byVehicle[id] = rr.Customers
	}
	sol := opt.Solution{Routes: make([][]int, 0, len(p.Vehicles))}
	for _, v := range p.Vehicles {
		route := append([]int{v.Number}, byVehicle[v.Number]...)
		sol.Routes = append(sol.Routes, append(route, v.Number))
	}
	return sol, nil
}
