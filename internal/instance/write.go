package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mdvrp/internal/model"
	"mdvrp/internal/opt"
)

// WriteSolution writes sol in the .res layout read by ParseReference.
// Routes are listed in vehicle order and empty routes are omitted.
func WriteSolution(w io.Writer, p *model.Problem, l opt.Lookup, sol opt.Solution) error {
	if sol.Score == nil {
		return errors.New("instance: solution is not scored")
	}
	byVehicle := make(map[int][]int, len(sol.Routes))
	for _, r := range sol.Routes {
		if len(r) > 0 {
			byVehicle[r[0]] = r
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%.2f\n", *sol.Score)
	for _, v := range p.Vehicles {
		r, ok := byVehicle[v.Number]
		if !ok {
			return fmt.Errorf("instance: no route for vehicle %d", v.Number)
		}
		if len(r) <= 2 {
			continue
		}
		stops := make([]string, 0, len(r)-2)
		for _, c := range r[1 : len(r)-1] {
			stops = append(stops, strconv.Itoa(c))
		}
		fmt.Fprintf(bw, "%d\t%d\t%.2f\t%d\t%d\t%s\n",
			v.Depot, v.Index, opt.RouteDistance(l, r), opt.RouteLoad(l, r), v.Depot, strings.Join(stops, " "))
	}
	return bw.Flush()
}

// SaveSolution writes the report to path, replacing any existing file.
func SaveSolution(path string, p *model.Problem, l opt.Lookup, sol opt.Solution) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSolution(f, p, l, sol); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
