// Package instance reads and writes the plain-text formats used by the
// Cordeau multi-depot benchmark: problem files, reference solutions and
// solution reports.
package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mdvrp/internal/model"
)

// ErrFormat wraps every parse failure; the message carries the line.
var ErrFormat = errors.New("instance: bad format")

// ErrTooLarge is returned by ParseLimit for instances over the node ceiling.
var ErrTooLarge = errors.New("instance: too large")

type line struct {
	no     int
	fields []string
}

// readLines splits r into whitespace-separated fields, dropping blank lines.
func readLines(r io.Reader) ([]line, error) {
	var out []line
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	no := 0
	for sc.Scan() {
		no++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		out = append(out, line{no: no, fields: f})
	}
	return out, sc.Err()
}

func (l line) int(col int) (int, error) {
	if col >= len(l.fields) {
		return 0, fmt.Errorf("%w: line %d: missing column %d", ErrFormat, l.no, col+1)
	}
	v, err := strconv.Atoi(l.fields[col])
	if err != nil {
		return 0, fmt.Errorf("%w: line %d column %d: %q is not an integer", ErrFormat, l.no, col+1, l.fields[col])
	}
	return v, nil
}

func (l line) float(col int) (float64, error) {
	if col >= len(l.fields) {
		return 0, fmt.Errorf("%w: line %d: missing column %d", ErrFormat, l.no, col+1)
	}
	v, err := strconv.ParseFloat(l.fields[col], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d column %d: %q is not a number", ErrFormat, l.no, col+1, l.fields[col])
	}
	return v, nil
}

// ints parses the given columns in order.
func (l line) ints(cols ...int) ([]int, error) {
	out := make([]int, len(cols))
	for i, c := range cols {
		v, err := l.int(c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Parse reads a problem file:
//
//	m n t            vehicles per depot, customers, depots
//	D Q              t lines: max route duration, vehicle capacity
//	i x y d q ...    n customer lines
//	i x y            t depot position lines
func Parse(r io.Reader) (*model.Problem, error) {
	return ParseLimit(r, 0)
}

// ParseLimit is Parse with a ceiling on the node count (customers plus
// vehicles) checked against the header before anything is allocated.
// Zero means no ceiling.
func ParseLimit(r io.Reader, maxNodes int) (*model.Problem, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty problem file", ErrFormat)
	}
	head, err := lines[0].ints(0, 1, 2)
	if err != nil {
		return nil, err
	}
	m, n, t := head[0], head[1], head[2]
	if m < 0 || n < 0 || t < 1 {
		return nil, fmt.Errorf("%w: line %d: invalid header %d %d %d", ErrFormat, lines[0].no, m, n, t)
	}
	if m > 0 && t > (math.MaxInt-n)/m {
		return nil, fmt.Errorf("%w: line %d: fleet of %d vehicles per depot is too large", ErrFormat, lines[0].no, m)
	}
	if nodes := n + m*t; maxNodes > 0 && nodes > maxNodes {
		return nil, fmt.Errorf("%w: %d nodes exceeds the limit of %d", ErrTooLarge, nodes, maxNodes)
	}
	if want := 1 + t + n + t; len(lines) < want {
		return nil, fmt.Errorf("%w: expected %d lines, got %d", ErrFormat, want, len(lines))
	}

	depots := make([]model.Depot, t)
	for i := range depots {
		v, err := lines[1+i].ints(0, 1)
		if err != nil {
			return nil, err
		}
		depots[i] = model.Depot{Number: i + 1, MaxDuration: v[0], Capacity: v[1]}
	}

	customers := make([]model.Customer, n)
	for i := range customers {
		v, err := lines[1+t+i].ints(0, 1, 2, 3, 4)
		if err != nil {
			return nil, err
		}
		customers[i] = model.Customer{Number: v[0], Pos: model.Pos{X: v[1], Y: v[2]}, ServiceTime: v[3], Demand: v[4]}
	}

	for i := range depots {
		v, err := lines[1+t+n+i].ints(0, 1, 2)
		if err != nil {
			return nil, err
		}
		depots[i].Pos = model.Pos{X: v[1], Y: v[2]}
	}

	p, err := model.NewProblem(m, customers, depots)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return p, nil
}

// LoadProblem parses the file at path and names the problem after it.
func LoadProblem(path string) (*model.Problem, error) {
	return LoadProblemLimit(path, 0)
}

// LoadProblemLimit is LoadProblem with the node ceiling of ParseLimit.
func LoadProblemLimit(path string, maxNodes int) (*model.Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := ParseLimit(f, maxNodes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return p, nil
}
