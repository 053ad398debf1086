package opt

import (
	"fmt"
	"runtime"
)

// Params tunes construction and evolution. The zero value is not usable;
// start from DefaultParams.
type Params struct {
	PopulationSize       int     `json:"populationSize" yaml:"populationSize"`
	PopulationGenStep    int     `json:"populationGenStep" yaml:"populationGenStep"`
	EliteCount           int     `json:"eliteCount" yaml:"eliteCount"`
	TournamentSize       int     `json:"tournamentSize" yaml:"tournamentSize"`
	CrossoverRate        float64 `json:"crossoverRate" yaml:"crossoverRate"`
	SingleSwapMutRate    float64 `json:"singleSwapMutRate" yaml:"singleSwapMutRate"`
	SingleSwapMutMax     int     `json:"singleSwapMutMax" yaml:"singleSwapMutMax"`
	VehicleRemoveMutRate float64 `json:"vehicleRemoveMutRate" yaml:"vehicleRemoveMutRate"`
	VehicleRemoveMutMax  int     `json:"vehicleRemoveMutMax" yaml:"vehicleRemoveMutMax"`
	InfeasibilityPenalty float64 `json:"infeasibilityPenalty" yaml:"infeasibilityPenalty"`
	CWSBias              int     `json:"cwsBias" yaml:"cwsBias"`
	// Workers bounds the goroutines used for construction, evaluation and
	// breeding. Zero means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

func DefaultParams() Params {
	return Params{
		PopulationSize:       50,
		PopulationGenStep:    50,
		EliteCount:           2,
		TournamentSize:       5,
		CrossoverRate:        1.0,
		SingleSwapMutRate:    0.05,
		SingleSwapMutMax:     2,
		VehicleRemoveMutRate: 0.05,
		VehicleRemoveMutMax:  1,
		InfeasibilityPenalty: 1000,
		CWSBias:              10,
	}
}

// Validate reports the first out-of-range field.
func (p Params) Validate() error {
	switch {
	case p.PopulationSize < 1:
		return fmt.Errorf("%w: populationSize must be >= 1", ErrInvalidParams)
	case p.PopulationGenStep < 1:
		return fmt.Errorf("%w: populationGenStep must be >= 1", ErrInvalidParams)
	case p.EliteCount < 0 || p.EliteCount > p.PopulationSize:
		return fmt.Errorf("%w: eliteCount must be in [0, populationSize]", ErrInvalidParams)
	case p.TournamentSize < 1:
		return fmt.Errorf("%w: tournamentSize must be >= 1", ErrInvalidParams)
	case !isRate(p.CrossoverRate):
		return fmt.Errorf("%w: crossoverRate must be in [0,1]", ErrInvalidParams)
	case !isRate(p.SingleSwapMutRate):
		return fmt.Errorf("%w: singleSwapMutRate must be in [0,1]", ErrInvalidParams)
	case !isRate(p.VehicleRemoveMutRate):
		return fmt.Errorf("%w: vehicleRemoveMutRate must be in [0,1]", ErrInvalidParams)
	case p.SingleSwapMutMax < 0 || p.VehicleRemoveMutMax < 0:
		return fmt.Errorf("%w: mutation maxima must be >= 0", ErrInvalidParams)
	case p.InfeasibilityPenalty < 0:
		return fmt.Errorf("%w: infeasibilityPenalty must be >= 0", ErrInvalidParams)
	case p.CWSBias < 1:
		return fmt.Errorf("%w: cwsBias must be >= 1", ErrInvalidParams)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidParams)
	}
	return nil
}

func (p Params) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func isRate(v float64) bool { return v >= 0 && v <= 1 }
