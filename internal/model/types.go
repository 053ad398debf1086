package model

import (
	"time"

	"mdvrp/internal/opt"
)

// Run lifecycle states.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Done reports whether the run reached a terminal state.
func (s RunStatus) Done() bool { return s == RunCompleted || s == RunFailed }

// RunRequest is the body of POST /v1/runs. Decoding into a request whose
// Params already hold the defaults leaves unspecified fields at their
// default values.
type RunRequest struct {
	Name         string     `json:"name,omitempty" yaml:"name"`
	Instance     string     `json:"instance,omitempty" yaml:"instance"`
	InstancePath string     `json:"instancePath,omitempty" yaml:"instancePath"`
	Generations  int        `json:"generations,omitempty" yaml:"generations"`
	Seed         int64      `json:"seed,omitempty" yaml:"seed"`
	ReportEvery  int        `json:"reportEvery,omitempty" yaml:"reportEvery"`
	Params       opt.Params `json:"params" yaml:"params"`
}

// InstanceInfo summarizes the problem a run works on.
type InstanceInfo struct {
	Name        string `json:"name,omitempty"`
	Customers   int    `json:"customers"`
	Depots      int    `json:"depots"`
	MaxVehicles int    `json:"maxVehicles"`
}

func (p *Problem) Info() InstanceInfo {
	return InstanceInfo{Name: p.Name, Customers: p.NumCustomers, Depots: p.NumDepots, MaxVehicles: p.MaxVehicles}
}

type Run struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Status      RunStatus    `json:"status"`
	Instance    InstanceInfo `json:"instance"`
	Params      opt.Params   `json:"params"`
	Generations int          `json:"generations"`
	Seed        int64        `json:"seed"`
	Generation  int          `json:"generation"`
	BestScore   *float64     `json:"bestScore,omitempty"`
	Feasible    bool         `json:"feasible"`
	Routes      [][]int      `json:"routes,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	FinishedAt  *time.Time   `json:"finishedAt,omitempty"`
}

// Snapshot is the progress record stored every few generations.
type Snapshot struct {
	RunID string `json:"runId"`
	opt.Stats
	Evaluations int       `json:"evaluations"`
	ElapsedMs   int64     `json:"elapsedMs"`
	At          time.Time `json:"at"`
}
