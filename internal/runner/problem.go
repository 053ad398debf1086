package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"mdvrp/internal/instance"
	"mdvrp/internal/model"
)

// ProblemFor resolves the instance of a request: inline text wins over a
// file name, and file names are looked up inside dir only. Instances with
// more than maxNodes nodes are rejected before they are built; zero means
// no ceiling.
func ProblemFor(req model.RunRequest, dir string, maxNodes int) (*model.Problem, error) {
	if strings.TrimSpace(req.Instance) != "" {
		p, err := instance.ParseLimit(strings.NewReader(req.Instance), maxNodes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		p.Name = req.Name
		return p, nil
	}
	if req.InstancePath == "" {
		return nil, fmt.Errorf("%w: instance or instancePath is required", ErrInvalidRequest)
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: instancePath is disabled", ErrInvalidRequest)
	}
	p, err := instance.LoadProblemLimit(filepath.Join(dir, filepath.Base(req.InstancePath)), maxNodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return p, nil
}
