package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"gopkg.in/yaml.v3"

	"mdvrp/internal/model"
)

const maxRequestBytes = 8 << 20

// decodeRunRequest reads a JSON or YAML run request. Fields left out keep
// the server defaults.
func (s *Server) decodeRunRequest(r *http.Request) (model.RunRequest, error) {
	req := model.RunRequest{
		Generations: s.Config.Generations,
		Seed:        s.Config.Seed,
		ReportEvery: s.Config.DrawRate,
		Params:      s.Config.Params(),
	}
	body := io.LimitReader(r.Body, maxRequestBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/yaml", "application/x-yaml", "text/yaml":
		if err := yaml.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
			return req, fmt.Errorf("invalid YAML: %w", err)
		}
	case "", "application/json":
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON: %w", err)
		}
	default:
		return req, fmt.Errorf("unsupported content type %q", ct)
	}
	return req, nil
}
