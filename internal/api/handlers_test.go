package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mdvrp/internal/config"
	"mdvrp/internal/events"
	"mdvrp/internal/model"
	"mdvrp/internal/runner"
)

const problemText = `2 6 2
0 40
0 40
1 2 3 0 10
2 4 1 0 12
3 -3 2 0 9
4 22 3 0 14
5 18 -2 0 8
6 25 5 0 11
7 0 0
8 20 0
`

func testConfig() config.Config {
	return config.Config{
		Environment:          "test",
		LogLevel:             "info",
		Generations:          3,
		DrawRate:             1,
		Seed:                 7,
		PopulationSize:       10,
		PopulationGenStep:    5,
		EliteCount:           2,
		ParentSelectionK:     3,
		CrossoverRate:        1,
		SingleSwapMutRate:    0.05,
		SingleSwapMutMax:     2,
		VehicleRemoveMutRate: 0.05,
		VehicleRemoveMutMax:  1,
		InfeasibilityPenalty: 1000,
		CWSBias:              10,
		WebhookMaxAttempts:   1,
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	s, err := NewServer(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func postRun(t *testing.T, s *Server, body map[string]any) model.Run {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	rr := do(t, s.Routes(), http.MethodPost, "/v1/runs", "application/json", b)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	run := decode[model.Run](t, rr)
	require.Equal(t, "/v1/runs/"+run.ID, rr.Header().Get("Location"))
	return run
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t, testConfig())
	require.Equal(t, http.StatusOK, do(t, s.Routes(), http.MethodGet, "/healthz", "", nil).Code)
	require.Equal(t, http.StatusOK, do(t, s.Routes(), http.MethodGet, "/readyz", "", nil).Code)
}

func TestCreateRunAndPoll(t *testing.T) {
	s := newTestServer(t, testConfig())
	run := postRun(t, s, map[string]any{"name": "tiny", "instance": problemText})
	require.Equal(t, model.RunQueued, run.Status)
	require.Equal(t, 3, run.Generations)
	require.Equal(t, int64(7), run.Seed)
	s.Runner.Wait()

	rr := do(t, s.Routes(), http.MethodGet, "/v1/runs/"+run.ID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[model.Run](t, rr)
	require.Equal(t, model.RunCompleted, got.Status)
	require.Equal(t, 3, got.Generation)
	require.NotNil(t, got.BestScore)
	require.NotEmpty(t, got.Routes)

	rr = do(t, s.Routes(), http.MethodGet, "/v1/runs/"+run.ID+"/snapshots", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snaps := decode[struct {
		Items []model.Snapshot `json:"items"`
	}](t, rr)
	require.Len(t, snaps.Items, 4)
	require.Equal(t, *got.BestScore, snaps.Items[3].Best)
}

func TestCreateRunFromYAML(t *testing.T) {
	s := newTestServer(t, testConfig())
	var body strings.Builder
	body.WriteString("name: yaml-run\ngenerations: 1\nparams:\n  populationSize: 6\ninstance: |\n")
	for _, l := range strings.Split(strings.TrimSpace(problemText), "\n") {
		body.WriteString("  " + l + "\n")
	}
	rr := do(t, s.Routes(), http.MethodPost, "/v1/runs", "application/yaml", []byte(body.String()))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	run := decode[model.Run](t, rr)
	require.Equal(t, "yaml-run", run.Name)
	require.Equal(t, 1, run.Generations)
	require.Equal(t, 6, run.Params.PopulationSize)
	require.Equal(t, 3, run.Params.TournamentSize)
	require.Equal(t, 6, run.Instance.Customers)
}

func TestCreateRunRejectsBadInput(t *testing.T) {
	s := newTestServer(t, testConfig())
	cases := []struct {
		name, contentType, body string
	}{
		{"malformed json", "application/json", `{"instance":`},
		{"missing instance", "application/json", `{"name":"x"}`},
		{"bad instance", "application/json", `{"instance":"1 2"}`},
		{"bad params", "application/json", `{"instance":` + jsonString(problemText) + `,"params":{"tournamentSize":0}}`},
		{"negative generations", "application/json", `{"instance":` + jsonString(problemText) + `,"generations":-2}`},
		{"unsupported type", "text/csv", `a,b`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, s.Routes(), http.MethodPost, "/v1/runs", tc.contentType, []byte(tc.body))
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			p := decode[Problem](t, rr)
			require.Equal(t, http.StatusBadRequest, p.Status)
			require.NotEmpty(t, p.Detail)
		})
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestCreateRunRejectsOversizedRequests(t *testing.T) {
	cfg := testConfig()
	cfg.MaxNodes, cfg.MaxPopulation = 100, 50
	s := newTestServer(t, cfg)

	huge := `{"instance":` + jsonString("200000 1 1\n0 100\n1 5 5 0 10\n1 0 0\n") + `}`
	rr := do(t, s.Routes(), http.MethodPost, "/v1/runs", "application/json", []byte(huge))
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	require.Contains(t, decode[Problem](t, rr).Detail, "too large")

	big := `{"instance":` + jsonString(problemText) + `,"params":{"populationSize":51}}`
	rr = do(t, s.Routes(), http.MethodPost, "/v1/runs", "application/json", []byte(big))
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	rr = do(t, s.Routes(), http.MethodGet, "/v1/runs", "", nil)
	require.Empty(t, decode[map[string]any](t, rr)["items"])
}

func TestCreateRunFromInstanceDir(t *testing.T) {
	cfg := testConfig()
	cfg.InstanceDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InstanceDir, "p01"), []byte(problemText), 0o600))
	s := newTestServer(t, cfg)

	run := postRun(t, s, map[string]any{"instancePath": "p01", "generations": 0})
	require.Equal(t, "p01", run.Name)

	rr := do(t, s.Routes(), http.MethodPost, "/v1/runs", "application/json", []byte(`{"instancePath":"missing"}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUnknownRun(t *testing.T) {
	s := newTestServer(t, testConfig())
	rr := do(t, s.Routes(), http.MethodGet, "/v1/runs/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, s.Routes(), http.MethodDelete, "/v1/runs/nope", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestListRuns(t *testing.T) {
	s := newTestServer(t, testConfig())
	postRun(t, s, map[string]any{"instance": problemText, "generations": 1})
	postRun(t, s, map[string]any{"instance": problemText, "generations": 1})
	s.Runner.Wait()

	type page struct {
		Items      []model.Run `json:"items"`
		NextCursor string      `json:"nextCursor"`
	}
	rr := do(t, s.Routes(), http.MethodGet, "/v1/runs?status=completed", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[page](t, rr).Items, 2)

	rr = do(t, s.Routes(), http.MethodGet, "/v1/runs?status=running", "", nil)
	require.Empty(t, decode[page](t, rr).Items)

	rr = do(t, s.Routes(), http.MethodGet, "/v1/runs?limit=1", "", nil)
	first := decode[page](t, rr)
	require.Len(t, first.Items, 1)
	require.NotEmpty(t, first.NextCursor)

	rr = do(t, s.Routes(), http.MethodGet, "/v1/runs?limit=1&cursor="+first.NextCursor, "", nil)
	second := decode[page](t, rr)
	require.Len(t, second.Items, 1)
	require.NotEqual(t, first.Items[0].ID, second.Items[0].ID)
	require.Empty(t, second.NextCursor)

	rr = do(t, s.Routes(), http.MethodGet, "/v1/runs?limit=x", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDefaultParams(t *testing.T) {
	s := newTestServer(t, testConfig())
	rr := do(t, s.Routes(), http.MethodGet, "/v1/params/defaults", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	require.EqualValues(t, 3, body["generations"])
	params := body["params"].(map[string]any)
	require.EqualValues(t, 10, params["populationSize"])
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	s := newTestServer(t, cfg)
	h := s.Routes()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/runs", "", nil).Code)
	rr := do(t, h, http.MethodGet, "/v1/runs", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "1", rr.Header().Get("Retry-After"))
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
}

func TestRouteLabel(t *testing.T) {
	require.Equal(t, "/v1/runs", routeLabel("/v1/runs"))
	require.Equal(t, "/v1/runs/{id}", routeLabel("/v1/runs/abc"))
	require.Equal(t, "/v1/runs/{id}/events", routeLabel("/v1/runs/abc/events"))
	require.Equal(t, "/healthz", routeLabel("/healthz"))
}

func dialEvents(t *testing.T, srv *httptest.Server, runID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/runs/" + runID + "/events"
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRunEventsStream(t *testing.T) {
	s := newTestServer(t, testConfig())
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	p, err := runner.ProblemFor(model.RunRequest{Instance: problemText}, "", 0)
	require.NoError(t, err)
	req := model.RunRequest{Generations: 2, Seed: 1, Params: s.Config.Params()}
	run, err := s.Runner.Create(context.Background(), req, p)
	require.NoError(t, err)

	c := dialEvents(t, srv, run.ID)
	var first events.Event
	require.NoError(t, c.ReadJSON(&first))
	require.Equal(t, TypeRunState, first.Type)
	require.Equal(t, "queued", first.Data["run"].(map[string]any)["status"])

	done := make(chan error, 1)
	go func() {
		_, err := s.Runner.Execute(context.Background(), run, p, 1)
		done <- err
	}()

	var types []string
	for {
		var evt events.Event
		if err := c.ReadJSON(&evt); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			break
		}
		types = append(types, evt.Type)
	}
	require.NoError(t, <-done)
	require.Equal(t, []string{
		events.TypeRunStarted,
		events.TypeGeneration, events.TypeGeneration, events.TypeGeneration,
		events.TypeRunCompleted,
	}, types)
}

func TestRunEventsFinishedRun(t *testing.T) {
	s := newTestServer(t, testConfig())
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	run := postRun(t, s, map[string]any{"instance": problemText, "generations": 1})
	s.Runner.Wait()

	c := dialEvents(t, srv, run.ID)
	var state events.Event
	require.NoError(t, c.ReadJSON(&state))
	require.Equal(t, TypeRunState, state.Type)
	require.Equal(t, "completed", state.Data["run"].(map[string]any)["status"])
	_, _, err := c.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
}

func TestRunEventsStreamEndsWhenTerminalEventIsLost(t *testing.T) {
	defer func(d time.Duration) { wsStatusPoll = d }(wsStatusPoll)
	wsStatusPoll = 20 * time.Millisecond

	s := newTestServer(t, testConfig())
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	p, err := runner.ProblemFor(model.RunRequest{Instance: problemText}, "", 0)
	require.NoError(t, err)
	run, err := s.Runner.Create(context.Background(), model.RunRequest{Params: s.Config.Params()}, p)
	require.NoError(t, err)

	c := dialEvents(t, srv, run.ID)
	var state events.Event
	require.NoError(t, c.ReadJSON(&state))
	require.Equal(t, "queued", state.Data["run"].(map[string]any)["status"])

	// Finish the run without publishing anything.
	run.Status = model.RunFailed
	run.Error = "worker lost"
	require.NoError(t, s.Store.UpdateRun(context.Background(), run))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, c.ReadJSON(&state))
	require.Equal(t, TypeRunState, state.Type)
	require.Equal(t, "failed", state.Data["run"].(map[string]any)["status"])
	_, _, err = c.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
}
