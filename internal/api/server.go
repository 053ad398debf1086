// Package api serves optimization runs over HTTP: runs are submitted as
// JSON or YAML, executed in the background and followed by polling or
// over a WebSocket event stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"mdvrp/internal/config"
	"mdvrp/internal/events"
	"mdvrp/internal/runner"
	"mdvrp/internal/store"
	"mdvrp/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Broker events.Broker
	Runner *runner.Runner
	Config config.Config
	Log    zerolog.Logger

	limiter *ipLimiter
	closers []func() error
}

// NewServer wires the store, broker and runner selected by cfg. Without
// DATABASE_URL runs are kept in memory; without REDIS_URL, or when Redis
// is unreachable, events stay in process. Background runs stop when ctx
// is cancelled.
func NewServer(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	s := &Server{Config: cfg, Log: log, limiter: newIPLimiter(cfg.RateRPS, cfg.RateBurst)}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s.Store = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.DBMigrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		s.Store = pg
		s.closers = append(s.closers, pg.Close)
	}

	s.Broker = events.NewMemoryBroker()
	if cfg.RedisURL != "" {
		if rb, err := events.NewRedisBroker(cfg.RedisURL); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process events")
		} else {
			s.Broker = rb
			s.closers = append(s.closers, rb.Close)
		}
	}

	n := webhooks.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookMaxAttempts, log)
	s.Runner = runner.New(ctx, s.Store, s.Broker, n, log)
	s.Runner.Limits = runner.Limits{
		MaxNodes:       cfg.MaxNodes,
		MaxPopulation:  cfg.MaxPopulation,
		MaxGenerations: cfg.MaxGenerations,
		MaxMutations:   cfg.MaxMutations,
	}
	return s, nil
}

// Close waits for background runs and releases connections.
func (s *Server) Close() error {
	s.Runner.Wait()
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Routes returns the API handler with logging, metrics and rate limiting
// applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /snapshots and /events
	mux.HandleFunc("/v1/params/defaults", s.DefaultParamsHandler)
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug/info", s.DebugJSON)
	return s.accessLog(s.rateLimit(mux))
}
