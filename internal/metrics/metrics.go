package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Runs counts finished runs by terminal status
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mdvrp_runs_total", Help: "Optimization runs by final status."},
		[]string{"status"},
	)
	// ActiveRuns is the number of runs currently executing
	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "mdvrp_active_runs", Help: "Runs currently executing."},
	)
	// Generations counts evolved generations across all runs
	Generations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mdvrp_generations_total", Help: "Generations evolved."},
	)
	// Evaluations counts fitness evaluations across all runs
	Evaluations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mdvrp_evaluations_total", Help: "Chromosome fitness evaluations."},
	)
	// GenerationDuration tracks the wall time of one generation
	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "mdvrp_generation_duration_seconds", Help: "Time to evolve and evaluate one generation.", Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14)},
	)
	// BestFitness is the latest best score per run
	BestFitness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "mdvrp_best_fitness", Help: "Best fitness of the latest reported generation."},
		[]string{"run"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers all collectors on Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Runs, ActiveRuns, Generations, Evaluations, GenerationDuration, BestFitness)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
