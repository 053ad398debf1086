package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mdvrp/internal/metrics"
)

// Notifier posts run events to a single configured endpoint, retrying
// failed deliveries with exponential backoff.
type Notifier struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Log         zerolog.Logger
	// Backoff returns the wait after the given number of failed attempts.
	Backoff func(attempts int) time.Duration
}

func NewNotifier(url, secret string, maxAttempts int, log zerolog.Logger) *Notifier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Notifier{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Log:         log,
		Backoff:     nextBackoff,
	}
}

// Notify delivers one event and blocks until it succeeds, attempts run
// out, or ctx ends. A nil Notifier or an empty URL is a no-op.
func (n *Notifier) Notify(ctx context.Context, eventType string, data any) error {
	if n == nil || n.URL == "" {
		return nil
	}
	id := "evt_" + uuid.New().String()
	body, err := json.Marshal(map[string]any{
		"id":   id,
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	})
	if err != nil {
		return err
	}

	var lastErr error
	attempts := max(n.MaxAttempts, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.backoff(attempt - 1)):
			}
		}
		code, latency, err := n.deliver(ctx, id, eventType, body)
		status := "success"
		if err != nil {
			status = "failed"
		}
		metrics.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
		metrics.WebhookLatency.WithLabelValues(eventType, status).Observe(float64(latency.Milliseconds()))
		if err == nil {
			n.Log.Debug().Str("event", eventType).Int("code", code).Int("attempt", attempt+1).Msg("webhook delivered")
			return nil
		}
		lastErr = err
		n.Log.Warn().Err(err).Str("event", eventType).Int("code", code).Int("attempt", attempt+1).Msg("webhook delivery failed")
	}
	return fmt.Errorf("webhook %s: giving up after %d attempts: %w", eventType, attempts, lastErr)
}

func (n *Notifier) backoff(attempts int) time.Duration {
	if n.Backoff != nil {
		return n.Backoff(attempts)
	}
	return nextBackoff(attempts)
}

func (n *Notifier) deliver(ctx context.Context, id, eventType string, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, eventType)
	req.Header.Set(HeaderEventID, id)
	if n.Secret != "" {
		req.Header.Set(HeaderSignature, SignHMAC(n.Secret, body))
	}
	start := time.Now()
	client := n.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, latency, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, latency, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
