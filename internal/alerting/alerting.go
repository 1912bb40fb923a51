// Package alerting posts webhook notifications when an upstream server
// crosses the healthy/unhealthy boundary, grounded on the original Rust
// service's AlertManager (backend/src/services/alert_manager.rs). It is a
// pure observer of internal/upstream's existing health transitions: it
// never influences server selection or health state.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jroosing/hydradns/internal/core"
)

// Event is the JSON payload posted to the configured webhook URL.
type Event struct {
	ServerName string    `json:"server_name"`
	Address    string    `json:"address"`
	Healthy    bool      `json:"healthy"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier posts Event payloads to a webhook URL.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// New constructs a Notifier. webhookURL may be empty, in which case Notify
// is a no-op (alerting disabled).
func New(webhookURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Observer returns the func(core.UpstreamServer, bool) callback shape
// upstream.Manager.SetTransitionObserver expects.
func (n *Notifier) Observer() func(core.UpstreamServer, bool) {
	return func(s core.UpstreamServer, healthy bool) {
		n.Notify(context.Background(), s, healthy)
	}
}

// Notify posts a health-transition event. Failures are logged, never
// returned: a broken webhook must not affect DNS resolution.
func (n *Notifier) Notify(ctx context.Context, server core.UpstreamServer, healthy bool) {
	if n == nil || n.webhookURL == "" {
		return
	}

	body, err := json.Marshal(Event{
		ServerName: server.Name,
		Address:    server.Address,
		Healthy:    healthy,
		Timestamp:  time.Now(),
	})
	if err != nil {
		n.logError("marshal alert event", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logError("build alert request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logError("send alert webhook", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logError("alert webhook rejected", fmt.Errorf("status %d", resp.StatusCode))
	}
}

func (n *Notifier) logError(msg string, err error) {
	if n.logger != nil {
		n.logger.Warn(msg, "err", err)
	}
}
