package upstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/jroosing/hydradns/internal/core"
)

// HealthProbeInterval is the fixed cadence of the background health probe
// (spec.md §4.4: "every 30 s").
const HealthProbeInterval = 30 * time.Second

// ProbeFunc sends a single probe query to a server and reports whether it
// answered successfully. The proxy manager supplies this so the upstream
// package never needs to know about transports.
type ProbeFunc func(ctx context.Context, s core.UpstreamServer) error

// HealthProbe periodically re-checks disabled-for-health servers: a single
// goroutine, a time.Ticker, and a context-cancellation exit path.
type HealthProbe struct {
	manager *Manager
	probe   ProbeFunc
	logger  *slog.Logger

	stopCh chan struct{}
}

// NewHealthProbe constructs a health probe for manager using probe to test
// unhealthy servers.
func NewHealthProbe(manager *Manager, probe ProbeFunc, logger *slog.Logger) *HealthProbe {
	return &HealthProbe{manager: manager, probe: probe, logger: logger, stopCh: make(chan struct{})}
}

// Run blocks, probing unhealthy servers every HealthProbeInterval, until ctx
// is cancelled or Stop is called.
func (h *HealthProbe) Run(ctx context.Context) {
	ticker := time.NewTicker(HealthProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.runOnce(ctx)
		}
	}
}

// Stop signals Run to exit. Safe to call multiple times.
func (h *HealthProbe) Stop() {
	select {
	case <-h.stopCh:
	default:
		close(h.stopCh)
	}
}

func (h *HealthProbe) runOnce(ctx context.Context) {
	for _, s := range h.manager.Unhealthy() {
		if err := h.probe(ctx, s); err != nil {
			if h.logger != nil {
				h.logger.DebugContext(ctx, "health probe failed", "upstream", s.Name, "err", err)
			}
			continue
		}
		h.manager.MarkHealthy(s.ID)
		if h.logger != nil {
			h.logger.InfoContext(ctx, "health probe succeeded, marking upstream healthy", "upstream", s.Name)
		}
	}
}
