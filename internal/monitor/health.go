// Package monitor tracks whether the diagnosis backend is reachable.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/gateway"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often the backend is probed.
const DefaultInterval = 30 * time.Second

const (
	msgChecking      = "Checking backend connection..."
	msgConnected     = "Backend connected"
	msgNotResponding = "Backend not responding"
	msgUnreachable   = "Cannot connect to backend"
)

// Prober checks the backend health endpoint.
type Prober interface {
	Health(ctx context.Context) error
}

// HealthMonitor runs a background goroutine that periodically probes the
// backend and keeps the last observed status. A failed probe is recorded,
// never fatal.
type HealthMonitor struct {
	prober   Prober
	interval time.Duration
	stopCh   chan struct{}
	mu       sync.Mutex
	running  bool
	status   models.BackendStatus
}

// NewHealthMonitor creates a monitor with the given interval.
func NewHealthMonitor(p Prober, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &HealthMonitor{
		prober:   p,
		interval: interval,
		stopCh:   make(chan struct{}),
		status:   models.BackendStatus{Status: models.ConnectionChecking, Message: msgChecking},
	}
}

// Start begins the polling loop. The first probe runs immediately.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	log.Info().Dur("interval", m.interval).Msg("Backend health monitor started")

	go m.loop(ctx)
}

// Stop shuts down the polling loop.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
	log.Info().Msg("Backend health monitor stopped")
}

// Status returns the last observed backend status.
func (m *HealthMonitor) Status() models.BackendStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.status
	if s.CheckedAt != nil {
		t := *s.CheckedAt
		s.CheckedAt = &t
	}
	return s
}

// Check probes the backend once and records the outcome.
func (m *HealthMonitor) Check(ctx context.Context) models.BackendStatus {
	err := m.prober.Health(ctx)
	now := time.Now().UTC()

	next := models.BackendStatus{CheckedAt: &now}
	switch {
	case err == nil:
		next.Status, next.Message = models.ConnectionConnected, msgConnected
	case isUnreachable(err):
		next.Status, next.Message = models.ConnectionDisconnected, msgUnreachable
	default:
		next.Status, next.Message = models.ConnectionDisconnected, msgNotResponding
	}

	m.mu.Lock()
	old := m.status.Status
	m.status = next
	m.mu.Unlock()

	if old != next.Status {
		ev := log.Info()
		if next.Status == models.ConnectionDisconnected {
			ev = log.Warn().Err(err)
		}
		ev.Str("old", string(old)).Str("new", string(next.Status)).Msg("Backend status changed")
	}
	return m.Status()
}

func (m *HealthMonitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Run once immediately
	m.Check(ctx)

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// isUnreachable separates "nothing answered" from "answered badly".
func isUnreachable(err error) bool {
	return errors.Is(err, gateway.ErrNetwork)
}
