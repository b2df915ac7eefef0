// Package server provides the HTTP server and routing for Sentinel.
package server

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/broker"
	"github.com/aristath/sentinel/internal/events"
)

// StatusMonitor periodically emits system/broker status events onto the
// event bus, the producer side of the SSE stream's system_status_changed
// and tradernet_status_changed event types.
type StatusMonitor struct {
	eventManager *events.Manager
	brokerAPI    broker.Broker
	log          zerolog.Logger

	lastConnected bool
	haveBaseline  bool
}

// NewStatusMonitor wires a StatusMonitor. brokerAPI may be nil in
// research/backtest-only deployments; the monitor then only emits the
// periodic system heartbeat.
func NewStatusMonitor(eventManager *events.Manager, brokerAPI broker.Broker, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager: eventManager,
		brokerAPI:    brokerAPI,
		log:          log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins the periodic monitoring loop in its own goroutine.
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.run(interval)
}

func (m *StatusMonitor) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.tick()
	for range ticker.C {
		m.tick()
	}
}

func (m *StatusMonitor) tick() {
	m.emitSystemHeartbeat()
	m.checkBrokerStatus()
}

func (m *StatusMonitor) emitSystemHeartbeat() {
	if m.eventManager == nil {
		return
	}
	m.eventManager.Emit(events.SystemStatusChanged, "status_monitor", map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (m *StatusMonitor) checkBrokerStatus() {
	if m.brokerAPI == nil {
		return
	}
	type connectChecker interface {
		IsConnected() bool
	}
	checker, ok := m.brokerAPI.(connectChecker)
	if !ok {
		return
	}

	connected := checker.IsConnected()
	if m.haveBaseline && connected == m.lastConnected {
		return
	}
	m.lastConnected = connected
	m.haveBaseline = true

	if m.eventManager != nil {
		m.eventManager.Emit(events.TradernetStatusChanged, "status_monitor", map[string]interface{}{
			"connected": connected,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
