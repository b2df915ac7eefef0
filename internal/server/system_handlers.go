// Package server provides the HTTP server and routing for Sentinel.
package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var processStartedAt = time.Now()

// handleSystemStatus handles GET /api/system/status: host resource usage
// and broker connectivity, the ambient operational check the teacher's
// dashboard used to drive its LED display from.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := s.systemStats()

	response := map[string]interface{}{
		"cpu_percent": cpuPct,
		"ram_percent": ramPct,
		"uptime_sec":  time.Since(processStartedAt).Seconds(),
	}
	if s.brokerAPI != nil {
		response["broker_connected"] = s.brokerConnected()
	}

	s.writeJSON(w, http.StatusOK, response)
}

// brokerConnected reports whether the broker adapter has an open connection,
// when it exposes one (the research/backtest no-op adapters don't).
func (s *Server) brokerConnected() bool {
	type connectChecker interface {
		IsConnected() bool
	}
	if checker, ok := s.brokerAPI.(connectChecker); ok {
		return checker.IsConnected()
	}
	return true
}

// systemStats samples CPU and RAM usage over a short window so the call
// stays cheap enough to serve from a request handler.
func (s *Server) systemStats() (cpuPercent, ramPercent float64) {
	cpuPct, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample cpu usage")
		cpuPct = []float64{0}
	}
	if len(cpuPct) > 0 {
		cpuPercent = cpuPct[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample memory usage")
		return cpuPercent, 0
	}
	return cpuPercent, memStat.UsedPercent
}
