// Package server provides the HTTP server and routing for Sentinel.
package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"service": "sentinel",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleVersion reports the running build identifier and trading mode.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version": Version,
		"service": "sentinel",
	}
	if s.cfg != nil {
		response["trading_mode"] = s.cfg.TradingMode
	}
	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}
