// Package server provides the HTTP server and routing for Sentinel.
package server

import (
	"errors"
	"net/http"
)

// handleMarketStatus handles GET /api/market/status?market_id=XNAS, proxying
// the broker adapter's get_market_status operation (spec.md §6).
func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	if s.brokerAPI == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("broker not configured"))
		return
	}

	marketID := r.URL.Query().Get("market_id")
	if marketID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("market_id is required"))
		return
	}

	status, err := s.brokerAPI.GetMarketStatus(r.Context(), marketID)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusOK, status)
}
