// Package server provides the HTTP server and routing for Sentinel.
package server

import (
	"net/http"
	"time"
)

// handleCacheStats handles GET /api/cache/stats: the size and staleness of
// the recommendation cache (spec.md §6).
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"entries": 0})
		return
	}

	stats, err := s.cache.Stats(time.Now())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	response := map[string]interface{}{
		"entries":     stats.Entries,
		"expired_now": stats.ExpiredNow,
	}
	if stats.OldestEntry != nil {
		response["oldest_entry"] = stats.OldestEntry.Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleCacheClear handles POST /api/cache/clear: evicts every
// recommendation-cache entry regardless of expiry.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": 0})
		return
	}

	cleared, err := s.cache.Clear()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": cleared})
}
