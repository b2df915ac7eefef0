// Package server provides the HTTP server and routing for Sentinel.
package server

import (
	"net/http"

	"github.com/aristath/sentinel/internal/domain"
)

// handleCategories handles GET /api/categories?kind=geography|industry,
// listing the configured allocation targets for one tag dimension
// (spec.md §3, §6). An unrecognized or missing kind defaults to geography.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if s.categories == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"categories": []domain.AllocationTarget{}})
		return
	}

	kind := domain.AllocationTargetKind(r.URL.Query().Get("kind"))
	if kind != domain.TargetGeography && kind != domain.TargetIndustry {
		kind = domain.TargetGeography
	}

	targets, err := s.categories.ListByKind(kind)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":       kind,
		"categories": targets,
	})
}
