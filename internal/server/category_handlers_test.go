package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/domain"
)

type fakeCategoryRepo struct {
	byKind map[domain.AllocationTargetKind][]domain.AllocationTarget
}

func (f *fakeCategoryRepo) ListByKind(kind domain.AllocationTargetKind) ([]domain.AllocationTarget, error) {
	return f.byKind[kind], nil
}

func TestHandleCategories_DefaultsToGeography(t *testing.T) {
	s := newTestServer()
	s.categories = &fakeCategoryRepo{byKind: map[domain.AllocationTargetKind][]domain.AllocationTarget{
		domain.TargetGeography: {{Kind: domain.TargetGeography, Name: "US", Weight: 0.6}},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	rec := httptest.NewRecorder()
	s.handleCategories(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(domain.TargetGeography), body["kind"])
	assert.Len(t, body["categories"], 1)
}

func TestHandleCategories_Industry(t *testing.T) {
	s := newTestServer()
	s.categories = &fakeCategoryRepo{byKind: map[domain.AllocationTargetKind][]domain.AllocationTarget{
		domain.TargetIndustry: {{Kind: domain.TargetIndustry, Name: "Tech", Weight: 0.3}},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/categories?kind=industry", nil)
	rec := httptest.NewRecorder()
	s.handleCategories(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(domain.TargetIndustry), body["kind"])
}
