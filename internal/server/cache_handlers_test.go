package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/store"
)

type fakeCacheRepo struct {
	stats   store.CacheStats
	statErr error
	cleared int64
	clrErr  error
}

func (f *fakeCacheRepo) Stats(now time.Time) (store.CacheStats, error) { return f.stats, f.statErr }
func (f *fakeCacheRepo) Clear() (int64, error)                        { return f.cleared, f.clrErr }

func TestHandleCacheStats(t *testing.T) {
	s := newTestServer()
	s.cache = &fakeCacheRepo{stats: store.CacheStats{Entries: 3, ExpiredNow: 1}}

	req := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	rec := httptest.NewRecorder()
	s.handleCacheStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["entries"])
	assert.Equal(t, float64(1), body["expired_now"])
}

func TestHandleCacheStats_Error(t *testing.T) {
	s := newTestServer()
	s.cache = &fakeCacheRepo{statErr: errors.New("db closed")}

	req := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	rec := httptest.NewRecorder()
	s.handleCacheStats(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleCacheClear(t *testing.T) {
	s := newTestServer()
	s.cache = &fakeCacheRepo{cleared: 5}

	req := httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil)
	rec := httptest.NewRecorder()
	s.handleCacheClear(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["cleared"])
}
