package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSystemStatus(t *testing.T) {
	s := newTestServer()
	s.brokerAPI = &fakeBroker{connected: true}

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()
	s.handleSystemStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "cpu_percent")
	assert.Contains(t, body, "ram_percent")
	assert.Equal(t, true, body["broker_connected"])
}
