package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/broker"
)

// fakeBroker implements broker.Broker, panicking on any method a test
// doesn't explicitly set an expectation for.
type fakeBroker struct {
	broker.Broker
	marketStatus    broker.MarketStatus
	marketStatusErr error
	connected       bool
}

func (f *fakeBroker) GetMarketStatus(ctx context.Context, marketID string) (broker.MarketStatus, error) {
	return f.marketStatus, f.marketStatusErr
}

func (f *fakeBroker) IsConnected() bool { return f.connected }

func TestHandleMarketStatus(t *testing.T) {
	s := newTestServer()
	s.brokerAPI = &fakeBroker{marketStatus: broker.MarketStatus{MarketID: "XNAS", Open: true}}

	req := httptest.NewRequest(http.MethodGet, "/api/market/status?market_id=XNAS", nil)
	rec := httptest.NewRecorder()
	s.handleMarketStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body broker.MarketStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Open)
}

func TestHandleMarketStatus_MissingMarketID(t *testing.T) {
	s := newTestServer()
	s.brokerAPI = &fakeBroker{}

	req := httptest.NewRequest(http.MethodGet, "/api/market/status", nil)
	rec := httptest.NewRecorder()
	s.handleMarketStatus(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMarketStatus_BrokerError(t *testing.T) {
	s := newTestServer()
	s.brokerAPI = &fakeBroker{marketStatusErr: errors.New("broker unreachable")}

	req := httptest.NewRequest(http.MethodGet, "/api/market/status?market_id=XNAS", nil)
	rec := httptest.NewRecorder()
	s.handleMarketStatus(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
