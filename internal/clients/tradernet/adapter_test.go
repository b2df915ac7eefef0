package tradernet

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapter(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	adapter := NewAdapter("test-key", "test-secret", log)

	assert.NotNil(t, adapter)
	assert.NotNil(t, adapter.client)
}

func TestAdapter_GetPortfolio(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	mockSDK := &mockSDKClient{
		accountSummaryResult: map[string]interface{}{
			"result": map[string]interface{}{
				"ps": map[string]interface{}{
					"pos": []interface{}{
						map[string]interface{}{
							"i": "AAPL", "q": 10.0, "bal_price_a": 150.0, "mkt_price": 155.0,
							"profit_close": 50.0, "curr": "USD",
						},
					},
					"acc": []interface{}{
						map[string]interface{}{"curr": "EUR", "s": 1000.0},
					},
				},
			},
		},
	}

	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	portfolio, err := adapter.GetPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, portfolio.Positions, 1)
	assert.Equal(t, "AAPL", portfolio.Positions[0].Symbol)
	assert.Equal(t, 10.0, portfolio.Positions[0].Quantity)
	assert.Equal(t, 1000.0, portfolio.Cash["EUR"])
}

func TestAdapter_GetPortfolio_SDKError(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{accountSummaryError: errors.New("sdk error")}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	_, err := adapter.GetPortfolio(context.Background())
	assert.Error(t, err)
}

func TestAdapter_Buy(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{buyResult: map[string]interface{}{"id": "order-123", "price": 150.5}}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	result, err := adapter.Buy(context.Background(), "AAPL.US", 5.0, 155.0)
	require.NoError(t, err)
	assert.Equal(t, "order-123", result.OrderID)
	assert.Equal(t, 155.0, mockSDK.lastLimitPrice)
}

func TestAdapter_Sell(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{sellResult: map[string]interface{}{"id": "order-456", "price": 320.75}}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	result, err := adapter.Sell(context.Background(), "MSFT.US", 3.0, 315.0)
	require.NoError(t, err)
	assert.Equal(t, "order-456", result.OrderID)
}

// Asian exchange symbols require a non-zero limit price; a market order
// (price 0) must be rejected before it ever reaches the SDK.
func TestAdapter_Buy_AsianExchangeRequiresPrice(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{buyResult: map[string]interface{}{"id": "should-not-be-used"}}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	_, err := adapter.Buy(context.Background(), "7203.AS", 10.0, 0.0)
	assert.Error(t, err)
}

func TestAdapter_GetQuote(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{
		getQuotesResult: map[string]interface{}{
			"result": map[string]interface{}{
				"GOOGL": map[string]interface{}{"p": 140.50, "change": 2.5, "change_pct": 1.8},
			},
		},
	}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	quote, err := adapter.GetQuote(context.Background(), "GOOGL")
	require.NoError(t, err)
	assert.Equal(t, "GOOGL", quote.Symbol)
	assert.Equal(t, 140.50, quote.Price)
}

func TestAdapter_GetQuotes_Empty(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	adapter := NewAdapterWithClient(NewClientWithSDK(&mockSDKClient{}, log), log)

	quotes, err := adapter.GetQuotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestAdapter_GetTradesHistory(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{
		getTradesHistoryResult: map[string]interface{}{
			"trades": map[string]interface{}{
				"trade": []interface{}{
					map[string]interface{}{"order_id": "trade-1", "instr_nm": "TSLA", "type": "1", "q": 2.0, "p": "250.0", "date": "2025-01-08T10:00:00Z"},
				},
			},
		},
	}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	rows, err := adapter.GetTradesHistory(context.Background(), "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TSLA", rows[0].Symbol)
	assert.Equal(t, 1, rows[0].Side)
	assert.Equal(t, 250.0, rows[0].Price)
}

func TestAdapter_GetCashFlows_FiltersByDate(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{
		getClientCpsHistoryResult: map[string]interface{}{
			"cps": []interface{}{
				map[string]interface{}{"id": "cf-1", "type": "deposit", "amount": "1000.0", "currency": "EUR", "date": "2025-01-08"},
				map[string]interface{}{"id": "cf-2", "type": "deposit", "amount": "500.0", "currency": "EUR", "date": "2025-03-01"},
			},
		},
	}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	rows, err := adapter.GetCashFlows(context.Background(), "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "cf-1", rows[0].ContentHash)
}

func TestAdapter_GetMarketStatus(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{getMarketStatusResult: map[string]interface{}{"status": "open"}}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	status, err := adapter.GetMarketStatus(context.Background(), "NYSE")
	require.NoError(t, err)
	assert.True(t, status.Open)
	assert.Equal(t, "NYSE", status.MarketID)
}

func TestAdapter_GetAvailableSecurities(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	mockSDK := &mockSDKClient{
		symbolsResult: map[string]interface{}{
			"symbols": []interface{}{
				map[string]interface{}{"symbol": "AAPL.US", "name": "Apple Inc.", "currency": "USD"},
			},
		},
	}
	adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)

	securities, err := adapter.GetAvailableSecurities(context.Background())
	require.NoError(t, err)
	require.Len(t, securities, 1)
	assert.Equal(t, "AAPL.US", securities[0].Symbol)
}

func TestAdapter_IsConnected(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	t.Run("connected", func(t *testing.T) {
		mockSDK := &mockSDKClient{userInfoResult: map[string]interface{}{"result": map[string]interface{}{"id": 123}}}
		adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)
		assert.True(t, adapter.IsConnected())
	})

	t.Run("disconnected", func(t *testing.T) {
		mockSDK := &mockSDKClient{userInfoError: errors.New("connection error")}
		adapter := NewAdapterWithClient(NewClientWithSDK(mockSDK, log), log)
		assert.False(t, adapter.IsConnected())
	})
}

func TestAdapter_SetCredentials(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	adapter := NewAdapter("old-key", "old-secret", log)

	adapter.SetCredentials("new-key", "new-secret")
}
