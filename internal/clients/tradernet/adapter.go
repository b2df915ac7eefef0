package tradernet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/sentinel/internal/broker"
	"github.com/rs/zerolog"
)

// Adapter adapts tradernet.Client to broker.Broker, the abstract outbound
// surface the rest of Sentinel depends on. It owns the Client internally so
// callers never see Tradernet-specific wire types.
type Adapter struct {
	client *Client
	log    zerolog.Logger
}

// NewAdapter creates a Tradernet broker adapter, owning its own Client.
func NewAdapter(apiKey, apiSecret string, log zerolog.Logger) *Adapter {
	return &Adapter{
		client: NewClient(apiKey, apiSecret, log),
		log:    log.With().Str("component", "tradernet_adapter").Logger(),
	}
}

// NewAdapterWithClient wraps an already-constructed Client (used by tests
// with a mock SDKClient injected via NewClientWithSDK).
func NewAdapterWithClient(client *Client, log zerolog.Logger) *Adapter {
	return &Adapter{client: client, log: log.With().Str("component", "tradernet_adapter").Logger()}
}

var _ broker.Broker = (*Adapter)(nil)

func (a *Adapter) GetQuote(ctx context.Context, symbol string) (broker.Quote, error) {
	q, err := a.client.GetQuote(symbol)
	if err != nil {
		return broker.Quote{}, err
	}
	return broker.Quote{Symbol: q.Symbol, Price: q.Price, Change: q.Change, ChangePct: q.ChangePct}, nil
}

func (a *Adapter) GetQuotes(ctx context.Context, symbols []string) (map[string]broker.Quote, error) {
	if len(symbols) == 0 {
		return map[string]broker.Quote{}, nil
	}
	raw, err := a.client.GetQuotesBatch(symbols)
	if err != nil {
		return nil, err
	}
	quotes := make(map[string]broker.Quote, len(raw))
	for symbol, q := range raw {
		quotes[symbol] = broker.Quote{Symbol: q.Symbol, Price: q.Price, Change: q.Change, ChangePct: q.ChangePct}
	}
	return quotes, nil
}

// GetHistoricalPricesBulk fetches years of daily bars per symbol, one
// Tradernet request at a time (the API has no true multi-symbol history
// endpoint). A symbol that fails to fetch is logged and omitted rather than
// failing the whole bulk request, so one delisted or rate-limited symbol
// never blocks price sync for the rest of the universe.
func (a *Adapter) GetHistoricalPricesBulk(ctx context.Context, symbols []string, years int) (map[string][]broker.Bar, error) {
	end := time.Now()
	start := end.AddDate(-years, 0, 0)

	out := make(map[string][]broker.Bar, len(symbols))
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		candles, err := a.client.GetHistoricalPrices(symbol, start, end)
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", symbol).Msg("GetHistoricalPricesBulk: symbol failed, skipping")
			continue
		}
		bars := make([]broker.Bar, 0, len(candles))
		for _, c := range candles {
			bars = append(bars, broker.Bar{Date: c.Date, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume})
		}
		out[symbol] = bars
	}
	return out, nil
}

func (a *Adapter) GetPortfolio(ctx context.Context) (broker.Portfolio, error) {
	positions, err := a.client.GetPortfolio()
	if err != nil {
		return broker.Portfolio{}, err
	}
	balances, err := a.client.GetCashBalances()
	if err != nil {
		return broker.Portfolio{}, err
	}

	result := broker.Portfolio{
		Positions: make([]broker.PortfolioPosition, 0, len(positions)),
		Cash:      make(map[string]float64, len(balances)),
	}
	for _, p := range positions {
		result.Positions = append(result.Positions, broker.PortfolioPosition{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AvgCost:      p.AvgPrice,
			CurrentPrice: p.CurrentPrice,
			Currency:     p.Currency,
		})
	}
	for _, b := range balances {
		result.Cash[b.Currency] = b.Amount
	}
	return result, nil
}

// Buy places a buy order. Asian-market symbols (suffix ".AS") reject
// market orders, so the caller is expected to pass a non-zero price for
// those; other markets accept price 0 as "market".
func (a *Adapter) Buy(ctx context.Context, symbol string, quantity float64, price float64) (broker.OrderResult, error) {
	return a.placeOrder(symbol, OrderSideBuy, quantity, price)
}

func (a *Adapter) Sell(ctx context.Context, symbol string, quantity float64, price float64) (broker.OrderResult, error) {
	return a.placeOrder(symbol, OrderSideSell, quantity, price)
}

func (a *Adapter) placeOrder(symbol, side string, quantity, price float64) (broker.OrderResult, error) {
	if strings.HasSuffix(symbol, ".AS") && price <= 0 {
		return broker.OrderResult{}, fmt.Errorf("tradernet: %s requires a non-zero limit price on the Asian exchange", symbol)
	}
	result, err := a.client.PlaceOrder(symbol, side, quantity, price)
	if err != nil {
		return broker.OrderResult{}, err
	}
	return broker.OrderResult{OrderID: result.OrderID}, nil
}

func (a *Adapter) GetTradesHistory(ctx context.Context, start, end string) ([]broker.TradeHistoryRow, error) {
	trades, err := a.client.GetTradesHistoryRange(start, end)
	if err != nil {
		return nil, err
	}
	rows := make([]broker.TradeHistoryRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, broker.TradeHistoryRow{
			BrokerTradeID: t.OrderID,
			Symbol:        t.Symbol,
			Side:          sideCode(t.Side),
			Quantity:      t.Quantity,
			Price:         t.Price,
			ExecutedAt:    t.ExecutedAt,
		})
	}
	return rows, nil
}

func sideCode(side string) int {
	if side == OrderSideSell {
		return 2
	}
	return 1
}

// GetCashFlows fetches account cash-flow rows and filters them to [start,
// end] client-side, since the underlying GetAllCashFlows call only takes a
// result-count limit, not a date range.
func (a *Adapter) GetCashFlows(ctx context.Context, start, end string) ([]broker.CashFlowRow, error) {
	const fetchLimit = 1000
	flows, err := a.client.GetAllCashFlows(fetchLimit)
	if err != nil {
		return nil, err
	}

	rows := make([]broker.CashFlowRow, 0, len(flows))
	for _, f := range flows {
		date := f.Date
		if date == "" {
			date = f.DT
		}
		if (start != "" && date < start) || (end != "" && date > end) {
			continue
		}
		amount := f.Amount
		if amount == 0 {
			amount = f.SM
		}
		currency := f.Currency
		if currency == "" {
			currency = f.Curr
		}
		rows = append(rows, broker.CashFlowRow{
			ContentHash: f.ID,
			Date:        date,
			Type:        f.Type,
			Amount:      amount,
			Currency:    currency,
			Comment:     f.Description,
		})
	}
	return rows, nil
}

// GetCorporateActions uses the account reception 0 (primary account); start
// and end are accepted for interface symmetry but the underlying endpoint
// returns the full pending-action list, filtered client-side.
func (a *Adapter) GetCorporateActions(ctx context.Context, start, end string) ([]broker.CorporateAction, error) {
	const primaryReception = 0
	actions, err := a.client.GetCorporateActionsList(primaryReception)
	if err != nil {
		return nil, err
	}
	out := make([]broker.CorporateAction, 0, len(actions))
	for _, act := range actions {
		if (start != "" && act.Date < start) || (end != "" && act.Date > end) {
			continue
		}
		out = append(out, broker.CorporateAction{Symbol: act.Symbol, Type: act.Type, Date: act.Date, Value: act.Value})
	}
	return out, nil
}

func (a *Adapter) GetMarketStatus(ctx context.Context, marketID string) (broker.MarketStatus, error) {
	open, err := a.client.GetMarketStatus(marketID)
	if err != nil {
		return broker.MarketStatus{}, err
	}
	return broker.MarketStatus{MarketID: marketID, Open: open}, nil
}

func (a *Adapter) GetAvailableSecurities(ctx context.Context) ([]broker.AvailableSecurity, error) {
	const allExchanges = ""
	securities, err := a.client.GetAvailableSecurities(allExchanges)
	if err != nil {
		return nil, err
	}
	out := make([]broker.AvailableSecurity, 0, len(securities))
	for _, s := range securities {
		out = append(out, broker.AvailableSecurity{Symbol: s.Symbol, Name: s.Name, Currency: s.Currency})
	}
	return out, nil
}

// SetCredentials rotates the API key/secret backing this adapter.
func (a *Adapter) SetCredentials(apiKey, apiSecret string) {
	a.client.SetCredentials(apiKey, apiSecret)
}

// IsConnected reports whether the Tradernet API is currently reachable.
func (a *Adapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Close gracefully shuts down the underlying client.
func (a *Adapter) Close() {
	if a.client != nil {
		a.client.Close()
	}
}
