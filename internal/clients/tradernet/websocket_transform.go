package tradernet

import "time"

// MarketStatusData is the richer, WebSocket-sourced market status record
// cached by MarketStatusWebSocket (distinct from Client.GetMarketStatus's
// plain open/closed bool, which polls the REST endpoint instead).
type MarketStatusData struct {
	Name      string
	Code      string
	Status    string // "open", "closed", "pre_open", "post_close"
	OpenTime  string
	CloseTime string
	Date      string
	UpdatedAt time.Time
}

// wsMarketEntry is the wire shape of one market inside a Tradernet
// WebSocket "markets" push.
type wsMarketEntry struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	Status    string `json:"status"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	Date      string `json:"date"`
}

// WSMarketData is the payload of a Tradernet WebSocket "markets" push:
// ["markets", {"markets": {...}, "timestamp": "..."}].
type WSMarketData struct {
	Markets   map[string]wsMarketEntry `json:"markets"`
	Timestamp string                   `json:"timestamp"`
}

// TransformWSMarkets converts the wire shape of a markets push into the
// cache record kept by MarketStatusWebSocket.
func TransformWSMarkets(markets map[string]wsMarketEntry) (map[string]MarketStatusData, error) {
	now := time.Now()
	out := make(map[string]MarketStatusData, len(markets))
	for code, m := range markets {
		out[code] = MarketStatusData{
			Name:      m.Name,
			Code:      m.Code,
			Status:    m.Status,
			OpenTime:  m.OpenTime,
			CloseTime: m.CloseTime,
			Date:      m.Date,
			UpdatedAt: now,
		}
	}
	return out, nil
}
