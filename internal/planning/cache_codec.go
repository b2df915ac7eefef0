package planning

import (
	"encoding/json"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/rebalance"
)

// cachedResult is the JSON-serializable shape of Result, mirroring the
// teacher's `json.dumps([asdict(r) for r in recommendations])` cache
// payload convention from rebalance.py.
type cachedResult struct {
	Recommendations []*recommendationCacheEntry `json:"recommendations"`
	IdealAllocation map[string]float64          `json:"ideal_allocation"`
}

type recommendationCacheEntry struct {
	Symbol            string  `json:"symbol"`
	Action            string  `json:"action"`
	CurrentAllocation float64 `json:"current_allocation"`
	TargetAllocation  float64 `json:"target_allocation"`
	AllocationDelta   float64 `json:"allocation_delta"`
	CurrentValueEUR   float64 `json:"current_value_eur"`
	TargetValueEUR    float64 `json:"target_value_eur"`
	ValueDeltaEUR     float64 `json:"value_delta_eur"`
	Quantity          float64 `json:"quantity"`
	Price             float64 `json:"price"`
	Currency          string  `json:"currency"`
	LotSize           float64 `json:"lot_size"`
	ExpectedReturn    float64 `json:"expected_return"`
	Priority          float64 `json:"priority"`
	Reason            string  `json:"reason"`
}

// encodeResult serializes a Result for the recommendation cache. Deviations
// are omitted deliberately: they're a reporting convenience recomputed
// cheaply from live state, not part of the cached decision itself.
func encodeResult(r *Result) ([]byte, error) {
	entries := make([]*recommendationCacheEntry, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		entries = append(entries, &recommendationCacheEntry{
			Symbol: rec.Symbol, Action: string(rec.Action),
			CurrentAllocation: rec.CurrentAllocation, TargetAllocation: rec.TargetAllocation,
			AllocationDelta: rec.AllocationDelta, CurrentValueEUR: rec.CurrentValueEUR,
			TargetValueEUR: rec.TargetValueEUR, ValueDeltaEUR: rec.ValueDeltaEUR,
			Quantity: rec.Quantity, Price: rec.Price, Currency: string(rec.Currency),
			LotSize: rec.LotSize, ExpectedReturn: rec.ExpectedReturn,
			Priority: rec.Priority, Reason: rec.Reason,
		})
	}
	return json.Marshal(cachedResult{Recommendations: entries, IdealAllocation: r.IdealAllocation})
}

func decodeResult(data []byte) (*Result, error) {
	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	recs := make([]*rebalance.Recommendation, 0, len(cached.Recommendations))
	for _, e := range cached.Recommendations {
		recs = append(recs, &rebalance.Recommendation{
			Symbol: e.Symbol, Action: domain.TradeSide(e.Action),
			CurrentAllocation: e.CurrentAllocation, TargetAllocation: e.TargetAllocation,
			AllocationDelta: e.AllocationDelta, CurrentValueEUR: e.CurrentValueEUR,
			TargetValueEUR: e.TargetValueEUR, ValueDeltaEUR: e.ValueDeltaEUR,
			Quantity: e.Quantity, Price: e.Price, Currency: domain.Currency(e.Currency),
			LotSize: e.LotSize, ExpectedReturn: e.ExpectedReturn,
			Priority: e.Priority, Reason: e.Reason,
		})
	}

	return &Result{Recommendations: recs, IdealAllocation: cached.IdealAllocation}, nil
}
