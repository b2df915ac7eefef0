// Package currency implements the multi-tier currency converter described
// in spec.md §4.1: a primary HTTP rate API, a broker cross-rate fallback, an
// optional Yahoo fallback, a DB cache, and a hardcoded last resort, all
// pivoting through EUR.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RateAPIClient fetches live rates from exchangerate-api.com, the fastest,
// authentication-free primary source.
type RateAPIClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewRateAPIClient builds a client with a conservative request timeout;
// callers treat every error as "try the next tier" rather than fatal.
func NewRateAPIClient(log zerolog.Logger) *RateAPIClient {
	return &RateAPIClient{
		baseURL: "https://api.exchangerate-api.com/v4/latest",
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "exchangerate-api").Logger(),
	}
}

// GetRate returns the spot rate to convert one unit of from into to.
func (c *RateAPIClient) GetRate(ctx context.Context, from, to string) (float64, error) {
	if from == to {
		return 1.0, nil
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("exchangerate-api returned status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}

	rate, ok := body.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("rate not found for %s->%s", from, to)
	}

	c.log.Debug().Str("from", from).Str("to", to).Float64("rate", rate).Msg("fetched live rate")
	return rate, nil
}
