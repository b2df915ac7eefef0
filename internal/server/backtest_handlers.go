// Package server provides the HTTP server and routing for Sentinel.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/sentinel/internal/backtest"
)

// BacktestRequest is the JSON body of POST /api/backtest/run, mirroring
// backtest.Config's fields (spec.md §4.10).
type BacktestRequest struct {
	StartDate          string   `json:"start_date"` // YYYY-MM-DD
	EndDate            string   `json:"end_date"`
	InitialCapitalEUR  float64  `json:"initial_capital_eur"`
	MonthlyDepositEUR  float64  `json:"monthly_deposit_eur"`
	RebalanceFrequency string   `json:"rebalance_frequency"` // daily|weekly|monthly
	Symbols            []string `json:"symbols"`
	RandomCount        int      `json:"random_count"`
	CooloffDays        int      `json:"cooloff_days"`
	MinTradeValueEUR   float64  `json:"min_trade_value_eur"`
}

// handleBacktestRun handles POST /api/backtest/run: runs one backtest and
// streams its progress/result/error events over SSE (spec.md §6), closing
// the connection once the run finishes or the client disconnects.
func (s *Server) handleBacktestRun(w http.ResponseWriter, r *http.Request) {
	if s.backtestFactory == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("backtesting not configured"))
		return
	}

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	runner, err := s.backtestFactory(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := runner.Run(r.Context())
	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			s.writeBacktestEvent(w, flusher, event)
		}
	}
}

func (s *Server) writeBacktestEvent(w http.ResponseWriter, flusher http.Flusher, event backtest.Event) {
	switch {
	case event.Err != nil:
		s.writeSSE(w, flusher, "error", map[string]string{"message": event.Err.Error()})
	case event.Result != nil:
		s.writeSSE(w, flusher, "result", event.Result)
	case event.Progress != nil:
		s.writeSSE(w, flusher, "progress", event.Progress)
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, flusher http.Flusher, eventName string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal backtest SSE payload")
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventName)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// ParseBacktestConfig turns a BacktestRequest into a backtest.Config,
// applying backtest.DefaultConfig's defaults for anything the request left
// at its zero value. Exported so a BacktestFactory built outside this
// package (cmd/server) can reuse the same request parsing the HTTP handler
// does, instead of duplicating it.
func ParseBacktestConfig(req BacktestRequest) (backtest.Config, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("invalid end_date: %w", err)
	}

	cfg := backtest.DefaultConfig(start, end)
	if req.InitialCapitalEUR > 0 {
		cfg.InitialCapitalEUR = req.InitialCapitalEUR
	}
	cfg.MonthlyDepositEUR = req.MonthlyDepositEUR
	if req.RebalanceFrequency != "" {
		cfg.RebalanceFrequency = backtest.RebalanceFrequency(req.RebalanceFrequency)
	}
	if req.CooloffDays > 0 {
		cfg.CooloffDays = req.CooloffDays
	}
	cfg.MinTradeValueEUR = req.MinTradeValueEUR

	switch {
	case len(req.Symbols) > 0:
		cfg.UniverseMode = backtest.UniverseExplicit
		cfg.Symbols = req.Symbols
	case req.RandomCount > 0:
		cfg.UniverseMode = backtest.UniverseRandomSample
		cfg.RandomCount = req.RandomCount
	}

	return cfg, nil
}
