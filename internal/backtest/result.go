package backtest

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Snapshot is one simulated day's portfolio state, grounded on
// backtester.py's PortfolioSnapshot dataclass.
type Snapshot struct {
	Date            time.Time
	TotalValueEUR   float64
	CashEUR         float64
	PositionsValueEUR float64
	Positions       map[string]SnapshotPosition
}

// SnapshotPosition is one symbol's contribution to a Snapshot.
type SnapshotPosition struct {
	Quantity float64
	Price    float64
	ValueEUR float64
}

// SimulatedTrade is one trade executed during a simulation, grounded on
// backtester.py's SimulatedTrade dataclass.
type SimulatedTrade struct {
	Date     time.Time
	Symbol   string
	Action   string
	Quantity float64
	Price    float64
	ValueEUR float64
}

// SecurityPerformance is one symbol's contribution to total return,
// grounded on backtester.py's SecurityPerformance dataclass.
type SecurityPerformance struct {
	Symbol        string
	Name          string
	TotalInvested float64
	TotalSold     float64
	FinalValue    float64
	TotalReturn   float64
	ReturnPct     float64
	NumBuys       int
	NumSells      int
}

// Result is a completed backtest run's outcome, grounded on backtester.py's
// BacktestResult dataclass.
type Result struct {
	Config              Config
	Snapshots           []Snapshot
	Trades              []SimulatedTrade
	InitialValueEUR     float64
	FinalValueEUR       float64
	TotalDepositsEUR    float64
	TotalReturnEUR      float64
	TotalReturnPct      float64
	CAGRPct             float64
	MaxDrawdownPct      float64
	SharpeRatio         float64
	SecurityPerformance []SecurityPerformance
}

// maxDrawdown returns the largest peak-to-trough fractional decline across
// a value series, grounded on backtester.py's _calculate_max_drawdown.
func maxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	var maxDD float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio annualizes a daily-return series' mean/stdev, grounded on
// backtester.py's _calculate_sharpe (252 trading days/year, no risk-free
// rate subtracted).
func sharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := stat.Mean(returns, nil)
	vol := stat.StdDev(returns, nil)
	if vol <= 1e-12 {
		return 0
	}
	return (mean / vol) * math.Sqrt(252)
}

// dailyReturns converts a value series into period-over-period fractional
// returns, one shorter than values.
func dailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	return returns
}

// computeResult derives every summary metric from a completed run's
// snapshots and per-security trade tracking, grounded on backtester.py's
// Backtester._calculate_results.
func computeResult(cfg Config, snapshots []Snapshot, trades []SimulatedTrade, totalDeposits float64, tracking map[string]*trackingEntry) Result {
	if len(snapshots) == 0 {
		return Result{
			Config:           cfg,
			InitialValueEUR:  cfg.InitialCapitalEUR,
			FinalValueEUR:    cfg.InitialCapitalEUR,
			TotalDepositsEUR: totalDeposits,
		}
	}

	initial := snapshots[0].TotalValueEUR
	final := snapshots[len(snapshots)-1].TotalValueEUR

	values := make([]float64, len(snapshots))
	for i, s := range snapshots {
		values[i] = s.TotalValueEUR
	}

	totalReturn := final - totalDeposits
	var totalReturnPct float64
	if totalDeposits > 0 {
		totalReturnPct = (totalReturn / totalDeposits) * 100
	}

	years := cfg.EndDate.Sub(cfg.StartDate).Hours() / 24 / 365.25
	var cagr float64
	if years > 0 && totalDeposits > 0 && final > 0 {
		cagr = (math.Pow(final/totalDeposits, 1/years) - 1) * 100
	}

	maxDD := maxDrawdown(values) * 100
	sharpe := sharpeRatio(dailyReturns(values))

	lastPositions := snapshots[len(snapshots)-1].Positions
	performance := make([]SecurityPerformance, 0, len(tracking))
	for symbol, t := range tracking {
		finalValue := lastPositions[symbol].ValueEUR
		totalReturnSec := finalValue + t.TotalSold - t.TotalInvested
		var returnPct float64
		if t.TotalInvested > 0 {
			returnPct = totalReturnSec / t.TotalInvested * 100
		}
		performance = append(performance, SecurityPerformance{
			Symbol:        symbol,
			Name:          t.Name,
			TotalInvested: t.TotalInvested,
			TotalSold:     t.TotalSold,
			FinalValue:    finalValue,
			TotalReturn:   totalReturnSec,
			ReturnPct:     returnPct,
			NumBuys:       t.NumBuys,
			NumSells:      t.NumSells,
		})
	}
	sort.SliceStable(performance, func(i, j int) bool { return performance[i].TotalReturn > performance[j].TotalReturn })

	return Result{
		Config:              cfg,
		Snapshots:           snapshots,
		Trades:              trades,
		InitialValueEUR:     initial,
		FinalValueEUR:       final,
		TotalDepositsEUR:    totalDeposits,
		TotalReturnEUR:      totalReturn,
		TotalReturnPct:      totalReturnPct,
		CAGRPct:             cagr,
		MaxDrawdownPct:      maxDD,
		SharpeRatio:         sharpe,
		SecurityPerformance: performance,
	}
}
