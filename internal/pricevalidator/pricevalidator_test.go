package pricevalidator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/sentinel/internal/domain"
)

func TestCheckTradeBlocking_WithinDeviationIsAllowed(t *testing.T) {
	closes := []float64{98, 99, 100, 101, 102}
	blocked, reason := CheckTradeBlocking(103, closes, "AAA")
	assert.False(t, blocked)
	assert.Empty(t, reason)
}

func TestCheckTradeBlocking_SpikeIsFlagged(t *testing.T) {
	closes := []float64{98, 99, 100, 101, 102}
	blocked, reason := CheckTradeBlocking(1000, closes, "AAA")
	assert.True(t, blocked)
	assert.Contains(t, reason, "AAA")
	assert.Contains(t, reason, "anomaly")
}

func TestCheckTradeBlocking_ThinHistoryIsNeverFlagged(t *testing.T) {
	blocked, _ := CheckTradeBlocking(1000, []float64{100, 100}, "AAA")
	assert.False(t, blocked)
}

func TestCheckTradeBlocking_ZeroOrNegativePriceIsNeverFlagged(t *testing.T) {
	closes := []float64{98, 99, 100, 101, 102}
	blocked, _ := CheckTradeBlocking(0, closes, "AAA")
	assert.False(t, blocked)
}

func TestAnomalyFromBars_FiltersNonPositiveClosesBeforeChecking(t *testing.T) {
	now := time.Now()
	bars := []domain.PriceBar{
		{Symbol: "AAA", Date: now.AddDate(0, 0, -6), Close: 100},
		{Symbol: "AAA", Date: now.AddDate(0, 0, -5), Close: 0},
		{Symbol: "AAA", Date: now.AddDate(0, 0, -4), Close: 101},
		{Symbol: "AAA", Date: now.AddDate(0, 0, -3), Close: 99},
		{Symbol: "AAA", Date: now.AddDate(0, 0, -2), Close: 102},
		{Symbol: "AAA", Date: now.AddDate(0, 0, -1), Close: 98},
	}
	blocked, _ := AnomalyFromBars(500, bars, "AAA")
	assert.True(t, blocked)
}
