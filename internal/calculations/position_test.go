package calculations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/sentinel/internal/domain"
)

func TestAllocationPct(t *testing.T) {
	cases := []struct {
		name              string
		valueEUR, totalEUR float64
		want              float64
	}{
		{"normal split", 250, 1000, 0.25},
		{"zero total", 250, 0, 0},
		{"negative total", 250, -10, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, AllocationPct(c.valueEUR, c.totalEUR))
		})
	}
}

func TestPnLPercent_ZeroAvgCostYieldsZero(t *testing.T) {
	assert.Equal(t, 0.0, PnLPercent(150, 0))
}

func TestPnLPercent_Gain(t *testing.T) {
	assert.InDelta(t, 0.30, PnLPercent(130, 100), 0.0001)
}

func TestPnLAbsolute(t *testing.T) {
	assert.InDelta(t, 300.0, PnLAbsolute(130, 100, 10), 0.0001)
}

type fakeConverter struct {
	rates map[domain.Currency]float64
}

func (f fakeConverter) ToEUR(ctx context.Context, amount float64, ccy domain.Currency) float64 {
	return amount * f.rates[ccy]
}

func TestPortfolioValuesFromPositions(t *testing.T) {
	conv := fakeConverter{rates: map[domain.Currency]float64{domain.EUR: 1.0, domain.USD: 0.9}}
	positions := []domain.Position{
		{Symbol: "AAA", Quantity: 10, CurrentPrice: 100, Currency: domain.EUR},
		{Symbol: "BBB", Quantity: 5, CurrentPrice: 200, Currency: domain.USD},
	}

	got := PortfolioValuesFromPositions(context.Background(), conv, positions)

	assert.InDelta(t, 1000.0, got.ValuesEUR["AAA"], 0.0001)
	assert.InDelta(t, 900.0, got.ValuesEUR["BBB"], 0.0001)
	assert.InDelta(t, 1900.0, got.TotalEUR, 0.0001)
	assert.InDelta(t, 1000.0/1900.0, got.Allocations["AAA"], 0.0001)
}
