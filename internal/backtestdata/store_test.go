package backtestdata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/domain"
)

type fakeSecurities struct {
	bySymbol map[string]domain.Security
}

func (f *fakeSecurities) Get(symbol string) (domain.Security, error) {
	s, ok := f.bySymbol[symbol]
	if !ok {
		return domain.Security{}, sql.ErrNoRows
	}
	return s, nil
}

func (f *fakeSecurities) ListActive() ([]domain.Security, error) {
	var out []domain.Security
	for _, s := range f.bySymbol {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeBars struct {
	bars map[string][]domain.PriceBar
}

func (f *fakeBars) LatestBefore(symbol string, asOf time.Time) (domain.PriceBar, error) {
	var best *domain.PriceBar
	for i, b := range f.bars[symbol] {
		if !b.Date.After(asOf) && (best == nil || b.Date.After(best.Date)) {
			best = &f.bars[symbol][i]
		}
	}
	if best == nil {
		return domain.PriceBar{}, sql.ErrNoRows
	}
	return *best, nil
}

func (f *fakeBars) ListRange(symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	var out []domain.PriceBar
	for _, b := range f.bars[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeFX struct {
	rates map[domain.Currency]domain.FXRate
}

func (f *fakeFX) LatestBefore(ccy domain.Currency, asOf time.Time) (domain.FXRate, error) {
	rate, ok := f.rates[ccy]
	if !ok {
		return domain.FXRate{}, sql.ErrNoRows
	}
	return rate, nil
}

func TestUniverse_ExistingUniverse(t *testing.T) {
	securities := &fakeSecurities{bySymbol: map[string]domain.Security{
		"AAA": {Symbol: "AAA", Currency: domain.EUR, Active: true, Countries: []string{"US"}},
		"BBB": {Symbol: "BBB", Currency: domain.EUR, Active: false},
	}}
	u := NewUniverse(securities, nil, nil, nil, zerolog.Nop())

	entries, err := u.ExistingUniverse(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AAA", entries[0].Symbol)
}

func TestUniverse_Lookup_SkipsUnknownSymbols(t *testing.T) {
	securities := &fakeSecurities{bySymbol: map[string]domain.Security{
		"AAA": {Symbol: "AAA", Currency: domain.EUR, Active: true},
	}}
	u := NewUniverse(securities, nil, nil, nil, zerolog.Nop())

	entries, err := u.Lookup(context.Background(), []string{"AAA", "ZZZ"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AAA", entries[0].Symbol)
}

func TestPriceBars_Price(t *testing.T) {
	bars := &fakeBars{bars: map[string][]domain.PriceBar{
		"AAA": {
			{Symbol: "AAA", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 10},
			{Symbol: "AAA", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Close: 15},
		},
	}}
	p := NewPriceBars(bars, zerolog.Nop())

	price, ok := p.Price(context.Background(), "AAA", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 15.0, price)

	_, ok = p.Price(context.Background(), "ZZZ", time.Now())
	assert.False(t, ok)
}

func TestPriceBars_TrailingReturn(t *testing.T) {
	bars := &fakeBars{bars: map[string][]domain.PriceBar{
		"AAA": {
			{Symbol: "AAA", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 10},
			{Symbol: "AAA", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Close: 12},
		},
	}}
	p := NewPriceBars(bars, zerolog.Nop())

	ret := p.trailingReturn(context.Background(), "AAA", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, 0.2, ret, 0.001)
}

func TestFXRates_RateToEUR(t *testing.T) {
	fx := &fakeFX{rates: map[domain.Currency]domain.FXRate{
		domain.Currency("USD"): {Currency: "USD", RateToEUR: 0.9},
	}}
	rates := NewFXRates(fx, zerolog.Nop())

	assert.Equal(t, 1.0, rates.RateToEUR(context.Background(), domain.EUR, time.Now()))
	assert.Equal(t, 0.9, rates.RateToEUR(context.Background(), "USD", time.Now()))
	assert.Equal(t, 1.0, rates.RateToEUR(context.Background(), "GBP", time.Now()))
}
