package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tradeEvent builds an event priced at a flat 50k USD/BTC.
func tradeEvent(txID string, ts time.Time, amount, after float64) TransactionEvent {
	typ := TypeBuy
	if amount < 0 {
		typ = TypeSell
	}
	abs := amount
	if abs < 0 {
		abs = -abs
	}
	return TransactionEvent{
		TxID:            txID,
		Timestamp:       ts,
		AmountBTC:       amount,
		Type:            typ,
		BalanceAfterBTC: after,
		USDValue:        abs * 50000,
	}
}

func TestComputeStats(t *testing.T) {
	m := NewMetricsEngine(nil, flatPrices(50000), DefaultMetricsParams())
	first := day(2024, 1, 1)

	events := []TransactionEvent{
		tradeEvent("a", first, 2.0, 2.0),
		tradeEvent("b", first.AddDate(0, 0, 5), -0.3, 1.7),
		tradeEvent("c", first.AddDate(0, 0, 10), 0.8, 2.5),
		tradeEvent("d", first.AddDate(0, 0, 20), -1.0, 1.5),
	}

	stats, err := m.ComputeStats("w1", events)
	require.NoError(t, err)

	assert.Equal(t, "w1", stats.Wallet)
	assert.Equal(t, first, stats.FirstTransaction)
	assert.Equal(t, first.AddDate(0, 0, 20), stats.LastTransaction)
	assert.Equal(t, 4, stats.TotalTransactions)
	assert.Equal(t, 20, stats.ActiveDays)
	assert.InDelta(t, 1.5, stats.CurrentBalanceBTC, 1e-9)

	assert.Equal(t, 2, stats.BuyCount)
	assert.Equal(t, 2, stats.SellCount)
	assert.InDelta(t, 2.8, stats.TotalBuyVolume, 1e-9)
	assert.InDelta(t, 1.3, stats.TotalSellVolume, 1e-9)
	assert.InDelta(t, 1.4, stats.AvgBuySize, 1e-9)
	assert.InDelta(t, 0.65, stats.AvgSellSize, 1e-9)

	// Net 1.5 BTC accumulated at a flat 50k.
	assert.InDelta(t, 75000, stats.RealizedPnLUSD, 1e-6)

	// Portfolio values 100k, 85k, 125k, 75k.
	require.NotNil(t, stats.PortfolioVolatilityPct)
	assert.InDelta(t, 22.594, *stats.PortfolioVolatilityPct, 0.001)

	// Deepest decline: 125k peak to 75k trough.
	require.NotNil(t, stats.MaxDrawdownPct)
	assert.InDelta(t, 40.0, *stats.MaxDrawdownPct, 1e-9)
}

func TestComputeStatsWindowedROI(t *testing.T) {
	m := NewMetricsEngine(nil, flatPrices(50000), DefaultMetricsParams())
	first := day(2024, 1, 1)

	events := []TransactionEvent{
		tradeEvent("a", first, 1.0, 1.0),
		tradeEvent("b", first.AddDate(0, 0, 50), 1.0, 2.0),
		tradeEvent("c", first.AddDate(0, 0, 100), 1.0, 3.0),
	}

	stats, err := m.ComputeStats("w1", events)
	require.NoError(t, err)

	// The trailing 30-day window holds only the last event.
	require.NotNil(t, stats.ROILastMonthPct)
	assert.InDelta(t, 0.0, *stats.ROILastMonthPct, 1e-9)

	// The trailing 90-day window starts at the 2.0 balance.
	require.NotNil(t, stats.ROILast3MonthsPct)
	assert.InDelta(t, 50.0, *stats.ROILast3MonthsPct, 1e-9)
}

func TestComputeStatsUndefinedMetricsStayNil(t *testing.T) {
	m := NewMetricsEngine(nil, flatPrices(50000), DefaultMetricsParams())

	// A single event has no spread to measure.
	single := []TransactionEvent{tradeEvent("a", day(2024, 1, 1), 1.0, 1.0)}
	stats, err := m.ComputeStats("w1", single)
	require.NoError(t, err)
	assert.Nil(t, stats.PortfolioVolatilityPct)
	require.NotNil(t, stats.MaxDrawdownPct)
	assert.Zero(t, *stats.MaxDrawdownPct)

	// A window starting from a non-positive balance has no ROI base.
	broken := []TransactionEvent{
		tradeEvent("a", day(2024, 1, 1), -1.0, -1.0),
		tradeEvent("b", day(2024, 1, 2), 0.5, -0.5),
	}
	stats, err = m.ComputeStats("w1", broken)
	require.NoError(t, err)
	assert.Nil(t, stats.ROILastMonthPct)
	assert.Nil(t, stats.ROILast3MonthsPct)
}

func TestComputeStatsNoEvents(t *testing.T) {
	m := NewMetricsEngine(nil, flatPrices(50000), DefaultMetricsParams())

	_, err := m.ComputeStats("w1", nil)
	require.ErrorIs(t, err, ErrNoEvents)
}
