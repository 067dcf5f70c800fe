package app

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// PerformanceStats is the per-wallet performance summary persisted under
// processed/wallet_metrics/ on every run. Metrics that need more history
// than the wallet has (volatility of one point, ROI over an empty window,
// drawdown from a non-positive peak) are nil, never coerced to zero.
type PerformanceStats struct {
	Wallet            string
	FirstTransaction  time.Time
	LastTransaction   time.Time
	TotalTransactions int
	ActiveDays        int
	CurrentBalanceBTC float64

	BuyCount        int
	SellCount       int
	TotalBuyVolume  float64
	TotalSellVolume float64
	AvgBuySize      float64
	AvgSellSize     float64

	// RealizedPnLUSD is the signed sum of every trade's USD value: inflows
	// count positive, outflows negative.
	RealizedPnLUSD float64

	// PortfolioVolatilityPct is the coefficient of variation of the
	// portfolio's USD value across events, in percent.
	PortfolioVolatilityPct *float64

	// MaxDrawdownPct is the largest peak-to-trough decline of the
	// portfolio's USD value, in percent, as a positive number.
	MaxDrawdownPct *float64

	// Windowed ROI relative to the wallet's most recent event: balance
	// change over the trailing 30- and 90-day windows.
	ROILastMonthPct   *float64
	ROILast3MonthsPct *float64
}

// ComputeStats derives the performance summary from a wallet's full event
// history. Events must be in timestamp order, as produced by the Processor.
func (m *MetricsEngine) ComputeStats(wallet string, events []TransactionEvent) (*PerformanceStats, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	first := events[0]
	last := events[len(events)-1]

	stats := &PerformanceStats{
		Wallet:            wallet,
		FirstTransaction:  first.Timestamp,
		LastTransaction:   last.Timestamp,
		TotalTransactions: len(events),
		ActiveDays:        int(last.Timestamp.Sub(first.Timestamp).Hours() / 24),
		CurrentBalanceBTC: last.BalanceAfterBTC,
	}

	for _, ev := range events {
		size := math.Abs(ev.AmountBTC)
		if ev.Type == TypeBuy {
			stats.BuyCount++
			stats.TotalBuyVolume += size
			stats.RealizedPnLUSD += ev.USDValue
		} else {
			stats.SellCount++
			stats.TotalSellVolume += size
			stats.RealizedPnLUSD -= ev.USDValue
		}
	}
	if stats.BuyCount > 0 {
		stats.AvgBuySize = stats.TotalBuyVolume / float64(stats.BuyCount)
	}
	if stats.SellCount > 0 {
		stats.AvgSellSize = stats.TotalSellVolume / float64(stats.SellCount)
	}

	values := portfolioValues(events)
	stats.PortfolioVolatilityPct = volatilityPct(values)
	stats.MaxDrawdownPct = maxDrawdownPct(values)

	stats.ROILastMonthPct = windowedROIPct(events, last.Timestamp.Add(-30*24*time.Hour))
	stats.ROILast3MonthsPct = windowedROIPct(events, last.Timestamp.Add(-90*24*time.Hour))

	m.logger.Debug("computed wallet performance stats",
		zap.String("wallet", shortID(wallet)),
		zap.Int("transactions", stats.TotalTransactions),
		zap.Float64("realizedPnlUsd", stats.RealizedPnLUSD),
	)
	return stats, nil
}

// portfolioValues is the wallet's USD value after each event. The event's
// trade price is recovered from its USD value, so no resolver lookup can
// fail here.
func portfolioValues(events []TransactionEvent) []float64 {
	values := make([]float64, 0, len(events))
	for _, ev := range events {
		price := ev.USDValue / math.Abs(ev.AmountBTC)
		values = append(values, ev.BalanceAfterBTC*price)
	}
	return values
}

// volatilityPct is the sample coefficient of variation in percent. Needs at
// least two points and a positive mean.
func volatilityPct(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean <= 0 {
		return nil
	}

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)

	cv := math.Sqrt(variance) / mean * 100
	return &cv
}

// maxDrawdownPct is the deepest decline from a running peak, in percent.
func maxDrawdownPct(values []float64) *float64 {
	peak := 0.0
	worst := 0.0
	seenPeak := false
	for _, v := range values {
		if v > peak {
			peak = v
			seenPeak = true
		}
		if !seenPeak || peak <= 0 {
			continue
		}
		dd := (peak - v) / peak * 100
		if dd > worst {
			worst = dd
		}
	}
	if !seenPeak {
		return nil
	}
	return &worst
}

// windowedROIPct is the balance change between the first and last event at
// or after the cutoff, in percent. Nil when the window's starting balance
// is not positive.
func windowedROIPct(events []TransactionEvent, cutoff time.Time) *float64 {
	var window []TransactionEvent
	for _, ev := range events {
		if !ev.Timestamp.Before(cutoff) {
			window = append(window, ev)
		}
	}
	if len(window) == 0 {
		return nil
	}

	start := window[0].BalanceAfterBTC
	if start <= 0 {
		return nil
	}
	roi := (window[len(window)-1].BalanceAfterBTC - start) / start * 100
	return &roi
}
