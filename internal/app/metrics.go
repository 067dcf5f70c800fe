package app

import (
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// daysPerMonth is the fixed day count used when converting event history
// spans to months for trade-frequency metrics.
const daysPerMonth = 30.0

// MetricsParams holds the externally configured thresholds for profile
// computation. The engine never hardcodes these.
type MetricsParams struct {
	NewWalletMaxAge            time.Duration // below this age the wallet is NEW
	RecentWalletMaxAge         time.Duration // below this age (and not NEW) the wallet is RECENT
	ActiveTraderTradesPerMonth float64       // trades/month at or above which ACTIVE_TRADER is set
	HoldingGap                 time.Duration // min gap between the two most recent events for HOLDING
	SignificantSellPct         float64       // fraction of pre-trade balance that makes a sell significant
	DistributionMinSells       int           // significant sells needed for DISTRIBUTION
}

// DefaultMetricsParams returns the stock thresholds.
func DefaultMetricsParams() MetricsParams {
	return MetricsParams{
		NewWalletMaxAge:            30 * 24 * time.Hour,
		RecentWalletMaxAge:         180 * 24 * time.Hour,
		ActiveTraderTradesPerMonth: 10,
		HoldingGap:                 30 * 24 * time.Hour,
		SignificantSellPct:         0.01,
		DistributionMinSells:       3,
	}
}

// ErrNoEvents indicates a metrics computation was requested for a wallet
// with an empty event history.
var ErrNoEvents = errors.New("wallet has no transaction events")

// MetricsEngine derives per-wallet classification and behavioral metrics from
// a processed event sequence. Output depends only on the events, the injected
// now, and the params: recomputing with the same inputs yields an identical
// profile.
type MetricsEngine struct {
	logger *zap.Logger
	prices *PriceResolver
	params MetricsParams
}

// NewMetricsEngine creates a metrics engine with the given thresholds.
func NewMetricsEngine(logger *zap.Logger, prices *PriceResolver, params MetricsParams) *MetricsEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsEngine{logger: logger, prices: prices, params: params}
}

// Compute builds the wallet profile from the full event history. Events must
// be in timestamp order (as produced by the Processor). now is injected so
// runs are deterministic and testable.
//
// Undefined metrics (ROI without a buy entry point, ROI with no resolvable
// price) are reported as warnings with a nil ROI, never coerced to zero.
func (m *MetricsEngine) Compute(wallet string, events []TransactionEvent, now time.Time) (*WalletProfile, []Warning, error) {
	if len(events) == 0 {
		return nil, nil, ErrNoEvents
	}

	first := events[0]
	last := events[len(events)-1]

	profile := &WalletProfile{
		Wallet:    wallet,
		FirstSeen: first.Timestamp,
		Category:  m.categorize(now.Sub(first.Timestamp)),
	}
	profile.TradesPerMonth = tradesPerMonth(events)

	if profile.TradesPerMonth >= m.params.ActiveTraderTradesPerMonth {
		profile.Flags = append(profile.Flags, FlagActiveTrader)
	}
	if m.isHolding(events) {
		profile.Flags = append(profile.Flags, FlagHolding)
	}
	if m.significantSells(events) >= m.params.DistributionMinSells {
		profile.Flags = append(profile.Flags, FlagDistribution)
	}

	var warnings []Warning
	roi, warn := m.computeROI(first, last, now)
	profile.ROIPct = roi
	if warn != nil {
		warnings = append(warnings, *warn)
	}

	m.logger.Debug("computed wallet profile",
		zap.String("wallet", shortID(wallet)),
		zap.String("category", string(profile.Category)),
		zap.Float64("tradesPerMonth", profile.TradesPerMonth),
		zap.Int("flags", len(profile.Flags)),
	)

	return profile, warnings, nil
}

// categorize maps wallet age to a category. Boundaries are closed-open:
// exactly NewWalletMaxAge old is RECENT, exactly RecentWalletMaxAge old is
// ESTABLISHED.
func (m *MetricsEngine) categorize(age time.Duration) WalletCategory {
	switch {
	case age < m.params.NewWalletMaxAge:
		return CategoryNew
	case age < m.params.RecentWalletMaxAge:
		return CategoryRecent
	default:
		return CategoryEstablished
	}
}

// tradesPerMonth averages the full history: total events over the elapsed
// months between first and last event, with a one-month floor so short
// histories don't divide by near-zero.
func tradesPerMonth(events []TransactionEvent) float64 {
	first := events[0].Timestamp
	last := events[len(events)-1].Timestamp

	months := last.Sub(first).Hours() / 24 / daysPerMonth
	if months < 1 {
		months = 1
	}
	return float64(len(events)) / months
}

// isHolding reports whether the gap between the two most recent events meets
// the holding threshold. A single-event history has no gap and is not HOLDING.
func (m *MetricsEngine) isHolding(events []TransactionEvent) bool {
	if len(events) < 2 {
		return false
	}
	n := len(events)
	return events[n-1].Timestamp.Sub(events[n-2].Timestamp) >= m.params.HoldingGap
}

// significantSells counts SELL events moving at least SignificantSellPct of
// the pre-trade balance.
func (m *MetricsEngine) significantSells(events []TransactionEvent) int {
	count := 0
	for _, ev := range events {
		if ev.Type != TypeSell {
			continue
		}
		before := ev.BalanceBeforeBTC()
		if before <= 0 {
			continue
		}
		if math.Abs(ev.AmountBTC) >= m.params.SignificantSellPct*before {
			count++
		}
	}
	return count
}

// computeROI compares the first event's entry value against the current
// portfolio value. A history that starts with a sell has no buy entry point:
// ROI is undefined and reported as such.
func (m *MetricsEngine) computeROI(first, last TransactionEvent, now time.Time) (*float64, *Warning) {
	if first.AmountBTC <= 0 {
		return nil, &Warning{
			Kind:   WarnUndefinedMetric,
			TxID:   first.TxID,
			Detail: "roi undefined: history starts with a sell",
		}
	}

	entryPrice, err := m.prices.PriceAt(first.Timestamp)
	if err != nil {
		return nil, &Warning{
			Kind:   WarnUndefinedMetric,
			TxID:   first.TxID,
			Detail: "roi undefined: no price at entry date",
		}
	}
	currentPrice, err := m.prices.PriceAt(now)
	if err != nil {
		return nil, &Warning{
			Kind:   WarnUndefinedMetric,
			Detail: "roi undefined: no current price",
		}
	}

	entry := first.AmountBTC * entryPrice
	current := last.BalanceAfterBTC * currentPrice
	roi := (current - entry) / entry * 100
	return &roi, nil
}
