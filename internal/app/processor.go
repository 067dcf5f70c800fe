package app

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// ProcessResult is the outcome of normalizing one wallet's transfer history.
// Warnings are wallet-scoped and non-fatal; a nil error means every transfer
// that could be interpreted was turned into an event.
type ProcessResult struct {
	Wallet   string
	Events   []TransactionEvent
	Warnings []Warning
}

// Processor converts raw transfers into typed, balance-annotated transaction
// events. It owns no cross-wallet state: each Process call is independent.
type Processor struct {
	logger *zap.Logger
	prices *PriceResolver
}

// NewProcessor creates a processor backed by the given price resolver.
func NewProcessor(logger *zap.Logger, prices *PriceResolver) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger, prices: prices}
}

// Process normalizes a wallet's raw transfers into ordered transaction events.
// Transfers are sorted by timestamp (ties broken by tx ID) before the running
// balance is computed, so the output is a pure function of the transfer set,
// not of the input order.
//
// A negative running balance is recorded as a balance-integrity warning on the
// result; the event itself is kept. A zero-amount transfer is malformed and
// skipped with a warning. A missing price for a transfer's date fails this
// wallet only.
func (p *Processor) Process(wallet string, transfers []RawTransfer) (*ProcessResult, error) {
	sorted := make([]RawTransfer, len(transfers))
	copy(sorted, transfers)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].TxID < sorted[j].TxID
	})

	res := &ProcessResult{
		Wallet: wallet,
		Events: make([]TransactionEvent, 0, len(sorted)),
	}

	balance := 0.0
	for _, t := range sorted {
		if t.AmountSats == 0 {
			res.Warnings = append(res.Warnings, Warning{
				Kind:   WarnMalformedTransfer,
				TxID:   t.TxID,
				Detail: "zero-amount transfer",
			})
			continue
		}

		price, err := p.prices.PriceAt(t.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("wallet %s tx %s: %w", wallet, t.TxID, err)
		}

		amount := float64(t.AmountSats) / SatoshisPerBTC
		typ := TypeBuy
		if amount < 0 {
			typ = TypeSell
		}

		balance += amount
		if balance < 0 {
			res.Warnings = append(res.Warnings, Warning{
				Kind:   WarnBalanceIntegrity,
				TxID:   t.TxID,
				Detail: fmt.Sprintf("balance went negative: %.8f BTC", balance),
			})
		}

		res.Events = append(res.Events, TransactionEvent{
			Wallet:          wallet,
			Timestamp:       t.Timestamp.UTC(),
			TxID:            t.TxID,
			AmountBTC:       amount,
			Type:            typ,
			BalanceAfterBTC: balance,
			USDValue:        math.Abs(amount) * price,
		})
	}

	p.logger.Debug("processed wallet transfers",
		zap.String("wallet", shortID(wallet)),
		zap.Int("events", len(res.Events)),
		zap.Int("warnings", len(res.Warnings)),
	)

	return res, nil
}
