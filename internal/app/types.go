package app

import "time"

// SatoshisPerBTC converts raw satoshi amounts to BTC.
const SatoshisPerBTC = 1e8

// TransactionType classifies the direction of a transfer relative to the wallet.
type TransactionType string

const (
	TypeBuy  TransactionType = "BUY"
	TypeSell TransactionType = "SELL"
)

// RawTransfer is a single on-chain transfer for a wallet, as persisted by the
// collector. Amount is signed: positive means the wallet received funds.
type RawTransfer struct {
	Wallet     string
	Timestamp  time.Time
	AmountSats int64
	TxID       string
}

// TransactionEvent is a normalized, balance-annotated transfer.
type TransactionEvent struct {
	Wallet          string
	Timestamp       time.Time
	TxID            string
	AmountBTC       float64
	Type            TransactionType
	BalanceAfterBTC float64
	USDValue        float64
}

// BalanceBeforeBTC returns the wallet balance immediately before this event.
func (e TransactionEvent) BalanceBeforeBTC() float64 {
	return e.BalanceAfterBTC - e.AmountBTC
}

// WalletCategory buckets wallets by account age.
type WalletCategory string

const (
	CategoryNew         WalletCategory = "NEW"
	CategoryRecent      WalletCategory = "RECENT"
	CategoryEstablished WalletCategory = "ESTABLISHED"
)

// PatternFlag marks a behavioral pattern detected in a wallet's history.
type PatternFlag string

const (
	FlagActiveTrader PatternFlag = "ACTIVE_TRADER"
	FlagHolding      PatternFlag = "HOLDING"
	FlagDistribution PatternFlag = "DISTRIBUTION"
)

// WalletProfile holds the behavioral and performance metrics for one wallet.
// It is recomputed from the full event history on every run.
type WalletProfile struct {
	Wallet         string
	FirstSeen      time.Time
	Category       WalletCategory
	TradesPerMonth float64
	ROIPct         *float64 // nil when the history has no buy entry point
	Flags          []PatternFlag
}

// HasFlag reports whether the profile carries the given pattern flag.
func (p *WalletProfile) HasFlag(f PatternFlag) bool {
	for _, have := range p.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// AlertLevel is the severity tier of an alert.
type AlertLevel string

const (
	LevelInfo   AlertLevel = "INFO"
	LevelHigh   AlertLevel = "HIGH"
	LevelUrgent AlertLevel = "URGENT"
)

// AlertEvent is a dispatch-ready alert for one qualifying transaction.
// It is never mutated after creation.
type AlertEvent struct {
	Wallet    string
	TxID      string
	Timestamp time.Time
	Level     AlertLevel
	PctChange float64
	Type      TransactionType
	AmountBTC float64
	USDValue  float64
	Category  WalletCategory
	Flags     []PatternFlag
	ROIPct    *float64
	DedupKey  string
}

// WarningKind identifies a recoverable, wallet-scoped data problem.
type WarningKind string

const (
	WarnBalanceIntegrity  WarningKind = "balance_integrity"
	WarnMalformedTransfer WarningKind = "malformed_transfer"
	WarnUndefinedMetric   WarningKind = "undefined_metric"
)

// Warning records a non-fatal problem found while processing a wallet.
// Warnings are reported in the run summary; they never abort the wallet.
type Warning struct {
	Kind   WarningKind
	TxID   string
	Detail string
}
