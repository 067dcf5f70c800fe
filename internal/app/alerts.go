package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AlertThresholds maps portfolio-impact percentages to alert levels.
// Tiers are evaluated high to low with strict >= semantics.
type AlertThresholds struct {
	UrgentPct float64
	HighPct   float64
	InfoPct   float64
}

// DefaultAlertThresholds returns the stock 10/5/0.2 tiers.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{UrgentPct: 10, HighPct: 5, InfoPct: 0.2}
}

// LevelFor returns the alert level for a portfolio impact. The second return
// is false when the impact is below every tier.
func (t AlertThresholds) LevelFor(pct float64) (AlertLevel, bool) {
	switch {
	case pct >= t.UrgentPct:
		return LevelUrgent, true
	case pct >= t.HighPct:
		return LevelHigh, true
	case pct >= t.InfoPct:
		return LevelInfo, true
	default:
		return "", false
	}
}

// PortfolioImpactPct computes how much of the wallet's post-trade USD value
// this event moved. The second return is false when the post-trade balance is
// not positive (full liquidation or integrity violation), in which case the
// impact is undefined.
func PortfolioImpactPct(ev TransactionEvent) (float64, bool) {
	if ev.BalanceAfterBTC <= 0 {
		return 0, false
	}
	return math.Abs(ev.AmountBTC) / ev.BalanceAfterBTC * 100, true
}

// DedupKey derives the deterministic identity of a wallet+tx+level alert.
// The same underlying transaction at the same level always hashes to the
// same key, across runs.
func DedupKey(wallet, txID string, level AlertLevel) string {
	sum := sha256.Sum256([]byte(wallet + "|" + txID + "|" + string(level)))
	return hex.EncodeToString(sum[:])
}

// AlertEngine evaluates events against thresholds and suppresses duplicates.
// It is pure evaluation: dispatch and retry belong to the notifier side.
type AlertEngine struct {
	logger     *zap.Logger
	thresholds AlertThresholds
}

// NewAlertEngine creates an alert engine with the given thresholds.
func NewAlertEngine(logger *zap.Logger, thresholds AlertThresholds) *AlertEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertEngine{logger: logger, thresholds: thresholds}
}

// Evaluate returns the alert for a single event, or nil when the impact is
// below every threshold or an identical (wallet, tx, level) alert was already
// dispatched. The returned event is not yet marked in the history: callers
// mark it only after the dispatch collaborator confirms the send.
func (e *AlertEngine) Evaluate(ev TransactionEvent, profile *WalletProfile, impactPct float64, history *AlertHistory) *AlertEvent {
	level, ok := e.thresholds.LevelFor(impactPct)
	if !ok {
		return nil
	}

	key := DedupKey(ev.Wallet, ev.TxID, level)
	if history != nil && history.Contains(key) {
		e.logger.Debug("alert suppressed by dedup",
			zap.String("wallet", shortID(ev.Wallet)),
			zap.String("tx", shortID(ev.TxID)),
			zap.String("level", string(level)),
		)
		return nil
	}

	alert := &AlertEvent{
		Wallet:    ev.Wallet,
		TxID:      ev.TxID,
		Timestamp: ev.Timestamp,
		Level:     level,
		PctChange: impactPct,
		Type:      ev.Type,
		AmountBTC: ev.AmountBTC,
		USDValue:  ev.USDValue,
		DedupKey:  key,
	}
	if profile != nil {
		alert.Category = profile.Category
		alert.Flags = append([]PatternFlag(nil), profile.Flags...)
		alert.ROIPct = profile.ROIPct
	}
	return alert
}

// AlertHistory is the set of dedup keys whose alerts were confirmed
// delivered. It is the injected lookup the Alert Engine consults, persisted
// between runs as a JSON snapshot file.
type AlertHistory struct {
	mu    sync.Mutex
	keys  map[string]time.Time
	dirty bool
}

// alertHistorySnapshot is the on-disk form of the history.
type alertHistorySnapshot struct {
	Version   int                  `json:"version"`
	Timestamp time.Time            `json:"timestamp"`
	Keys      map[string]time.Time `json:"keys"`
}

// NewAlertHistory creates an empty history.
func NewAlertHistory() *AlertHistory {
	return &AlertHistory{keys: make(map[string]time.Time)}
}

// Contains reports whether an alert with this dedup key was already dispatched.
func (h *AlertHistory) Contains(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.keys[key]
	return ok
}

// MarkDispatched records a confirmed delivery. Call only after the dispatch
// collaborator acknowledged the send.
func (h *AlertHistory) MarkDispatched(key string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys[key] = at
	h.dirty = true
}

// Len returns the number of recorded dispatches.
func (h *AlertHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.keys)
}

// LoadFile merges a persisted snapshot into the history. A missing file is
// not an error: the history simply starts empty.
func (h *AlertHistory) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read alert history: %w", err)
	}

	var snapshot alertHistorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("parse alert history: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for key, at := range snapshot.Keys {
		h.keys[key] = at
	}
	return nil
}

// SaveFile writes the history snapshot. A no-op when nothing changed since
// the last load or save.
func (h *AlertHistory) SaveFile(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return nil
	}

	snapshot := alertHistorySnapshot{
		Version:   1,
		Timestamp: time.Now().UTC(),
		Keys:      h.keys,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal alert history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create alert history dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write alert history: %w", err)
	}

	h.dirty = false
	return nil
}
