package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForBoundaries(t *testing.T) {
	th := DefaultAlertThresholds()

	tests := []struct {
		pct   float64
		want  AlertLevel
		fires bool
	}{
		{15.0, LevelUrgent, true},
		{10.0, LevelUrgent, true},
		{9.999, LevelHigh, true},
		{5.0, LevelHigh, true},
		{4.999, LevelInfo, true},
		{0.2, LevelInfo, true},
		{0.199, "", false},
		{0.0, "", false},
	}
	for _, tt := range tests {
		level, ok := th.LevelFor(tt.pct)
		assert.Equal(t, tt.fires, ok, "pct=%v", tt.pct)
		assert.Equal(t, tt.want, level, "pct=%v", tt.pct)
	}
}

func TestPortfolioImpactPct(t *testing.T) {
	// Selling 0.3 BTC out of 2.0 leaves 1.7: impact 0.3/1.7 = ~17.6%.
	ev := TransactionEvent{AmountBTC: -0.3, BalanceAfterBTC: 1.7}
	impact, ok := PortfolioImpactPct(ev)
	require.True(t, ok)
	assert.InDelta(t, 17.647, impact, 0.001)

	// Full liquidation: impact undefined.
	_, ok = PortfolioImpactPct(TransactionEvent{AmountBTC: -2, BalanceAfterBTC: 0})
	assert.False(t, ok)

	// Integrity violation: impact undefined.
	_, ok = PortfolioImpactPct(TransactionEvent{AmountBTC: -3, BalanceAfterBTC: -1})
	assert.False(t, ok)
}

func TestDedupKeyIdentity(t *testing.T) {
	k1 := DedupKey("w1", "tx1", LevelHigh)
	k2 := DedupKey("w1", "tx1", LevelHigh)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	// Any component change produces a different key.
	assert.NotEqual(t, k1, DedupKey("w2", "tx1", LevelHigh))
	assert.NotEqual(t, k1, DedupKey("w1", "tx2", LevelHigh))
	assert.NotEqual(t, k1, DedupKey("w1", "tx1", LevelUrgent))
}

func TestEvaluateBuildsAlertWithProfileContext(t *testing.T) {
	engine := NewAlertEngine(nil, DefaultAlertThresholds())
	history := NewAlertHistory()

	roi := 25.0
	profile := &WalletProfile{
		Category: CategoryEstablished,
		Flags:    []PatternFlag{FlagHolding},
		ROIPct:   &roi,
	}
	ev := TransactionEvent{
		Wallet:          "w1",
		TxID:            "tx1",
		Timestamp:       day(2024, 6, 1),
		AmountBTC:       -0.3,
		Type:            TypeSell,
		BalanceAfterBTC: 1.7,
		USDValue:        15000,
	}

	impact, ok := PortfolioImpactPct(ev)
	require.True(t, ok)
	alert := engine.Evaluate(ev, profile, impact, history)
	require.NotNil(t, alert)

	assert.Equal(t, LevelUrgent, alert.Level)
	assert.Equal(t, CategoryEstablished, alert.Category)
	assert.Equal(t, []PatternFlag{FlagHolding}, alert.Flags)
	require.NotNil(t, alert.ROIPct)
	assert.Equal(t, 25.0, *alert.ROIPct)
	assert.Equal(t, DedupKey("w1", "tx1", LevelUrgent), alert.DedupKey)
}

func TestEvaluateBelowThresholdReturnsNil(t *testing.T) {
	engine := NewAlertEngine(nil, DefaultAlertThresholds())

	alert := engine.Evaluate(TransactionEvent{Wallet: "w1", TxID: "tx1"}, nil, 0.1, NewAlertHistory())
	assert.Nil(t, alert)
}

func TestEvaluateSuppressesDuplicates(t *testing.T) {
	engine := NewAlertEngine(nil, DefaultAlertThresholds())
	history := NewAlertHistory()

	ev := TransactionEvent{Wallet: "w1", TxID: "tx1", AmountBTC: -0.3, BalanceAfterBTC: 1.7}

	first := engine.Evaluate(ev, nil, 17.6, history)
	require.NotNil(t, first)

	// Not yet marked: evaluation still fires until a dispatch is confirmed.
	again := engine.Evaluate(ev, nil, 17.6, history)
	require.NotNil(t, again)

	history.MarkDispatched(first.DedupKey, day(2024, 6, 1))
	assert.Nil(t, engine.Evaluate(ev, nil, 17.6, history))

	// A different level for the same tx is a distinct alert.
	assert.NotNil(t, engine.Evaluate(ev, nil, 5.5, history))
}

func TestAlertHistoryFileRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts", "history.json")

	h := NewAlertHistory()
	require.NoError(t, h.LoadFile(path)) // missing file starts empty
	assert.Equal(t, 0, h.Len())

	h.MarkDispatched("key1", day(2024, 6, 1))
	h.MarkDispatched("key2", day(2024, 6, 2))
	require.NoError(t, h.SaveFile(path))

	restored := NewAlertHistory()
	require.NoError(t, restored.LoadFile(path))
	assert.Equal(t, 2, restored.Len())
	assert.True(t, restored.Contains("key1"))
	assert.True(t, restored.Contains("key2"))
	assert.False(t, restored.Contains("key3"))
}

func TestAlertHistorySaveIsNoopWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	h := NewAlertHistory()
	require.NoError(t, h.SaveFile(path))

	// Nothing was dirty, so nothing was written.
	_, err := filepath.Glob(path)
	require.NoError(t, err)
	assert.NoFileExists(t, path)

	h.MarkDispatched("key1", time.Now())
	require.NoError(t, h.SaveFile(path))
	assert.FileExists(t, path)
}
