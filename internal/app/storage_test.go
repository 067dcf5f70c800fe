package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRichlistRoundtrip(t *testing.T) {
	s := NewStorage(nil, t.TempDir())

	entries := []RichlistEntry{
		{Rank: 1, Address: "bc1qwhale", Label: ""},
		{Rank: 2, Address: "bc1qbinance", Label: "Binance-coldwallet"},
		{Rank: 3, Address: "bc1qother", Label: "wallet: Bitfinex"},
	}
	require.NoError(t, s.SaveRichlist(entries))

	loaded, err := s.LoadRichlist()
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)
}

func TestRichlistIsExchange(t *testing.T) {
	assert.False(t, RichlistEntry{Label: ""}.IsExchange())
	assert.False(t, RichlistEntry{Label: "whale"}.IsExchange())
	assert.True(t, RichlistEntry{Label: "Binance-coldwallet"}.IsExchange())
	assert.True(t, RichlistEntry{Label: "WALLET: Bitfinex"}.IsExchange())
}

func TestRawTransfersRoundtrip(t *testing.T) {
	s := NewStorage(nil, t.TempDir())

	transfers := []RawTransfer{
		{Wallet: "bc1qwhale", TxID: "aaa", Timestamp: day(2024, 1, 1), AmountSats: 200_000_000},
		{Wallet: "bc1qwhale", TxID: "bbb", Timestamp: day(2024, 1, 2).Add(12 * time.Hour), AmountSats: -30_000_000},
	}
	require.NoError(t, s.SaveRawTransfers("bc1qwhale", transfers))

	loaded, err := s.LoadRawTransfers("bc1qwhale")
	require.NoError(t, err)
	assert.Equal(t, transfers, loaded)
}

func TestRawTransfersMissingFileIsEmpty(t *testing.T) {
	s := NewStorage(nil, t.TempDir())

	loaded, err := s.LoadRawTransfers("bc1qnothing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadPricesStripsThousandsSeparators(t *testing.T) {
	dir := t.TempDir()
	s := NewStorage(nil, dir)

	path := filepath.Join(dir, "raw", "price", "btc_usd_historical.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	csv := "date,close_usd\n2024-01-01,\"42,150.70\"\n2024-01-02,43000\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	points, err := s.LoadHistoricalPrices()
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 42150.70, points[0].Close)
	assert.Equal(t, day(2024, 1, 1), points[0].Date)
	assert.Equal(t, 43000.0, points[1].Close)
}

func TestLivePricesRoundtripAndMissingFile(t *testing.T) {
	s := NewStorage(nil, t.TempDir())

	loaded, err := s.LoadLivePrices()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	points := []PricePoint{
		{Date: day(2024, 1, 1), Close: 42000},
		{Date: day(2024, 1, 2), Close: 43123.45},
	}
	require.NoError(t, s.SaveLivePrices(points))

	loaded, err = s.LoadLivePrices()
	require.NoError(t, err)
	assert.Equal(t, points, loaded)
}

func TestSaveProcessedEvents(t *testing.T) {
	dir := t.TempDir()
	s := NewStorage(nil, dir)

	events := []TransactionEvent{
		{
			Wallet:          "bc1qwhale",
			TxID:            "aaa",
			Timestamp:       day(2024, 1, 1),
			AmountBTC:       2,
			Type:            TypeBuy,
			BalanceAfterBTC: 2,
			USDValue:        100000,
		},
	}
	require.NoError(t, s.SaveProcessedEvents("bc1qwhale", events))

	data, err := os.ReadFile(filepath.Join(dir, "processed", "transactions", "bc1qwhale.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "tx_id,timestamp,amount_btc,type,balance_after_btc,usd_value")
	assert.Contains(t, string(data), "aaa,2024-01-01T00:00:00Z,2.00000000,BUY,2.00000000,100000.00")
}

func TestSaveWalletStats(t *testing.T) {
	dir := t.TempDir()
	s := NewStorage(nil, dir)

	vol := 22.5
	stats := &PerformanceStats{
		Wallet:                 "bc1qwhale",
		FirstTransaction:       day(2024, 1, 1),
		LastTransaction:        day(2024, 1, 21),
		TotalTransactions:      4,
		ActiveDays:             20,
		CurrentBalanceBTC:      1.5,
		BuyCount:               2,
		SellCount:              2,
		TotalBuyVolume:         2.8,
		TotalSellVolume:        1.3,
		AvgBuySize:             1.4,
		AvgSellSize:            0.65,
		RealizedPnLUSD:         75000,
		PortfolioVolatilityPct: &vol,
	}
	require.NoError(t, s.SaveWalletStats(stats))
	require.NoError(t, s.SaveWalletStatsSummary([]*PerformanceStats{stats}))

	perWallet, err := os.ReadFile(filepath.Join(dir, "processed", "wallet_metrics", "bc1qwhale.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(perWallet), "wallet,first_transaction,last_transaction")
	assert.Contains(t, string(perWallet), "bc1qwhale,2024-01-01T00:00:00Z,2024-01-21T00:00:00Z,4,20,1.50000000,2,2")
	assert.Contains(t, string(perWallet), "75000.00,22.5000")
	// Undefined metrics render as empty cells, not zeros.
	assert.Contains(t, string(perWallet), "22.5000,,,\n")

	summary, err := os.ReadFile(filepath.Join(dir, "processed", "wallet_metrics", "all_wallets_summary.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "bc1qwhale")
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	s := NewStorage(nil, dir)
	require.NoError(t, s.EnsureDirs())

	for _, sub := range []string{
		"raw/transactions",
		"raw/richlist",
		"raw/price",
		"processed/transactions",
		"processed/wallet_metrics",
		"processed/alerts",
	} {
		assert.DirExists(t, filepath.Join(dir, sub))
	}
}
