package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	rawTransactionsDir       = "raw/transactions"
	rawRichlistFile          = "raw/richlist/richlist.csv"
	historicalPricesFile     = "raw/price/btc_usd_historical.csv"
	livePricesFile           = "raw/price/btc_usd_live.csv"
	processedTransactionsDir = "processed/transactions"
	walletMetricsDir         = "processed/wallet_metrics"
	walletStatsSummaryFile   = "processed/wallet_metrics/all_wallets_summary.csv"
	alertHistoryFile         = "processed/alerts/history.json"
)

const priceDateLayout = "2006-01-02"

// RichlistEntry is one wallet in the monitored universe.
type RichlistEntry struct {
	Rank    int
	Address string
	Label   string // source-site label; exchange wallets carry a "wallet" marker
}

// IsExchange reports whether the entry is an exchange-labeled wallet.
// Exchange wallets are excluded from whale analysis entirely.
func (e RichlistEntry) IsExchange() bool {
	return strings.Contains(strings.ToLower(e.Label), "wallet")
}

// Storage reads and writes the tabular files the pipeline operates on.
// Layout under the base dir mirrors the collection/processing split:
// raw/ holds collector output, processed/ holds pipeline output.
type Storage struct {
	logger  *zap.Logger
	baseDir string
}

// NewStorage creates a store rooted at baseDir.
func NewStorage(logger *zap.Logger, baseDir string) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{logger: logger, baseDir: baseDir}
}

// EnsureDirs creates the directory tree.
func (s *Storage) EnsureDirs() error {
	for _, dir := range []string{
		rawTransactionsDir,
		filepath.Dir(rawRichlistFile),
		filepath.Dir(historicalPricesFile),
		processedTransactionsDir,
		walletMetricsDir,
		filepath.Dir(alertHistoryFile),
	} {
		if err := os.MkdirAll(filepath.Join(s.baseDir, dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// AlertHistoryPath returns the path of the persisted dedup-key snapshot.
func (s *Storage) AlertHistoryPath() string {
	return filepath.Join(s.baseDir, alertHistoryFile)
}

// LoadRichlist reads the monitored wallet universe. Header: rank,address,label.
func (s *Storage) LoadRichlist() ([]RichlistEntry, error) {
	rows, err := s.readCSV(rawRichlistFile)
	if err != nil {
		return nil, err
	}

	entries := make([]RichlistEntry, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("richlist row %d: want 3 columns, got %d", i+1, len(row))
		}
		rank, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("richlist row %d: bad rank %q: %w", i+1, row[0], err)
		}
		entries = append(entries, RichlistEntry{
			Rank:    rank,
			Address: strings.TrimSpace(row[1]),
			Label:   strings.TrimSpace(row[2]),
		})
	}
	return entries, nil
}

// SaveRichlist replaces the richlist file.
func (s *Storage) SaveRichlist(entries []RichlistEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{strconv.Itoa(e.Rank), e.Address, e.Label})
	}
	return s.writeCSV(rawRichlistFile, []string{"rank", "address", "label"}, rows)
}

// LoadRawTransfers reads a wallet's raw transfer file. A missing file yields
// an empty slice: the wallet simply has no collected data yet.
// Header: tx_id,time,amount_sats.
func (s *Storage) LoadRawTransfers(wallet string) ([]RawTransfer, error) {
	rel := filepath.Join(rawTransactionsDir, wallet+".csv")
	rows, err := s.readCSV(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	transfers := make([]RawTransfer, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("%s row %d: want 3 columns, got %d", rel, i+1, len(row))
		}
		unix, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad time %q: %w", rel, i+1, row[1], err)
		}
		sats, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad amount %q: %w", rel, i+1, row[2], err)
		}
		transfers = append(transfers, RawTransfer{
			Wallet:     wallet,
			TxID:       row[0],
			Timestamp:  time.Unix(unix, 0).UTC(),
			AmountSats: sats,
		})
	}
	return transfers, nil
}

// SaveRawTransfers replaces a wallet's raw transfer file.
func (s *Storage) SaveRawTransfers(wallet string, transfers []RawTransfer) error {
	rows := make([][]string, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, []string{
			t.TxID,
			strconv.FormatInt(t.Timestamp.Unix(), 10),
			strconv.FormatInt(t.AmountSats, 10),
		})
	}
	rel := filepath.Join(rawTransactionsDir, wallet+".csv")
	return s.writeCSV(rel, []string{"tx_id", "time", "amount_sats"}, rows)
}

// LoadHistoricalPrices reads the static historical series (through the
// cutover date). A missing file is fine: the live series may cover the
// whole window. Header: date,close_usd.
func (s *Storage) LoadHistoricalPrices() ([]PricePoint, error) {
	points, err := s.loadPrices(historicalPricesFile)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return points, err
}

// LoadLivePrices reads the live-appended series. A missing file is fine:
// collection may not have run yet.
func (s *Storage) LoadLivePrices() ([]PricePoint, error) {
	points, err := s.loadPrices(livePricesFile)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return points, err
}

// SaveLivePrices replaces the live-appended series.
func (s *Storage) SaveLivePrices(points []PricePoint) error {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.Date.UTC().Format(priceDateLayout),
			strconv.FormatFloat(p.Close, 'f', -1, 64),
		})
	}
	return s.writeCSV(livePricesFile, []string{"date", "close_usd"}, rows)
}

func (s *Storage) loadPrices(rel string) ([]PricePoint, error) {
	rows, err := s.readCSV(rel)
	if err != nil {
		return nil, err
	}

	points := make([]PricePoint, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s row %d: want 2 columns, got %d", rel, i+1, len(row))
		}
		date, err := time.ParseInLocation(priceDateLayout, row[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad date %q: %w", rel, i+1, row[0], err)
		}
		// Some exported price files carry thousands separators.
		close, err := strconv.ParseFloat(strings.ReplaceAll(row[1], ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad close %q: %w", rel, i+1, row[1], err)
		}
		points = append(points, PricePoint{Date: date, Close: close})
	}
	return points, nil
}

// SaveProcessedEvents replaces a wallet's processed event file.
// Header: tx_id,timestamp,amount_btc,type,balance_after_btc,usd_value.
func (s *Storage) SaveProcessedEvents(wallet string, events []TransactionEvent) error {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			ev.TxID,
			ev.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(ev.AmountBTC, 'f', 8, 64),
			string(ev.Type),
			strconv.FormatFloat(ev.BalanceAfterBTC, 'f', 8, 64),
			strconv.FormatFloat(ev.USDValue, 'f', 2, 64),
		})
	}
	rel := filepath.Join(processedTransactionsDir, wallet+".csv")
	header := []string{"tx_id", "timestamp", "amount_btc", "type", "balance_after_btc", "usd_value"}
	return s.writeCSV(rel, header, rows)
}

var walletStatsHeader = []string{
	"wallet", "first_transaction", "last_transaction", "total_transactions",
	"active_days", "current_balance_btc", "buy_count", "sell_count",
	"total_buy_volume", "total_sell_volume", "avg_buy_size", "avg_sell_size",
	"realized_pnl_usd", "portfolio_volatility_pct", "max_drawdown_pct",
	"roi_last_month_pct", "roi_last_3months_pct",
}

// SaveWalletStats replaces a wallet's performance summary file.
func (s *Storage) SaveWalletStats(stats *PerformanceStats) error {
	rel := filepath.Join(walletMetricsDir, stats.Wallet+".csv")
	return s.writeCSV(rel, walletStatsHeader, [][]string{walletStatsRow(stats)})
}

// SaveWalletStatsSummary replaces the all-wallets summary with one row per
// wallet processed this run.
func (s *Storage) SaveWalletStatsSummary(stats []*PerformanceStats) error {
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, walletStatsRow(st))
	}
	return s.writeCSV(walletStatsSummaryFile, walletStatsHeader, rows)
}

// walletStatsRow renders one summary row. Undefined metrics stay empty
// cells rather than zeros.
func walletStatsRow(stats *PerformanceStats) []string {
	optional := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', 4, 64)
	}
	return []string{
		stats.Wallet,
		stats.FirstTransaction.UTC().Format(time.RFC3339),
		stats.LastTransaction.UTC().Format(time.RFC3339),
		strconv.Itoa(stats.TotalTransactions),
		strconv.Itoa(stats.ActiveDays),
		strconv.FormatFloat(stats.CurrentBalanceBTC, 'f', 8, 64),
		strconv.Itoa(stats.BuyCount),
		strconv.Itoa(stats.SellCount),
		strconv.FormatFloat(stats.TotalBuyVolume, 'f', 8, 64),
		strconv.FormatFloat(stats.TotalSellVolume, 'f', 8, 64),
		strconv.FormatFloat(stats.AvgBuySize, 'f', 8, 64),
		strconv.FormatFloat(stats.AvgSellSize, 'f', 8, 64),
		strconv.FormatFloat(stats.RealizedPnLUSD, 'f', 2, 64),
		optional(stats.PortfolioVolatilityPct),
		optional(stats.MaxDrawdownPct),
		optional(stats.ROILastMonthPct),
		optional(stats.ROILast3MonthsPct),
	}
}

// readCSV reads a headered CSV and returns its data rows.
func (s *Storage) readCSV(rel string) ([][]string, error) {
	path := filepath.Join(s.baseDir, rel)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

// writeCSV fully replaces a headered CSV file.
func (s *Storage) writeCSV(rel string, header []string, rows [][]string) error {
	path := filepath.Join(s.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", rel, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", rel, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", rel, err)
	}

	s.logger.Debug("wrote tabular file",
		zap.String("file", rel),
		zap.Int("rows", len(rows)),
	)
	return nil
}
