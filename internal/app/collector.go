package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	clts "github.com/arielbenavi/WhaleWatcher/clients"
	"go.uber.org/zap"
)

// Collector refreshes the raw data tree before a pipeline pass: wallet
// transfer histories from blockchain.info and the live BTC/USD price
// series from CoinGecko. Collection is sequential on purpose, the shared
// rate limiters are the contract with the data providers.
type Collector struct {
	logger  *zap.Logger
	clients *clts.Clients
	storage *Storage
}

// NewCollector creates a collector over the given clients and store.
func NewCollector(logger *zap.Logger, clients *clts.Clients, storage *Storage) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger, clients: clients, storage: storage}
}

// CollectTransfers refreshes the raw transfer file of every non-exchange
// wallet in the richlist. Each wallet's fetch stops at its newest already
// known transaction, so steady-state refreshes are one page per wallet.
// A failed wallet is logged and skipped; the others still refresh.
func (c *Collector) CollectTransfers(ctx context.Context) error {
	richlist, err := c.storage.LoadRichlist()
	if err != nil {
		return fmt.Errorf("load richlist: %w", err)
	}

	var failed int
	for _, entry := range richlist {
		if entry.IsExchange() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.collectWallet(ctx, entry.Address); err != nil {
			failed++
			c.logger.Error("wallet collection failed",
				zap.String("wallet", shortID(entry.Address)),
				zap.Error(err),
			)
		}
	}

	if failed > 0 {
		c.logger.Warn("collection finished with failures", zap.Int("failed", failed))
	}
	return nil
}

func (c *Collector) collectWallet(ctx context.Context, wallet string) error {
	existing, err := c.storage.LoadRawTransfers(wallet)
	if err != nil {
		return fmt.Errorf("load existing transfers: %w", err)
	}

	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t.TxID] = true
	}

	fetched, err := c.clients.Blockchain.FetchTransfers(ctx, wallet, known)
	if err != nil {
		return err
	}
	if len(fetched) == 0 {
		return nil
	}

	merged := existing
	for _, t := range fetched {
		merged = append(merged, RawTransfer{
			Wallet:     wallet,
			TxID:       t.TxID,
			Timestamp:  t.Timestamp,
			AmountSats: t.AmountSats,
		})
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		}
		return merged[i].TxID < merged[j].TxID
	})

	c.logger.Info("collected new transfers",
		zap.String("wallet", shortID(wallet)),
		zap.Int("new", len(fetched)),
		zap.Int("total", len(merged)),
	)
	return c.storage.SaveRawTransfers(wallet, merged)
}

// UpdatePrices gap-fills the live price series from the day after its
// last point through today. The historical file is never touched.
func (c *Collector) UpdatePrices(ctx context.Context, now time.Time) error {
	live, err := c.storage.LoadLivePrices()
	if err != nil {
		return fmt.Errorf("load live prices: %w", err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	days := 365
	if len(live) > 0 {
		last := live[len(live)-1].Date
		gap := int(today.Sub(last).Hours() / 24)
		if gap <= 0 {
			c.logger.Debug("live prices already current")
			return nil
		}
		days = gap
	}

	closes, err := c.clients.CoinGecko.FetchDailyCloses(ctx, days)
	if err != nil {
		return fmt.Errorf("fetch daily closes: %w", err)
	}

	byDay := make(map[time.Time]float64, len(live)+len(closes))
	for _, p := range live {
		byDay[p.Date] = p.Close
	}
	for _, cl := range closes {
		byDay[cl.Date] = cl.Close
	}

	merged := make([]PricePoint, 0, len(byDay))
	for day, price := range byDay {
		merged = append(merged, PricePoint{Date: day, Close: price})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })

	c.logger.Info("updated live price series",
		zap.Int("fetched", len(closes)),
		zap.Int("total", len(merged)),
	)
	return c.storage.SaveLivePrices(merged)
}
