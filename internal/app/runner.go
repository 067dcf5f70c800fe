package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	clts "github.com/arielbenavi/WhaleWatcher/clients"
	"github.com/arielbenavi/WhaleWatcher/clients/notifier"
	"github.com/arielbenavi/WhaleWatcher/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes one batch pass over the monitored wallet universe:
// load richlist, process each wallet on a worker pool, then evaluate and
// dispatch alerts serially from the aggregation loop.
type Runner struct {
	logger  *zap.Logger
	cfg     *config.Config
	clients *clts.Clients
	storage *Storage

	// now is injected so category boundaries and dedup timestamps are
	// deterministic under test.
	now func() time.Time
}

// RunReport summarizes one batch pass.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	WalletsTotal     int
	WalletsExcluded  int
	WalletsProcessed int
	WalletsFailed    int

	// Failures maps wallet address to the error that sank it. One bad
	// wallet never fails the run.
	Failures map[string]string

	EventsProcessed  int
	Warnings         int
	AlertsDispatched int
	AlertsFailed     int
}

// walletResult is what a worker hands back for aggregation.
type walletResult struct {
	wallet   string
	profile  *WalletProfile
	stats    *PerformanceStats
	recent   []TransactionEvent // events inside the alert lookback window
	events   int
	warnings int
	err      error
}

// NewRunner wires the pipeline from config.
func NewRunner(logger *zap.Logger, cfg *config.Config, clients *clts.Clients, storage *Storage) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger:  logger,
		cfg:     cfg,
		clients: clients,
		storage: storage,
		now:     time.Now,
	}
}

// Run executes one batch pass. It returns an error only when the pass
// cannot start at all (missing richlist or price data); per-wallet
// failures are recorded in the report instead.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		Failures:  make(map[string]string),
	}
	logger := r.logger.With(zap.String("runID", report.RunID))

	if err := r.storage.EnsureDirs(); err != nil {
		return nil, err
	}

	richlist, err := r.storage.LoadRichlist()
	if err != nil {
		return nil, fmt.Errorf("load richlist: %w", err)
	}
	report.WalletsTotal = len(richlist)

	var watched []RichlistEntry
	for _, entry := range richlist {
		if entry.IsExchange() {
			report.WalletsExcluded++
			continue
		}
		watched = append(watched, entry)
	}
	logger.Info("loaded wallet universe",
		zap.Int("total", report.WalletsTotal),
		zap.Int("excludedExchanges", report.WalletsExcluded),
		zap.Int("watched", len(watched)),
	)

	prices, err := r.loadPrices()
	if err != nil {
		return nil, err
	}

	history := NewAlertHistory()
	if err := history.LoadFile(r.storage.AlertHistoryPath()); err != nil {
		return nil, fmt.Errorf("load alert history: %w", err)
	}

	processor := NewProcessor(logger, prices)
	metrics := NewMetricsEngine(logger, prices, r.metricsParams())
	engine := NewAlertEngine(logger, r.alertThresholds())

	now := report.StartedAt
	cutoff := now.Add(-time.Duration(r.cfg.Pipeline.LookbackHours) * time.Hour)

	jobs := make(chan RichlistEntry)
	results := make(chan walletResult)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Pipeline.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				results <- r.processWallet(entry.Address, processor, metrics, cutoff, now)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, entry := range watched {
			select {
			case jobs <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	// Alert evaluation and dispatch stay on this goroutine: dedup checks
	// and history marks need no further locking, and channel sends keep
	// their provider-friendly pacing.
	var allStats []*PerformanceStats
	for res := range results {
		if res.err != nil {
			report.WalletsFailed++
			report.Failures[res.wallet] = res.err.Error()
			logger.Error("wallet processing failed",
				zap.String("wallet", shortID(res.wallet)),
				zap.Error(res.err),
			)
			continue
		}
		report.WalletsProcessed++
		report.EventsProcessed += res.events
		report.Warnings += res.warnings
		if res.stats != nil {
			allStats = append(allStats, res.stats)
		}

		for _, ev := range res.recent {
			impact, ok := PortfolioImpactPct(ev)
			if !ok {
				continue
			}
			alert := engine.Evaluate(ev, res.profile, impact, history)
			if alert == nil {
				continue
			}
			if r.dispatch(ctx, logger, alert, history, now) {
				report.AlertsDispatched++
			} else {
				report.AlertsFailed++
			}
		}
	}

	if len(allStats) > 0 {
		if err := r.storage.SaveWalletStatsSummary(allStats); err != nil {
			logger.Error("failed to persist wallet stats summary", zap.Error(err))
		}
	}

	if err := history.SaveFile(r.storage.AlertHistoryPath()); err != nil {
		logger.Error("failed to persist alert history", zap.Error(err))
	}

	report.Duration = r.now().Sub(report.StartedAt)
	logger.Info("batch pass finished",
		zap.Duration("duration", report.Duration),
		zap.Int("walletsProcessed", report.WalletsProcessed),
		zap.Int("walletsFailed", report.WalletsFailed),
		zap.Int("alertsDispatched", report.AlertsDispatched),
		zap.Int("alertsFailed", report.AlertsFailed),
	)
	return report, nil
}

// processWallet runs the per-wallet stage on a worker. A panic in one
// wallet's data is converted to a per-wallet failure.
func (r *Runner) processWallet(wallet string, processor *Processor, metrics *MetricsEngine, cutoff, now time.Time) (res walletResult) {
	res.wallet = wallet
	defer func() {
		if rec := recover(); rec != nil {
			res.err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()

	transfers, err := r.storage.LoadRawTransfers(wallet)
	if err != nil {
		res.err = fmt.Errorf("load raw transfers: %w", err)
		return res
	}
	if len(transfers) == 0 {
		return res
	}

	processed, err := processor.Process(wallet, transfers)
	if err != nil {
		res.err = err
		return res
	}
	res.events = len(processed.Events)
	res.warnings = len(processed.Warnings)

	if err := r.storage.SaveProcessedEvents(wallet, processed.Events); err != nil {
		res.err = fmt.Errorf("save processed events: %w", err)
		return res
	}
	if len(processed.Events) == 0 {
		return res
	}

	profile, warns, err := metrics.Compute(wallet, processed.Events, now)
	if err != nil {
		res.err = err
		return res
	}
	res.warnings += len(warns)
	res.profile = profile

	stats, err := metrics.ComputeStats(wallet, processed.Events)
	if err != nil {
		res.err = err
		return res
	}
	if err := r.storage.SaveWalletStats(stats); err != nil {
		res.err = fmt.Errorf("save wallet stats: %w", err)
		return res
	}
	res.stats = stats

	for _, ev := range processed.Events {
		if !ev.Timestamp.Before(cutoff) {
			res.recent = append(res.recent, ev)
		}
	}
	return res
}

// dispatch sends one alert through the combined notifier. The dedup key
// is marked only after delivery is confirmed, so a failed send retries on
// the next run. Dry runs mark nothing.
func (r *Runner) dispatch(ctx context.Context, logger *zap.Logger, alert *AlertEvent, history *AlertHistory, now time.Time) bool {
	if r.cfg.DryRun {
		logger.Info("dry run, alert not dispatched",
			zap.String("wallet", shortID(alert.Wallet)),
			zap.String("level", string(alert.Level)),
			zap.Float64("pctChange", alert.PctChange),
		)
		return true
	}

	if err := r.clients.Notifier.Send(ctx, toWhaleAlert(alert)); err != nil {
		logger.Error("alert dispatch failed, will retry next run",
			zap.String("wallet", shortID(alert.Wallet)),
			zap.String("tx", shortID(alert.TxID)),
			zap.Error(err),
		)
		return false
	}

	history.MarkDispatched(alert.DedupKey, now)
	return true
}

func toWhaleAlert(alert *AlertEvent) notifier.WhaleAlert {
	action := "Bought"
	if alert.Type == TypeSell {
		action = "Sold"
	}
	flags := make([]string, 0, len(alert.Flags))
	for _, f := range alert.Flags {
		flags = append(flags, string(f))
	}
	return notifier.WhaleAlert{
		Wallet:    alert.Wallet,
		Category:  string(alert.Category),
		Flags:     flags,
		ROIPct:    alert.ROIPct,
		TxID:      alert.TxID,
		Action:    action,
		AmountBTC: alert.AmountBTC,
		USDValue:  alert.USDValue,
		Timestamp: alert.Timestamp,
		Level:     string(alert.Level),
		PctChange: alert.PctChange,
	}
}

func (r *Runner) loadPrices() (*PriceResolver, error) {
	historical, err := r.storage.LoadHistoricalPrices()
	if err != nil {
		return nil, fmt.Errorf("load historical prices: %w", err)
	}
	live, err := r.storage.LoadLivePrices()
	if err != nil {
		return nil, fmt.Errorf("load live prices: %w", err)
	}
	resolver := NewPriceResolver(historical, live)
	if resolver.Len() == 0 {
		return nil, fmt.Errorf("no price data available, run collection first")
	}
	return resolver, nil
}

func (r *Runner) metricsParams() MetricsParams {
	return MetricsParams{
		NewWalletMaxAge:            time.Duration(r.cfg.Categories.NewMaxAgeDays) * 24 * time.Hour,
		RecentWalletMaxAge:         time.Duration(r.cfg.Categories.RecentMaxAgeDays) * 24 * time.Hour,
		ActiveTraderTradesPerMonth: r.cfg.Patterns.ActiveTraderTradesPerMonth,
		HoldingGap:                 time.Duration(r.cfg.Patterns.HoldingGapDays) * 24 * time.Hour,
		SignificantSellPct:         r.cfg.Patterns.SignificantSellPct,
		DistributionMinSells:       r.cfg.Patterns.DistributionMinSells,
	}
}

func (r *Runner) alertThresholds() AlertThresholds {
	return AlertThresholds{
		UrgentPct: r.cfg.Alerts.UrgentPct,
		HighPct:   r.cfg.Alerts.HighPct,
		InfoPct:   r.cfg.Alerts.InfoPct,
	}
}
