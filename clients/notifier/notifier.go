package notifier

import (
	"context"
	"time"
)

// WhaleAlert is the rendered payload for one alert dispatch. It carries
// enough context for a human to judge materiality without re-querying
// raw data.
type WhaleAlert struct {
	// Wallet info
	Wallet   string
	Category string // NEW, RECENT, ESTABLISHED
	Flags    []string
	ROIPct   *float64 // nil when undefined

	// Transaction info
	TxID      string
	Action    string // Bought or Sold
	AmountBTC float64
	USDValue  float64
	Timestamp time.Time

	// Alert metadata
	Level     string // INFO, HIGH, URGENT
	PctChange float64
}

// Notifier delivers whale alerts to a messaging channel. Send returns an
// error when delivery was not confirmed, so callers can withhold the
// dedup-key mark and retry on the next run.
type Notifier interface {
	Send(ctx context.Context, alert WhaleAlert) error
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a MultiNotifier, dropping nil entries.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// Send delivers the alert to every registered notifier. It attempts all
// channels and returns the first error, so a partially delivered alert is
// still retried next run rather than silently marked dispatched.
func (m *MultiNotifier) Send(ctx context.Context, alert WhaleAlert) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}

// ShortAddress truncates long wallet addresses for log lines.
func ShortAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-6:]
}
