package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/arielbenavi/WhaleWatcher/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client fetches wallet transfer histories from the blockchain.info
// rawaddr API. All calls go through a shared rate limiter so the whole
// collection pass respects the provider's pacing.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
	pageLimit  int
	maxRetries int
	interval   time.Duration
}

// Transfer is one confirmed on-chain movement for a watched address.
// AmountSats is the net effect on the address: positive for inflow,
// negative for outflow.
type Transfer struct {
	TxID       string
	Timestamp  time.Time
	AmountSats int64
}

type rawAddrResponse struct {
	Address string  `json:"address"`
	NTx     int     `json:"n_tx"`
	Txs     []rawTx `json:"txs"`
}

type rawTx struct {
	Hash   string `json:"hash"`
	Time   int64  `json:"time"`
	Result int64  `json:"result"`
}

// NewClient creates a blockchain.info client from config.
func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(cfg.Blockchain.RequestInterval), 1),
		apiURL:     cfg.Blockchain.APIURL,
		pageLimit:  cfg.Blockchain.PageLimit,
		maxRetries: cfg.Blockchain.MaxRetries,
		interval:   cfg.Blockchain.RequestInterval,
	}
}

// FetchTransfers pages through an address's transaction history, newest
// first, and stops as soon as it sees a hash in knownTxIDs. Incremental
// refreshes therefore fetch only the pages that contain new activity.
// Results are returned newest first, already filtered to unseen hashes.
func (c *Client) FetchTransfers(ctx context.Context, address string, knownTxIDs map[string]bool) ([]Transfer, error) {
	var transfers []Transfer

	offset := 0
	for {
		page, total, err := c.fetchPage(ctx, address, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch %s page at offset %d: %w", address, offset, err)
		}

		for _, tx := range page {
			if knownTxIDs[tx.Hash] {
				c.logger.Debug("reached known transaction, stopping pagination",
					zap.String("address", address),
					zap.String("txID", tx.Hash),
					zap.Int("fetched", len(transfers)),
				)
				return transfers, nil
			}
			transfers = append(transfers, Transfer{
				TxID:       tx.Hash,
				Timestamp:  time.Unix(tx.Time, 0).UTC(),
				AmountSats: tx.Result,
			})
		}

		offset += len(page)
		if len(page) == 0 || offset >= total {
			return transfers, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, address string, offset int) ([]rawTx, int, error) {
	endpoint := fmt.Sprintf("%s/rawaddr/%s?limit=%d&offset=%d",
		c.apiURL, url.PathEscape(address), c.pageLimit, offset)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * c.interval
			c.logger.Warn("retrying blockchain.info request",
				zap.String("address", address),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		resp, err := c.doRequest(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		return resp.Txs, resp.NTx, nil
	}
	return nil, 0, lastErr
}

func (c *Client) doRequest(ctx context.Context, endpoint string) (*rawAddrResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed rawAddrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}
