package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/arielbenavi/WhaleWatcher/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client fetches BTC/USD daily closes from the CoinGecko market_chart API.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
}

// DailyClose is one day's closing price in USD. Date is truncated to the
// UTC day boundary.
type DailyClose struct {
	Date  time.Time
	Close float64
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// NewClient creates a CoinGecko client from config.
func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(cfg.CoinGecko.RequestInterval), 1),
		apiURL:     cfg.CoinGecko.APIURL,
	}
}

// FetchDailyCloses returns one close per UTC day for the last `days` days,
// oldest first. Multiple samples on the same day collapse to the latest one.
func (c *Client) FetchDailyCloses(ctx context.Context, days int) ([]DailyClose, error) {
	if days < 1 {
		days = 1
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/v3/coins/bitcoin/market_chart?vs_currency=usd&days=%d&interval=daily",
		c.apiURL, days)

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

	var parsed marketChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	byDay := make(map[time.Time]float64, len(parsed.Prices))
	for _, point := range parsed.Prices {
		ts := time.UnixMilli(int64(point[0])).UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day] = point[1]
	}

	closes := make([]DailyClose, 0, len(byDay))
	for day, price := range byDay {
		closes = append(closes, DailyClose{Date: day, Close: price})
	}
	sort.Slice(closes, func(i, j int) bool { return closes[i].Date.Before(closes[j].Date) })

	c.logger.Debug("fetched daily closes",
		zap.Int("days", days),
		zap.Int("points", len(closes)),
	)
	return closes, nil
}
