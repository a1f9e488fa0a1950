package finnhub

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"StockPulse/internal/domain/models"
	drepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/service/ratelimit"
	xhttp "StockPulse/pkg/http"
)

// Client implements the MarketData gateway backed by the Finnhub REST API.
// It owns rate limiting, retries with exponential backoff, and per-call
// timeouts; callers only ever see the domain error kinds.
type Client struct {
	apiKey       string
	baseURL      string
	http         *xhttp.Client
	limiter      *ratelimit.Limiter
	maxRetries   int
	retryBackoff time.Duration
	rateCapacity float64
	rateRefill   float64
}

// Option configures Client.
type Option func(*Client)

// New creates a Finnhub REST gateway.
func New(apiKey, baseURL string, requestTimeout time.Duration, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		limiter:      ratelimit.New(),
		maxRetries:   3,
		retryBackoff: time.Second,
		rateCapacity: 30,
		rateRefill:   0.5,
		http:         xhttp.NewClient(xhttp.WithTimeout(requestTimeout)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithRetries sets attempt count and the base backoff (doubled per attempt).
func WithRetries(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = attempts
		c.retryBackoff = backoff
	}
}

// WithRate sets token-bucket capacity and refill rate for outbound calls.
func WithRate(capacity, refillPerSec float64) Option {
	return func(c *Client) {
		c.rateCapacity = capacity
		c.rateRefill = refillPerSec
	}
}

// WithHTTPClient overrides the HTTP client; used in tests.
func WithHTTPClient(h *xhttp.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

type candleResponse struct {
	Status string    `json:"s"`
	T      []int64   `json:"t"`
	O      []float64 `json:"o"`
	H      []float64 `json:"h"`
	L      []float64 `json:"l"`
	C      []float64 `json:"c"`
	V      []float64 `json:"v"`
}

type quoteResponse struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Current   float64 `json:"c"`
	PrevClose float64 `json:"pc"`
}

type profileResponse struct {
	Name      string  `json:"name"`
	MarketCap float64 `json:"marketCapitalization"`
}

type searchResponse struct {
	Result []struct {
		Symbol      string `json:"symbol"`
		Description string `json:"description"`
	} `json:"result"`
}

// FetchHistory returns daily bars for the lookback window, oldest first.
func (c *Client) FetchHistory(ctx context.Context, symbol string, lookbackDays int) ([]models.PriceBar, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -lookbackDays)

	var resp candleResponse
	err := c.call(ctx, "/stock/candle", map[string][]string{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(now.Unix(), 10)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status != "ok" || len(resp.C) == 0 {
		return nil, fmt.Errorf("history %s: %w", symbol, drepo.ErrSymbolNotFound)
	}

	bars := make([]models.PriceBar, 0, len(resp.C))
	for i := range resp.C {
		bars = append(bars, models.PriceBar{
			Time:   time.Unix(resp.T[i], 0).UTC(),
			Open:   resp.O[i],
			High:   resp.H[i],
			Low:    resp.L[i],
			Close:  resp.C[i],
			Volume: resp.V[i],
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// intradayStrategy is one rung of the resolution fallback ladder.
type intradayStrategy struct {
	resolution string
	window     time.Duration
	label      string
}

var intradayLadder = []intradayStrategy{
	{"5", 24 * time.Hour, "5min"},
	{"60", 7 * 24 * time.Hour, "hourly"},
	{"D", 30 * 24 * time.Hour, "daily"},
	{"W", 180 * 24 * time.Hour, "weekly"},
}

// FetchIntraday returns the current-session series, walking the resolution
// ladder until some rung yields data.
func (c *Client) FetchIntraday(ctx context.Context, symbol string) ([]models.IntradayPoint, string, error) {
	now := time.Now()
	for _, s := range intradayLadder {
		var resp candleResponse
		err := c.call(ctx, "/stock/candle", map[string][]string{
			"symbol":     {symbol},
			"resolution": {s.resolution},
			"from":       {strconv.FormatInt(now.Add(-s.window).Unix(), 10)},
			"to":         {strconv.FormatInt(now.Unix(), 10)},
		}, &resp)
		if err != nil {
			if errors.Is(err, drepo.ErrSymbolNotFound) {
				continue
			}
			return nil, "", err
		}
		if resp.Status != "ok" || len(resp.C) == 0 {
			continue
		}
		points := make([]models.IntradayPoint, 0, len(resp.C))
		for i := range resp.C {
			points = append(points, models.IntradayPoint{
				Timestamp: resp.T[i] * 1000,
				Price:     resp.C[i],
			})
		}
		return points, s.label, nil
	}
	return nil, "", fmt.Errorf("intraday %s: %w", symbol, drepo.ErrSymbolNotFound)
}

// FetchQuote returns the latest session summary for a symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	var resp quoteResponse
	if err := c.call(ctx, "/quote", map[string][]string{"symbol": {symbol}}, &resp); err != nil {
		return nil, err
	}
	// Finnhub reports zeroes for unknown tickers instead of an error status.
	if resp.Current == 0 {
		return nil, fmt.Errorf("quote %s: %w", symbol, drepo.ErrSymbolNotFound)
	}

	q := &models.Quote{
		Open:      resp.Open,
		High:      resp.High,
		Low:       resp.Low,
		Current:   resp.Current,
		PrevClose: resp.PrevClose,
	}
	if resp.Open != 0 {
		q.PercentChange = round2((resp.Current - resp.Open) / resp.Open * 100)
	}
	return q, nil
}

// FetchProfile returns company name and market cap for a symbol.
func (c *Client) FetchProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	var resp profileResponse
	if err := c.call(ctx, "/stock/profile2", map[string][]string{"symbol": {symbol}}, &resp); err != nil {
		return nil, err
	}
	if resp.Name == "" {
		resp.Name = symbol + " Corporation"
	}
	return &models.CompanyProfile{Name: resp.Name, MarketCap: resp.MarketCap}, nil
}

const maxSearchResults = 10

// Search looks up symbols by ticker or company name and enriches each match
// with quote and profile data. Matches whose quote lookup fails are skipped.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	var resp searchResponse
	if err := c.call(ctx, "/search", map[string][]string{"q": {query}}, &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, maxSearchResults)
	for _, m := range resp.Result {
		if len(results) >= maxSearchResults {
			break
		}
		if m.Symbol == "" || m.Description == "" {
			continue
		}
		quote, err := c.FetchQuote(ctx, m.Symbol)
		if err != nil {
			continue
		}
		profile, err := c.FetchProfile(ctx, m.Symbol)
		if err != nil {
			continue
		}

		change := quote.Current - quote.PrevClose
		changePct := 0.0
		if quote.PrevClose != 0 {
			changePct = change / quote.PrevClose * 100
		}
		results = append(results, models.SearchResult{
			Symbol:        m.Symbol,
			Name:          m.Description,
			Price:         round2(quote.Current),
			Change:        round2(change),
			ChangePercent: round2(changePct),
			MarketCap:     FormatMarketCap(profile.MarketCap),
			Volume:        "N/A",
		})
	}
	return results, nil
}

// FormatMarketCap renders a market cap (provider millions) as a T/B/M string.
func FormatMarketCap(capMillions float64) string {
	switch {
	case capMillions >= 1_000_000:
		return fmt.Sprintf("%.1fT", capMillions/1_000_000)
	case capMillions >= 1_000:
		return fmt.Sprintf("%.1fB", capMillions/1_000)
	default:
		return fmt.Sprintf("%.0fM", capMillions)
	}
}

// call performs one API request with rate limiting and retries.
func (c *Client) call(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	params["token"] = []string{c.apiKey}
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}

	var lastErr error
	backoff := c.retryBackoff
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			wait := backoff
			// rate-limit rejections back off twice as long as outages
			if errors.Is(lastErr, drepo.ErrRateLimited) {
				wait = backoff * 2
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", path, drepo.ErrProviderUnavailable)
			}
			backoff *= 2
		}

		if !c.limiter.Allow("finnhub", c.rateCapacity, c.rateRefill) {
			lastErr = fmt.Errorf("%s: %w", path, drepo.ErrRateLimited)
			continue
		}

		err := c.http.SendAndParse(ctx, opts, dest)
		if err == nil {
			return nil
		}
		lastErr = translate(path, err)
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// translate maps transport and HTTP status failures onto domain error kinds.
func translate(path string, err error) error {
	var statusErr *xhttp.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", path, drepo.ErrRateLimited)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", path, drepo.ErrSymbolNotFound)
		default:
			return fmt.Errorf("%s status %d: %w", path, statusErr.Code, drepo.ErrProviderUnavailable)
		}
	}
	return fmt.Errorf("%s: %v: %w", path, err, drepo.ErrProviderUnavailable)
}

func retryable(err error) bool {
	return errors.Is(err, drepo.ErrProviderUnavailable) || errors.Is(err, drepo.ErrRateLimited)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
