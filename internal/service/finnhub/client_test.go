package finnhub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "StockPulse/internal/domain/repository"
	xhttp "StockPulse/pkg/http"
)

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testClient(rt rtFunc) *Client {
	return New("test-key", "https://api.test", time.Second,
		WithRetries(3, time.Millisecond),
		WithRate(10_000, 10_000),
		WithHTTPClient(xhttp.NewClient(
			xhttp.WithTimeout(time.Second),
			xhttp.WithBaseTransport(rt),
		)),
	)
}

func TestFetchHistorySortsBars(t *testing.T) {
	c := testClient(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		// timestamps deliberately out of order
		return jsonResponse(200, `{
			"s":"ok",
			"t":[1750118400,1749945600,1750032000],
			"o":[103,101,102],"h":[104,102,103],"l":[102,100,101],
			"c":[103.5,101.5,102.5],"v":[30,10,20]
		}`), nil
	})

	bars, err := c.FetchHistory(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
	assert.True(t, bars[1].Time.Before(bars[2].Time))
	assert.Equal(t, 101.5, bars[0].Close)
	assert.Equal(t, 10.0, bars[0].Volume)
}

func TestFetchHistoryNoData(t *testing.T) {
	c := testClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"s":"no_data"}`), nil
	})
	_, err := c.FetchHistory(context.Background(), "NOPE", 30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, drepo.ErrSymbolNotFound))
}

func TestCallRetriesServerErrors(t *testing.T) {
	var calls int32
	c := testClient(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(503, `{}`), nil
	})
	_, err := c.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, drepo.ErrProviderUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCallTranslatesRateLimit(t *testing.T) {
	var calls int32
	c := testClient(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(429, `{}`), nil
	})
	_, err := c.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, drepo.ErrRateLimited))
	// rate limit responses are retried with backoff
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCallBacksOffLongerWhenRateLimited(t *testing.T) {
	backoff := 20 * time.Millisecond
	newClient := func(code int) *Client {
		return New("test-key", "https://api.test", time.Second,
			WithRetries(3, backoff),
			WithRate(10_000, 10_000),
			WithHTTPClient(xhttp.NewClient(
				xhttp.WithTimeout(time.Second),
				xhttp.WithBaseTransport(rtFunc(func(*http.Request) (*http.Response, error) {
					return jsonResponse(code, `{}`), nil
				})),
			)),
		)
	}

	start := time.Now()
	_, err := newClient(429).FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	elapsed := time.Since(start)

	// 429 waits double the outage ladder: 2x+4x instead of x+2x
	assert.GreaterOrEqual(t, elapsed, 6*backoff)
}

func TestCallDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	c := testClient(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(404, `{}`), nil
	})
	_, err := c.FetchQuote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, drepo.ErrSymbolNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCallRecoversAfterTransientError(t *testing.T) {
	var calls int32
	c := testClient(func(*http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return jsonResponse(502, `{}`), nil
		}
		return jsonResponse(200, `{"o":100,"h":106,"l":99,"c":105,"pc":101}`), nil
	})
	q, err := c.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 105.0, q.Current)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchQuoteUnknownTicker(t *testing.T) {
	c := testClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"o":0,"h":0,"l":0,"c":0,"pc":0}`), nil
	})
	_, err := c.FetchQuote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, drepo.ErrSymbolNotFound))
}

func TestFetchQuotePercentChange(t *testing.T) {
	c := testClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"o":100,"h":106,"l":99,"c":105,"pc":101}`), nil
	})
	q, err := c.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 5.0, q.PercentChange)
}

func TestFetchIntradayFallsThroughResolutions(t *testing.T) {
	c := testClient(func(r *http.Request) (*http.Response, error) {
		if r.URL.Query().Get("resolution") == "5" {
			return jsonResponse(200, `{"s":"no_data"}`), nil
		}
		return jsonResponse(200, `{"s":"ok","t":[1750118400],"o":[1],"h":[1],"l":[1],"c":[101.5],"v":[5]}`), nil
	})
	points, kind, err := c.FetchIntraday(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "hourly", kind)
	require.Len(t, points, 1)
	assert.Equal(t, int64(1750118400000), points[0].Timestamp)
	assert.Equal(t, 101.5, points[0].Price)
}

func TestFetchProfileDefaultName(t *testing.T) {
	c := testClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"marketCapitalization":2500}`), nil
	})
	p, err := c.FetchProfile(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Equal(t, "XYZ Corporation", p.Name)
	assert.Equal(t, 2500.0, p.MarketCap)
}

func TestSearchEnrichesAndSkipsFailures(t *testing.T) {
	c := testClient(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/search"):
			return jsonResponse(200, `{"result":[
				{"symbol":"AAPL","description":"Apple Inc"},
				{"symbol":"DEAD","description":"Delisted Corp"},
				{"symbol":"","description":"No Symbol"}
			]}`), nil
		case strings.HasSuffix(r.URL.Path, "/quote"):
			if r.URL.Query().Get("symbol") == "DEAD" {
				return jsonResponse(200, `{"c":0}`), nil
			}
			return jsonResponse(200, `{"o":100,"h":106,"l":99,"c":105,"pc":100}`), nil
		case strings.HasSuffix(r.URL.Path, "/stock/profile2"):
			return jsonResponse(200, `{"name":"Apple Inc","marketCapitalization":3200000}`), nil
		default:
			return nil, fmt.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	results, err := c.Search(context.Background(), "apple")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, "3.2T", results[0].MarketCap)
	assert.Equal(t, 5.0, results[0].Change)
	assert.Equal(t, "N/A", results[0].Volume)
}

func TestFormatMarketCap(t *testing.T) {
	assert.Equal(t, "1.5T", FormatMarketCap(1_500_000))
	assert.Equal(t, "2.5B", FormatMarketCap(2_500))
	assert.Equal(t, "300M", FormatMarketCap(300))
}
