package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/features"
	"StockPulse/internal/model"
	svccache "StockPulse/internal/service/cache"
	"StockPulse/internal/usecase"
	"StockPulse/pkg/config"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
)

type stubGateway struct {
	quote       *models.Quote
	quoteErr    error
	intraday    []models.IntradayPoint
	intradayErr error
	history     []models.PriceBar
	historyErr  error
	results     []models.SearchResult
}

func (s *stubGateway) FetchHistory(context.Context, string, int) ([]models.PriceBar, error) {
	return s.history, s.historyErr
}

func (s *stubGateway) FetchIntraday(context.Context, string) ([]models.IntradayPoint, string, error) {
	if s.intradayErr != nil {
		return nil, "", s.intradayErr
	}
	return s.intraday, "5min", nil
}

func (s *stubGateway) FetchQuote(context.Context, string) (*models.Quote, error) {
	return s.quote, s.quoteErr
}

func (s *stubGateway) FetchProfile(_ context.Context, symbol string) (*models.CompanyProfile, error) {
	return &models.CompanyProfile{Name: symbol + " Inc", MarketCap: 1000}, nil
}

func (s *stubGateway) Search(context.Context, string) ([]models.SearchResult, error) {
	return s.results, nil
}

type apiFixture struct {
	echo    *echo.Echo
	gateway *stubGateway
	cache   *svccache.Predictions
	store   *model.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gw := &stubGateway{
		quote: &models.Quote{Open: 100, High: 106, Low: 99, Current: 105, PrevClose: 101, PercentChange: 5},
	}
	store, err := model.NewStore(model.StoreConfig{
		Dir: t.TempDir(), Trees: 5, MaxDepth: 3, Seed: 42, MinRows: 30, AccuracyWindow: 10,
	}, logger.Nop())
	require.NoError(t, err)

	cache := svccache.NewPredictions(nil, logger.Nop())
	registry := usecase.NewRegistry([]string{"AAPL"}, gw, logger.Nop())

	cfg := config.Config{}
	cfg.Train.At = "08:00"
	cfg.Train.LookbackDays = 365
	cfg.Symbols.Watchlist = []string{"SPY"}
	cfg.Aggregator.SnapshotTTL = time.Minute

	sched := usecase.NewScheduler(gw, features.NewBuilder(), store, cache, registry,
		metrics.NewWithRegistry(prometheus.NewRegistry()), cfg, logger.Nop())
	agg := usecase.NewAggregator(gw, registry, cfg, logger.Nop())

	e := echo.New()
	NewPredictionsEchoHandler(logger.Nop(), cache, store, registry, sched, gw).RegisterRoutes(e)
	NewMarketEchoHandler(logger.Nop(), gw, agg).RegisterRoutes(e)
	return &apiFixture{echo: e, gateway: gw, cache: cache, store: store}
}

func (fx *apiFixture) request(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Status int                    `json:"status"`
		Data   map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestPredictReturnsSnapshot(t *testing.T) {
	fx := newAPIFixture(t)
	fx.cache.Put(models.Prediction{
		Symbol: "AAPL", Direction: models.DirectionUp, Confidence: 0.82, Accuracy: 0.7,
		AsOf: time.Now().UTC(), PredictionDate: "2026-09-01",
	})

	rec := fx.request(http.MethodGet, "/api/predict", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	preds := data["predictions"].(map[string]interface{})
	aapl := preds["AAPL"].(map[string]interface{})
	assert.Equal(t, "UP", aapl["prediction"])
	assert.Equal(t, 0.82, aapl["confidence"])
	assert.NotEmpty(t, data["last_updated"])
}

func TestStatsReturnsPerformance(t *testing.T) {
	fx := newAPIFixture(t)
	require.NoError(t, fx.store.RecordOutcome("AAPL", models.Outcome{
		Date: "2026-08-28", Predicted: models.DirectionUp, Actual: models.DirectionUp,
	}))

	rec := fx.request(http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, 1.0, data["accuracy"])
	assert.Equal(t, 1.0, data["total_predictions"])
}

func TestSummaryEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	rec := fx.request(http.MethodGet, "/api/summary/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, 100.0, data["open"])
	assert.Equal(t, 105.0, data["close"])
	assert.Equal(t, 5.0, data["percent_change"])
}

func TestSummaryUnknownSymbol(t *testing.T) {
	fx := newAPIFixture(t)
	fx.gateway.quote = nil
	fx.gateway.quoteErr = repository.ErrSymbolNotFound

	rec := fx.request(http.MethodGet, "/api/summary/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStockDataEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	fx.gateway.intraday = []models.IntradayPoint{{Timestamp: 1750118400000, Price: 104.5}}

	rec := fx.request(http.MethodGet, "/api/stock-data/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "5min", data["type"])
	points := data["data"].([]interface{})
	require.Len(t, points, 1)
}

func TestStockDataProviderDown(t *testing.T) {
	fx := newAPIFixture(t)
	fx.gateway.intradayErr = repository.ErrProviderUnavailable

	rec := fx.request(http.MethodGet, "/api/stock-data/AAPL", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStockDataRateLimited(t *testing.T) {
	fx := newAPIFixture(t)
	fx.gateway.intradayErr = repository.ErrRateLimited

	rec := fx.request(http.MethodGet, "/api/stock-data/AAPL", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAddStockValidation(t *testing.T) {
	fx := newAPIFixture(t)
	rec := fx.request(http.MethodPost, "/api/add-stock", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddStockUnknownTicker(t *testing.T) {
	fx := newAPIFixture(t)
	fx.gateway.quote = nil
	fx.gateway.quoteErr = repository.ErrSymbolNotFound

	rec := fx.request(http.MethodPost, "/api/add-stock", `{"symbol":"NOPE"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddStockExistingSymbol(t *testing.T) {
	fx := newAPIFixture(t)
	// already registered, so no background cycle starts and the response is
	// the immediate estimate
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, 20)
	for i := range bars {
		bars[i] = models.PriceBar{Time: start.AddDate(0, 0, i), Close: 100 + float64(i)}
	}
	fx.gateway.history = bars

	rec := fx.request(http.MethodPost, "/api/add-stock", `{"symbol":"aapl"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, "AAPL", data["symbol"])
	assert.Equal(t, "AAPL Inc", data["name"])
	assert.Equal(t, 105.0, data["currentPrice"])
	assert.Equal(t, "UP", data["direction"])
	assert.Greater(t, data["prediction"].(float64), 105.0)
}

func TestAddStockPrefersCachedForecast(t *testing.T) {
	fx := newAPIFixture(t)
	// drift over the month points up, but the published forecast says DOWN
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, 20)
	for i := range bars {
		bars[i] = models.PriceBar{Time: start.AddDate(0, 0, i), Close: 100 + float64(i)}
	}
	fx.gateway.history = bars
	fx.cache.Put(models.Prediction{Symbol: "AAPL", Direction: models.DirectionDown, Confidence: 0.8})

	rec := fx.request(http.MethodPost, "/api/add-stock", `{"symbol":"AAPL"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, "DOWN", data["direction"])
	assert.Equal(t, 80.0, data["confidence"])
	assert.Less(t, data["prediction"].(float64), 105.0)
}

func TestSearchEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	fx.gateway.results = []models.SearchResult{
		{Symbol: "AAPL", Name: "Apple Inc", Price: 105, MarketCap: "3.2T", Volume: "N/A"},
	}
	rec := fx.request(http.MethodGet, "/api/search/apple", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "AAPL", envelope.Data[0]["symbol"])
}

func TestMarketOverviewEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	fx.gateway.history = []models.PriceBar{
		{Time: start, Close: 100, Volume: 1e6},
		{Time: start.AddDate(0, 0, 1), Close: 102, Volume: 1.2e6},
	}

	rec := fx.request(http.MethodGet, "/api/market-overview", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	sentiment := data["sentiment"].(map[string]interface{})
	sum := sentiment["bullish"].(float64) + sentiment["bearish"].(float64) + sentiment["neutral"].(float64)
	assert.Equal(t, 100.0, sum)
}
