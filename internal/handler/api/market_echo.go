package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"StockPulse/internal/domain/repository"
	svcmetrics "StockPulse/internal/service/metrics"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	xlogger "StockPulse/pkg/logger"
)

// MarketEchoHandler serves raw market data: intraday charts, session
// summaries, symbol search and the aggregated overview.
type MarketEchoHandler struct {
	logger  *xlogger.Logger
	gateway repository.MarketData
	agg     *usecase.Aggregator
}

func NewMarketEchoHandler(logger *xlogger.Logger, gateway repository.MarketData, agg *usecase.Aggregator) *MarketEchoHandler {
	svcmetrics.Register()
	return &MarketEchoHandler{logger: logger, gateway: gateway, agg: agg}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/stock-data/:symbol", h.StockData)
	g.GET("/summary/:symbol", h.Summary)
	g.GET("/search/:query", h.Search)
	g.GET("/market-overview", h.Overview)
}

type stockDataResponse struct {
	Data []intradayPoint `json:"data"`
	Type string          `json:"type"`
}

type intradayPoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// StockData returns the freshest intraday series the provider has, walking
// down from five-minute bars to weekly closes until one resolution answers.
func (h *MarketEchoHandler) StockData(c echo.Context) error {
	start := time.Now()
	defer func() {
		svcmetrics.APILatency.WithLabelValues("stock-data").Observe(time.Since(start).Seconds())
	}()

	symbol := usecase.Normalize(c.Param("symbol"))
	points, kind, err := h.gateway.FetchIntraday(c.Request().Context(), symbol)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("stock-data").Inc()
		h.logger.Warn("stock-data fetch failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, translate(err))
	}
	res := stockDataResponse{Data: make([]intradayPoint, len(points)), Type: kind}
	for i, p := range points {
		res.Data[i] = intradayPoint{Timestamp: p.Timestamp, Price: p.Price}
	}
	return xhttp.SuccessResponse(c, res)
}

type summaryResponse struct {
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	PercentChange float64 `json:"percent_change"`
}

// Summary returns the current session's OHLC shape for one symbol.
func (h *MarketEchoHandler) Summary(c echo.Context) error {
	symbol := usecase.Normalize(c.Param("symbol"))
	quote, err := h.gateway.FetchQuote(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Warn("summary fetch failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, translate(err))
	}
	return xhttp.SuccessResponse(c, summaryResponse{
		Open:          quote.Open,
		High:          quote.High,
		Low:           quote.Low,
		Close:         quote.Current,
		PercentChange: quote.PercentChange,
	})
}

// Search looks up tickers by symbol or company name.
func (h *MarketEchoHandler) Search(c echo.Context) error {
	query := c.Param("query")
	results, err := h.gateway.Search(c.Request().Context(), query)
	if err != nil {
		h.logger.Warn("search failed", xlogger.String("query", query), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, translate(err))
	}
	return xhttp.SuccessResponse(c, results)
}

// Overview returns the aggregated market snapshot.
func (h *MarketEchoHandler) Overview(c echo.Context) error {
	start := time.Now()
	defer func() {
		svcmetrics.APILatency.WithLabelValues("market-overview").Observe(time.Since(start).Seconds())
	}()

	snap, err := h.agg.Overview(c.Request().Context())
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("market-overview").Inc()
		h.logger.Error("overview build failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, translate(err))
	}
	return xhttp.SuccessResponse(c, snap)
}
