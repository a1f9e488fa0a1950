package api

import (
	"context"
	"math"
	"time"

	"github.com/labstack/echo/v4"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/model"
	svccache "StockPulse/internal/service/cache"
	svcmetrics "StockPulse/internal/service/metrics"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	xlogger "StockPulse/pkg/logger"
)

// PredictionsEchoHandler serves the prediction snapshot, performance stats
// and symbol onboarding.
type PredictionsEchoHandler struct {
	logger    *xlogger.Logger
	cache     *svccache.Predictions
	store     *model.Store
	registry  *usecase.Registry
	scheduler *usecase.Scheduler
	gateway   repository.MarketData
}

func NewPredictionsEchoHandler(
	logger *xlogger.Logger,
	cache *svccache.Predictions,
	store *model.Store,
	registry *usecase.Registry,
	scheduler *usecase.Scheduler,
	gateway repository.MarketData,
) *PredictionsEchoHandler {
	svcmetrics.Register()
	return &PredictionsEchoHandler{
		logger:    logger,
		cache:     cache,
		store:     store,
		registry:  registry,
		scheduler: scheduler,
		gateway:   gateway,
	}
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/predict", h.Predict)
	g.GET("/stats", h.Stats)
	g.POST("/add-stock", h.AddStock)
}

// Predict returns the full serving snapshot: every tracked symbol's latest
// forecast plus aggregate performance. It never blocks on a cycle in flight.
func (h *PredictionsEchoHandler) Predict(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.cache.Snapshot())
}

// Stats returns the aggregate accuracy figures.
func (h *PredictionsEchoHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.store.Performance())
}

// AddStock onboards a ticker: validates it against the provider, registers
// it, kicks off its first training cycle in the background and answers with
// a quick mean-reversion estimate so the caller sees something immediately.
func (h *PredictionsEchoHandler) AddStock(c echo.Context) error {
	start := time.Now()
	defer func() {
		svcmetrics.APILatency.WithLabelValues("add-stock").Observe(time.Since(start).Seconds())
	}()

	req := &models.AddStockRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	_, added, err := h.registry.Register(ctx, req.Symbol)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("add-stock").Inc()
		h.logger.Warn("add-stock rejected", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, translate(err))
	}
	symbol := usecase.Normalize(req.Symbol)
	if added {
		h.scheduler.KickOff(symbol)
	}

	res, err := h.firstLook(ctx, symbol)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("add-stock").Inc()
		h.logger.Error("add-stock estimate failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, translate(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// firstLook builds the immediate response for a freshly added symbol. A
// cached model forecast wins when one exists; otherwise the direction and
// confidence come from the last month's drift around its mean.
func (h *PredictionsEchoHandler) firstLook(ctx context.Context, symbol string) (*models.AddStockResponse, error) {
	quote, err := h.gateway.FetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	profile, err := h.gateway.FetchProfile(ctx, symbol)
	if err != nil {
		return nil, err
	}

	direction := models.DirectionUp
	predicted := quote.Current
	confidence := 60.0

	cached, hasModel := h.cache.Get(symbol)
	hasModel = hasModel && cached.Direction != models.DirectionError
	if hasModel {
		direction = cached.Direction
		confidence = round1(cached.Confidence * 100)
	}

	if history, err := h.gateway.FetchHistory(ctx, symbol, 30); err == nil && len(history) > 0 {
		sum := 0.0
		for _, bar := range history {
			sum += bar.Close
		}
		mean := sum / float64(len(history))
		last := history[len(history)-1].Close
		gap := math.Abs(last-mean) / mean

		// the drift estimate fills in only until a model forecast exists
		if !hasModel {
			if last > mean {
				direction = models.DirectionUp
			} else {
				direction = models.DirectionDown
			}
			confidence = round1(math.Min(95, 60+gap*500))
		}
		if direction == models.DirectionUp {
			predicted = quote.Current * (1 + gap*0.5)
		} else {
			predicted = quote.Current * (1 - gap*0.5)
		}
	}

	return &models.AddStockResponse{
		Symbol:       symbol,
		Name:         profile.Name,
		CurrentPrice: round2(quote.Current),
		Prediction:   round2(predicted),
		Confidence:   confidence,
		Direction:    string(direction),
	}, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
