package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	"StockPulse/internal/domain/repository"
	"StockPulse/internal/usecase"
	pkgcache "StockPulse/pkg/cache"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	"StockPulse/pkg/logger"
)

// Handlers registers several route groups as one handler.
type Handlers []xhttp.Handler

func (hs Handlers) RegisterRoutes(e *echo.Echo) {
	for _, h := range hs {
		h.RegisterRoutes(e)
	}
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	scheduler  *usecase.Scheduler
	aggregator *usecase.Aggregator
	stream     repository.MarketStream
	archive    repository.BarArchive
	publisher  repository.EventPublisher
	remote     pkgcache.Service
	metrics    repository.Metrics
	handler    xhttp.Handler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *logger.Logger,
	scheduler *usecase.Scheduler,
	aggregator *usecase.Aggregator,
	stream repository.MarketStream,
	archive repository.BarArchive,
	publisher repository.EventPublisher,
	remote pkgcache.Service,
	metrics repository.Metrics,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		scheduler:  scheduler,
		aggregator: aggregator,
		stream:     stream,
		archive:    archive,
		publisher:  publisher,
		remote:     remote,
		metrics:    metrics,
		handler:    handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	go a.aggregator.Start(ctx)

	if a.stream != nil {
		go a.consumeStream(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return err
	}
	a.log.Info("http server listening", logger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// consumeStream pipes live trades into the last-price gauge so dashboards
// track prices between training cycles.
func (a *App) consumeStream(ctx context.Context) {
	if err := a.stream.Connect(ctx); err != nil {
		a.log.Warn("stream connect failed", logger.Error(err))
		return
	}
	symbols := a.cfg.Symbols.Defaults
	if err := a.stream.Subscribe(ctx, symbols); err != nil {
		a.log.Warn("stream subscribe failed", logger.Error(err))
		return
	}
	a.log.Info("live trade stream started", logger.Strings("symbols", symbols))

	trades, errs := a.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case trade, ok := <-trades:
			if !ok {
				return
			}
			a.metrics.RecordLastPrice(trade.Symbol, trade.Price)
		case err, ok := <-errs:
			if !ok {
				return
			}
			a.log.Warn("stream error, reconnecting", logger.Error(err))
			if rerr := a.stream.Reconnect(ctx, symbols); rerr != nil {
				a.log.Error("stream reconnect failed", logger.Error(rerr))
				return
			}
			trades, errs = a.stream.Read(ctx)
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}

	if a.stream != nil {
		if err := a.stream.Close(); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stream close error", logger.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", logger.Error(err))
		}
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.log.Warn("archive close error", logger.Error(err))
		}
	}
	if a.remote != nil {
		if err := a.remote.Close(); err != nil {
			a.log.Warn("cache close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
