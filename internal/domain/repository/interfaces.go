package repository

import (
	"context"

	"StockPulse/internal/domain/models"
)

// MarketData is the uniform gateway over the external quote/history/search
// provider. Implementations own retries, rate limiting and per-call timeouts
// and must be safe to call concurrently for distinct symbols.
type MarketData interface {
	// FetchHistory returns up to lookbackDays of daily bars, oldest first.
	FetchHistory(ctx context.Context, symbol string, lookbackDays int) ([]models.PriceBar, error)
	// FetchIntraday returns the current-session price series plus the
	// resolution that actually produced data ("5min", "hourly", ...).
	FetchIntraday(ctx context.Context, symbol string) ([]models.IntradayPoint, string, error)
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
	FetchProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// MarketStream delivers live trades over a persistent connection.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.LiveTrade, <-chan error)
	Reconnect(ctx context.Context, symbols []string) error
	Close() error
	IsConnected() bool
}

// BarArchive persists fetched daily bars for offline analysis.
type BarArchive interface {
	Init(ctx context.Context) error
	StoreBars(ctx context.Context, symbol string, bars []models.PriceBar) error
	Close() error
}

// EventPublisher emits prediction events to downstream consumers.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, p *models.Prediction) error
	Close() error
}

// Metrics records operational telemetry for the prediction engine.
type Metrics interface {
	RecordCycle(symbol, result string)
	RecordCycleDuration(symbol string, seconds float64)
	RecordProviderError(kind string)
	RecordPrediction(symbol string, confidence, accuracy float64)
	RecordLastPrice(symbol string, price float64)
}
