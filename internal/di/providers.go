package di

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/domain/repository"
	"StockPulse/internal/features"
	"StockPulse/internal/handler/api"
	"StockPulse/internal/model"
	internalrepo "StockPulse/internal/repository"
	svccache "StockPulse/internal/service/cache"
	"StockPulse/internal/service/finnhub"
	"StockPulse/internal/usecase"
	pkgcache "StockPulse/pkg/cache"
	pkgch "StockPulse/pkg/clickhouse"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
	"StockPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideGateway creates the Finnhub market data client.
func ProvideGateway(cfg *config.Config) repository.MarketData {
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.BaseURL,
		cfg.Finnhub.RequestTimeout,
		finnhub.WithRetries(cfg.Finnhub.MaxRetries, cfg.Finnhub.RetryBackoff),
		finnhub.WithRate(cfg.Finnhub.RateCapacity, cfg.Finnhub.RateRefill),
	)
}

// ProvideStream creates the Finnhub WebSocket stream, or nil when streaming
// is disabled.
func ProvideStream(cfg *config.Config) repository.MarketStream {
	if !cfg.Finnhub.StreamEnabled {
		return nil
	}
	return finnhub.NewStream(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
	)
}

// ProvideRemoteCache creates the layered Redis cache backing the prediction
// snapshot, or nil when Redis is disabled.
func ProvideRemoteCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvidePredictions creates the in-memory prediction snapshot cache.
func ProvidePredictions(remote pkgcache.Service, log *logger.Logger) *svccache.Predictions {
	return svccache.NewPredictions(remote, log)
}

// ProvideBuilder creates the feature builder.
func ProvideBuilder() *features.Builder {
	return features.NewBuilder()
}

// ProvideModelStore creates the model store and loads persisted artifacts.
func ProvideModelStore(cfg *config.Config, log *logger.Logger) (*model.Store, error) {
	return model.NewStore(model.StoreConfig{
		Dir:            cfg.Train.ModelDir,
		Trees:          cfg.Train.Trees,
		MaxDepth:       cfg.Train.MaxDepth,
		Seed:           cfg.Train.Seed,
		MinRows:        cfg.Train.MinRows,
		AccuracyWindow: cfg.Train.AccuracyWindow,
	}, log)
}

// ProvideRegistry seeds the symbol registry with the configured defaults.
func ProvideRegistry(cfg *config.Config, gateway repository.MarketData, log *logger.Logger) *usecase.Registry {
	return usecase.NewRegistry(cfg.Symbols.Defaults, gateway, log)
}

// ProvideArchive creates the ClickHouse bar archive, or nil when disabled.
// The schema is initialized here so the app starts with the table ready.
func ProvideArchive(cfg *config.Config, log *logger.Logger) (repository.BarArchive, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	archive := internalrepo.NewClickHouseBarStore(client, log)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return archive, nil
}

// ProvidePublisher creates the Kafka prediction publisher, or nil when disabled.
func ProvidePublisher(cfg *config.Config, log *logger.Logger) (repository.EventPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, log), nil
}

// ProvideScheduler wires the training scheduler with its optional sinks.
func ProvideScheduler(
	gateway repository.MarketData,
	builder *features.Builder,
	store *model.Store,
	cache *svccache.Predictions,
	registry *usecase.Registry,
	m repository.Metrics,
	archive repository.BarArchive,
	publisher repository.EventPublisher,
	cfg *config.Config,
	log *logger.Logger,
) *usecase.Scheduler {
	var opts []usecase.SchedulerOption
	if archive != nil {
		opts = append(opts, usecase.WithArchive(archive))
	}
	if publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
	}
	return usecase.NewScheduler(gateway, builder, store, cache, registry, m, *cfg, log, opts...)
}

// ProvideAggregator creates the market overview aggregator.
func ProvideAggregator(gateway repository.MarketData, registry *usecase.Registry, cfg *config.Config, log *logger.Logger) *usecase.Aggregator {
	return usecase.NewAggregator(gateway, registry, *cfg, log)
}

// ProvideHTTPHandler bundles all route groups into one registrable handler.
func ProvideHTTPHandler(
	log *logger.Logger,
	cache *svccache.Predictions,
	store *model.Store,
	registry *usecase.Registry,
	scheduler *usecase.Scheduler,
	gateway repository.MarketData,
	agg *usecase.Aggregator,
) xhttp.Handler {
	return server.Handlers{
		api.NewPredictionsEchoHandler(log, cache, store, registry, scheduler, gateway),
		api.NewMarketEchoHandler(log, gateway, agg),
	}
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	scheduler *usecase.Scheduler,
	agg *usecase.Aggregator,
	stream repository.MarketStream,
	archive repository.BarArchive,
	publisher repository.EventPublisher,
	remote pkgcache.Service,
	m repository.Metrics,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, scheduler, agg, stream, archive, publisher, remote, m, handler)
}
