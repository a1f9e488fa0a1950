package repository

import (
	"context"
	"fmt"

	"StockPulse/internal/domain/models"
	"StockPulse/pkg/clickhouse"
	"StockPulse/pkg/logger"
)

const dailyBarsSchema = `
CREATE TABLE IF NOT EXISTS daily_bars (
    symbol   LowCardinality(String),
    day      Date,
    open     Float64,
    high     Float64,
    low      Float64,
    close    Float64,
    volume   Float64
) ENGINE = ReplacingMergeTree()
ORDER BY (symbol, day)`

// ClickHouseBarStore archives fetched daily OHLCV history. The table uses a
// ReplacingMergeTree keyed on (symbol, day) so re-fetching the same range is
// idempotent after merges.
type ClickHouseBarStore struct {
	client *clickhouse.Client
	log    *logger.Logger
}

func NewClickHouseBarStore(client *clickhouse.Client, log *logger.Logger) *ClickHouseBarStore {
	return &ClickHouseBarStore{client: client, log: log}
}

func (s *ClickHouseBarStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, []string{dailyBarsSchema})
}

func (s *ClickHouseBarStore) StoreBars(ctx context.Context, symbol string, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bar batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO daily_bars (symbol, day, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare bar insert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert bar %s %s: %w", symbol, bar.Date(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bar batch: %w", err)
	}
	s.log.Debug("archived daily bars",
		logger.String("symbol", symbol),
		logger.Int("bars", len(bars)))
	return nil
}

func (s *ClickHouseBarStore) Close() error {
	return s.client.Close()
}
