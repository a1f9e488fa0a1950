package usecase

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/pkg/config"
	"StockPulse/pkg/logger"
)

// indexNames maps index proxy tickers to display names.
var indexNames = map[string]string{
	"SPY": "S&P 500",
	"QQQ": "NASDAQ 100",
	"DIA": "Dow Jones",
	"IWM": "Russell 2000",
}

const moverLimit = 3

// Aggregator assembles the market overview: index quotes, top movers over
// the tracked universe, a bullish/bearish/neutral split, and cross-sectional
// stats. Snapshots are cached for the configured TTL so a burst of overview
// requests costs one provider sweep.
type Aggregator struct {
	gateway  repository.MarketData
	registry *Registry
	cfg      config.Config
	log      *logger.Logger

	mu       sync.Mutex
	snapshot *models.MarketOverview
	builtAt  time.Time
}

func NewAggregator(gateway repository.MarketData, registry *Registry, cfg config.Config, log *logger.Logger) *Aggregator {
	return &Aggregator{gateway: gateway, registry: registry, cfg: cfg, log: log}
}

// Overview returns the current snapshot, rebuilding it when the cached one
// has aged past the TTL.
func (a *Aggregator) Overview(ctx context.Context) (*models.MarketOverview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ttl := a.cfg.Aggregator.SnapshotTTL
	if a.snapshot != nil && ttl > 0 && time.Since(a.builtAt) < ttl {
		return a.snapshot, nil
	}

	snap, err := a.build(ctx)
	if err != nil {
		// Serve the stale snapshot over an error if we have one.
		if a.snapshot != nil {
			a.log.Warn("overview rebuild failed, serving stale snapshot", logger.Error(err))
			return a.snapshot, nil
		}
		return nil, err
	}
	a.snapshot = snap
	a.builtAt = time.Now()
	return snap, nil
}

// Start refreshes the snapshot on a fixed interval so reads rarely pay the
// provider sweep. Returns when ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) {
	every := a.cfg.Aggregator.RefreshEvery
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Overview(ctx); err != nil {
				a.log.Warn("scheduled overview refresh failed", logger.Error(err))
			}
		}
	}
}

type symbolDay struct {
	symbol        string
	price         float64
	percentChange float64
	volume        float64
}

func (a *Aggregator) build(ctx context.Context) (*models.MarketOverview, error) {
	indices := a.fetchIndices(ctx)

	var days []symbolDay
	for _, symbol := range a.registry.Symbols() {
		history, err := a.gateway.FetchHistory(ctx, symbol, 7)
		if err != nil || len(history) < 2 {
			if err != nil {
				a.log.Warn("skipping symbol in overview", logger.String("symbol", symbol), logger.Error(err))
			}
			continue
		}
		last, prev := history[len(history)-1], history[len(history)-2]
		change := 0.0
		if prev.Close != 0 {
			change = (last.Close - prev.Close) / prev.Close * 100
		}
		days = append(days, symbolDay{
			symbol:        symbol,
			price:         last.Close,
			percentChange: change,
			volume:        last.Volume,
		})
	}
	if len(days) == 0 && len(indices) == 0 {
		return nil, repository.ErrProviderUnavailable
	}

	gainers, losers := movers(days)
	return &models.MarketOverview{
		Indices:     indices,
		TopGainers:  gainers,
		TopLosers:   losers,
		Sentiment:   sentiment(days),
		Stats:       stats(days),
		LastUpdated: time.Now().UTC(),
	}, nil
}

func (a *Aggregator) fetchIndices(ctx context.Context) []models.IndexQuote {
	var out []models.IndexQuote
	for _, symbol := range a.cfg.Symbols.Watchlist {
		q, err := a.gateway.FetchQuote(ctx, symbol)
		if err != nil {
			a.log.Warn("skipping index in overview", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		name, ok := indexNames[symbol]
		if !ok {
			name = symbol
		}
		out = append(out, models.IndexQuote{
			Symbol:        symbol,
			Name:          name,
			Price:         q.Current,
			Change:        q.Current - q.PrevClose,
			PercentChange: q.PercentChange,
		})
	}
	return out
}

func movers(days []symbolDay) (gainers, losers []models.Mover) {
	sorted := make([]symbolDay, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].percentChange > sorted[j].percentChange
	})

	for i := 0; i < len(sorted) && i < moverLimit; i++ {
		if sorted[i].percentChange <= 0 {
			break
		}
		gainers = append(gainers, models.Mover{
			Symbol:        sorted[i].symbol,
			Price:         sorted[i].price,
			PercentChange: sorted[i].percentChange,
		})
	}
	for i := len(sorted) - 1; i >= 0 && len(losers) < moverLimit; i-- {
		if sorted[i].percentChange >= 0 {
			break
		}
		losers = append(losers, models.Mover{
			Symbol:        sorted[i].symbol,
			Price:         sorted[i].price,
			PercentChange: sorted[i].percentChange,
		})
	}
	return gainers, losers
}

// sentiment buckets symbols at a half-percent threshold. Neutral is derived
// as the remainder so the three shares always total exactly 100.
func sentiment(days []symbolDay) models.Sentiment {
	if len(days) == 0 {
		return models.Sentiment{Neutral: 100}
	}
	bullish, bearish := 0, 0
	for _, d := range days {
		switch {
		case d.percentChange > 0.5:
			bullish++
		case d.percentChange < -0.5:
			bearish++
		}
	}
	total := float64(len(days))
	b := int(math.Round(float64(bullish) / total * 100))
	s := int(math.Round(float64(bearish) / total * 100))
	if b+s > 100 {
		s = 100 - b
	}
	return models.Sentiment{Bullish: b, Bearish: s, Neutral: 100 - b - s}
}

func stats(days []symbolDay) models.MarketStats {
	var st models.MarketStats
	if len(days) == 0 {
		return st
	}
	sum := 0.0
	for _, d := range days {
		st.TotalVolume += d.volume
		sum += d.percentChange
		if d.percentChange > 0 {
			st.AdvancerCount++
		} else if d.percentChange < 0 {
			st.DeclinerCount++
		}
	}
	mean := sum / float64(len(days))
	st.AvgChange = mean

	variance := 0.0
	for _, d := range days {
		variance += (d.percentChange - mean) * (d.percentChange - mean)
	}
	st.Volatility = math.Sqrt(variance / float64(len(days)))
	return st
}
