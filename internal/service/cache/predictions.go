package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

const snapshotKey = "predictions:snapshot"

// Snapshot is the full serving payload: every symbol's latest prediction plus
// the aggregate performance figures. It is what /api/predict returns.
type Snapshot struct {
	Predictions    map[string]models.Prediction `json:"predictions"`
	LastUpdated    string                       `json:"last_updated"`
	PredictionDate string                       `json:"prediction_date"`
	Performance    models.Performance           `json:"performance"`
}

// Predictions holds the in-memory snapshot. One writer (the training
// scheduler) updates it; reads never block on a cycle in progress. When a
// remote cache is attached the snapshot is mirrored there and warm-loaded on
// startup so restarts serve stale-but-real data immediately.
type Predictions struct {
	mu     sync.RWMutex
	snap   Snapshot
	remote cache.Service
	log    *logger.Logger
}

func NewPredictions(remote cache.Service, log *logger.Logger) *Predictions {
	p := &Predictions{
		snap:   Snapshot{Predictions: make(map[string]models.Prediction)},
		remote: remote,
		log:    log,
	}
	p.warmLoad()
	return p
}

// Put replaces one symbol's prediction and stamps the snapshot metadata.
func (p *Predictions) Put(pred models.Prediction) {
	p.mu.Lock()
	p.snap.Predictions[pred.Symbol] = pred
	p.snap.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	p.snap.PredictionDate = util.NextTradingDay(time.Now().UTC()).Format(util.DateLayout)
	p.mu.Unlock()
	p.mirror()
}

// SetPerformance updates the aggregate accuracy figures.
func (p *Predictions) SetPerformance(perf models.Performance) {
	p.mu.Lock()
	p.snap.Performance = perf
	p.mu.Unlock()
	p.mirror()
}

// Get returns one symbol's cached prediction, if present.
func (p *Predictions) Get(symbol string) (models.Prediction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pred, ok := p.snap.Predictions[symbol]
	return pred, ok
}

// Snapshot returns a copy of the current serving payload.
func (p *Predictions) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := p.snap
	out.Predictions = make(map[string]models.Prediction, len(p.snap.Predictions))
	for k, v := range p.snap.Predictions {
		out.Predictions[k] = v
	}
	return out
}

// Remove drops a symbol from the snapshot.
func (p *Predictions) Remove(symbol string) {
	p.mu.Lock()
	delete(p.snap.Predictions, symbol)
	p.mu.Unlock()
	p.mirror()
}

func (p *Predictions) mirror() {
	if p.remote == nil {
		return
	}
	snap := p.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.remote.Set(ctx, snapshotKey, snap, 0); err != nil {
		p.log.Warn("failed to mirror prediction snapshot", logger.Error(err))
	}
}

func (p *Predictions) warmLoad() {
	if p.remote == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var snap Snapshot
	if err := p.remote.Get(ctx, snapshotKey, &snap); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.log.Warn("failed to warm-load prediction snapshot", logger.Error(err))
		}
		return
	}
	if snap.Predictions == nil {
		snap.Predictions = make(map[string]models.Prediction)
	}
	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
	p.log.Info("warm-loaded prediction snapshot",
		logger.Int("symbols", len(snap.Predictions)),
		logger.String("last_updated", snap.LastUpdated))
}
