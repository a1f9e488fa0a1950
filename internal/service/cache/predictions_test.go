package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
	pkgcache "StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
)

func TestPutAndGet(t *testing.T) {
	p := NewPredictions(nil, logger.Nop())
	_, ok := p.Get("AAPL")
	assert.False(t, ok)

	p.Put(models.Prediction{Symbol: "AAPL", Direction: models.DirectionUp, Confidence: 0.8})
	pred, ok := p.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, models.DirectionUp, pred.Direction)

	snap := p.Snapshot()
	assert.NotEmpty(t, snap.LastUpdated)
	assert.NotEmpty(t, snap.PredictionDate)

	d, err := time.Parse("2006-01-02", snap.PredictionDate)
	require.NoError(t, err)
	assert.NotEqual(t, time.Saturday, d.Weekday())
	assert.NotEqual(t, time.Sunday, d.Weekday())
}

func TestPutOverwrites(t *testing.T) {
	p := NewPredictions(nil, logger.Nop())
	p.Put(models.Prediction{Symbol: "AAPL", Direction: models.DirectionUp})
	p.Put(models.Prediction{Symbol: "AAPL", Direction: models.DirectionDown})

	pred, ok := p.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, models.DirectionDown, pred.Direction)
	assert.Len(t, p.Snapshot().Predictions, 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	p := NewPredictions(nil, logger.Nop())
	p.Put(models.Prediction{Symbol: "AAPL", Direction: models.DirectionUp})

	snap := p.Snapshot()
	snap.Predictions["MSFT"] = models.Prediction{Symbol: "MSFT"}

	_, ok := p.Get("MSFT")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	p := NewPredictions(nil, logger.Nop())
	p.Put(models.Prediction{Symbol: "AAPL", Direction: models.DirectionUp})
	p.Remove("AAPL")
	_, ok := p.Get("AAPL")
	assert.False(t, ok)
}

func TestRemoteMirrorAndWarmLoad(t *testing.T) {
	remote := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = remote.Close() })

	first := NewPredictions(remote, logger.Nop())
	first.Put(models.Prediction{Symbol: "NVDA", Direction: models.DirectionUp, Confidence: 0.7})
	first.SetPerformance(models.Performance{Accuracy: 0.8, TotalPredictions: 12})

	// the snapshot is mirrored, so a fresh instance warm-loads it
	second := NewPredictions(remote, logger.Nop())
	pred, ok := second.Get("NVDA")
	require.True(t, ok)
	assert.Equal(t, models.DirectionUp, pred.Direction)
	assert.Equal(t, 12, second.Snapshot().Performance.TotalPredictions)

	// sanity: the mirrored payload round-trips through the cache codec
	var raw Snapshot
	require.NoError(t, remote.Get(context.Background(), snapshotKey, &raw))
	assert.Equal(t, 0.7, raw.Predictions["NVDA"].Confidence)
}
