package model

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/features"
	"StockPulse/pkg/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(StoreConfig{
		Dir:            t.TempDir(),
		Trees:          25,
		MaxDepth:       6,
		Seed:           42,
		MinRows:        30,
		AccuracyWindow: 5,
	}, logger.Nop())
	require.NoError(t, err)
	return s
}

// trainingSet builds a deterministic learnable set: the label tracks whether
// the close sits below a wave midline, so a tree can actually separate it.
func trainingSet(rows int) *features.TrainingSet {
	set := &features.TrainingSet{SchemaVersion: features.SchemaVersion}
	for i := 0; i < rows; i++ {
		up := i%2 == 0
		label := 0
		close := 95.0
		if up {
			label = 1
			close = 105.0
		}
		set.Rows = append(set.Rows, features.Row{
			Date:     "2025-01-02",
			Features: []float64{close - 1, close + 1, close - 2, close, 1e6, close, 100, float64(30 + i%40)},
			Label:    label,
		})
	}
	set.Inference = []float64{104, 106, 103, 105, 1e6, 105, 100, 55}
	set.InferenceDate = "2025-06-30"
	return set
}

func singleClassSet(rows int) *features.TrainingSet {
	set := trainingSet(rows)
	for i := range set.Rows {
		set.Rows[i].Label = 1
	}
	return set
}

func TestTrainAndPredict(t *testing.T) {
	s := testStore(t)
	art, err := s.Train("AAPL", trainingSet(100))
	require.NoError(t, err)
	assert.Equal(t, features.SchemaVersion, art.SchemaVersion)
	assert.Equal(t, 80, art.RowCount)
	assert.Greater(t, art.HoldoutAccuracy, 0.5)

	dir, conf, err := s.Predict("AAPL", trainingSet(100).Inference)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionUp, dir)
	assert.GreaterOrEqual(t, conf, 0.5)
	assert.LessOrEqual(t, conf, 1.0)
}

func TestTrainDeterministic(t *testing.T) {
	a := testStore(t)
	b := testStore(t)
	artA, err := a.Train("MSFT", trainingSet(80))
	require.NoError(t, err)
	artB, err := b.Train("MSFT", trainingSet(80))
	require.NoError(t, err)

	assert.Equal(t, artA.HoldoutAccuracy, artB.HoldoutAccuracy)
	dirA, confA, err := a.Predict("MSFT", trainingSet(80).Inference)
	require.NoError(t, err)
	dirB, confB, err := b.Predict("MSFT", trainingSet(80).Inference)
	require.NoError(t, err)
	assert.Equal(t, dirA, dirB)
	assert.Equal(t, confA, confB)
}

func TestTrainTooFewRows(t *testing.T) {
	s := testStore(t)
	_, err := s.Train("AAPL", trainingSet(10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrTrainingFailed))
}

func TestTrainSingleClass(t *testing.T) {
	s := testStore(t)
	_, err := s.Train("AAPL", singleClassSet(60))
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrTrainingFailed))
}

func TestPredictWithoutModel(t *testing.T) {
	s := testStore(t)
	_, _, err := s.Predict("TSLA", trainingSet(40).Inference)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrNoModel))
}

func TestRecordOutcomeOverwritesSameDate(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.RecordOutcome("AAPL", models.Outcome{
		Date: "2025-06-27", Predicted: models.DirectionUp, Actual: models.DirectionDown,
	}))
	assert.Equal(t, 0.0, s.RollingAccuracy("AAPL"))

	// corrected settlement for the same date replaces the entry
	require.NoError(t, s.RecordOutcome("AAPL", models.Outcome{
		Date: "2025-06-27", Predicted: models.DirectionUp, Actual: models.DirectionUp,
	}))
	assert.Equal(t, 1.0, s.RollingAccuracy("AAPL"))
	perf := s.Performance()
	assert.Equal(t, 1, perf.TotalPredictions)
}

func TestRollingAccuracyWindow(t *testing.T) {
	s := testStore(t)
	dates := []string{"2025-06-16", "2025-06-17", "2025-06-18", "2025-06-19", "2025-06-20", "2025-06-23", "2025-06-24"}
	for i, d := range dates {
		actual := models.DirectionDown
		// only the last five (the window) are correct
		if i >= 2 {
			actual = models.DirectionUp
		}
		require.NoError(t, s.RecordOutcome("NVDA", models.Outcome{
			Date: d, Predicted: models.DirectionUp, Actual: actual,
		}))
	}
	assert.Equal(t, 1.0, s.RollingAccuracy("NVDA"))
}

func TestRollingAccuracyFallsBackToHoldout(t *testing.T) {
	s := testStore(t)
	art, err := s.Train("AMZN", trainingSet(100))
	require.NoError(t, err)
	assert.Equal(t, art.HoldoutAccuracy, s.RollingAccuracy("AMZN"))
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := StoreConfig{Dir: dir, Trees: 10, MaxDepth: 4, Seed: 42, MinRows: 30, AccuracyWindow: 5}

	first, err := NewStore(cfg, logger.Nop())
	require.NoError(t, err)
	_, err = first.Train("GOOGL", trainingSet(60))
	require.NoError(t, err)
	require.NoError(t, first.RecordOutcome("GOOGL", models.Outcome{
		Date: "2025-06-27", Predicted: models.DirectionUp, Actual: models.DirectionUp,
	}))

	second, err := NewStore(cfg, logger.Nop())
	require.NoError(t, err)
	assert.True(t, second.Has("GOOGL"))
	assert.Equal(t, 1.0, second.RollingAccuracy("GOOGL"))

	wantDir, wantConf, err := first.Predict("GOOGL", trainingSet(60).Inference)
	require.NoError(t, err)
	gotDir, gotConf, err := second.Predict("GOOGL", trainingSet(60).Inference)
	require.NoError(t, err)
	assert.Equal(t, wantDir, gotDir)
	assert.Equal(t, wantConf, gotConf)
}

func TestStaleSchemaDiscardedOnLoad(t *testing.T) {
	dir := t.TempDir()
	stale := symbolFile{
		Artifact: &Artifact{
			Symbol:        "INTC",
			SchemaVersion: features.SchemaVersion + 1,
			Forest:        &Forest{NumFeatures: 8},
		},
		Ledger: []models.Outcome{
			{Date: "2025-06-27", Predicted: models.DirectionUp, Actual: models.DirectionUp},
		},
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "INTC.json"), data, 0o644))

	s, err := NewStore(StoreConfig{Dir: dir, Trees: 10, MaxDepth: 4, Seed: 42, MinRows: 30, AccuracyWindow: 5}, logger.Nop())
	require.NoError(t, err)
	assert.False(t, s.Has("INTC"))
	// the outcome ledger survives a schema bump
	assert.Equal(t, 1.0, s.RollingAccuracy("INTC"))
}

func TestForestVoteConfidenceBounds(t *testing.T) {
	set := trainingSet(60)
	vectors := make([][]float64, len(set.Rows))
	labels := make([]int, len(set.Rows))
	for i, r := range set.Rows {
		vectors[i] = r.Features
		labels[i] = r.Label
	}
	f := TrainForest(vectors, labels, ForestConfig{Trees: 15, MaxDepth: 4, Seed: 7})
	_, conf := f.Predict(set.Inference)
	assert.GreaterOrEqual(t, conf, 0.5)
	assert.LessOrEqual(t, conf, 1.0)
}
