package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/features"
	"StockPulse/pkg/logger"
)

// StoreConfig carries the training hyperparameters and persistence location.
type StoreConfig struct {
	Dir            string
	Trees          int
	MaxDepth       int
	Seed           int64
	MinRows        int
	AccuracyWindow int
}

// Artifact is one trained model for one symbol, persisted as JSON alongside
// its outcome ledger.
type Artifact struct {
	Symbol          string  `json:"symbol"`
	TrainedAt       string  `json:"trained_at"`
	SchemaVersion   int     `json:"feature_schema_version"`
	RowCount        int     `json:"row_count"`
	HoldoutAccuracy float64 `json:"holdout_accuracy"`
	Forest          *Forest `json:"forest"`
}

type symbolFile struct {
	Artifact *Artifact        `json:"artifact,omitempty"`
	Ledger   []models.Outcome `json:"ledger,omitempty"`
}

// Store keeps trained artifacts and per-symbol outcome ledgers, mirrored to
// one JSON file per symbol under the configured directory.
type Store struct {
	cfg StoreConfig
	log *logger.Logger

	mu     sync.RWMutex
	models map[string]*Artifact
	ledger map[string][]models.Outcome
}

func NewStore(cfg StoreConfig, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	s := &Store{
		cfg:    cfg,
		log:    log,
		models: make(map[string]*Artifact),
		ledger: make(map[string][]models.Outcome),
	}
	s.loadAll()
	return s, nil
}

// Train fits a fresh forest for the symbol. The last fifth of the rows, in
// order, is held out for the artifact's accuracy estimate so the score
// reflects unseen later days.
func (s *Store) Train(symbol string, set *features.TrainingSet) (*Artifact, error) {
	rows := set.Rows
	if len(rows) < s.cfg.MinRows {
		return nil, fmt.Errorf("%w: %s has %d usable rows, need %d",
			repository.ErrTrainingFailed, symbol, len(rows), s.cfg.MinRows)
	}

	vectors := make([][]float64, len(rows))
	labels := make([]int, len(rows))
	classes := map[int]bool{}
	for i, r := range rows {
		vectors[i] = r.Features
		labels[i] = r.Label
		classes[r.Label] = true
	}
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: %s history has a single direction class",
			repository.ErrTrainingFailed, symbol)
	}

	cut := len(rows) * 4 / 5
	forest := TrainForest(vectors[:cut], labels[:cut], ForestConfig{
		Trees:    s.cfg.Trees,
		MaxDepth: s.cfg.MaxDepth,
		Seed:     s.cfg.Seed,
	})

	art := &Artifact{
		Symbol:          symbol,
		TrainedAt:       time.Now().UTC().Format(time.RFC3339),
		SchemaVersion:   set.SchemaVersion,
		RowCount:        cut,
		HoldoutAccuracy: forest.Accuracy(vectors[cut:], labels[cut:]),
		Forest:          forest,
	}

	s.mu.Lock()
	s.models[symbol] = art
	err := s.saveLocked(symbol)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("persist model for %s: %w", symbol, err)
	}
	return art, nil
}

// Predict classifies one feature vector with the symbol's current model.
func (s *Store) Predict(symbol string, vec []float64) (models.Direction, float64, error) {
	s.mu.RLock()
	art, ok := s.models[symbol]
	s.mu.RUnlock()
	if !ok || art.Forest == nil {
		return models.DirectionError, 0, fmt.Errorf("%w: %s", repository.ErrNoModel, symbol)
	}
	cls, conf := art.Forest.Predict(vec)
	if cls == 1 {
		return models.DirectionUp, conf, nil
	}
	return models.DirectionDown, conf, nil
}

// Has reports whether a trained model exists for the symbol.
func (s *Store) Has(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[symbol]
	return ok
}

// RecordOutcome adds a settled prediction to the symbol's ledger. A repeat
// call for the same date overwrites the earlier entry in place, so a retried
// or corrected settlement updates the record instead of duplicating it.
func (s *Store) RecordOutcome(symbol string, out models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, have := range s.ledger[symbol] {
		if have.Date == out.Date {
			s.ledger[symbol][i] = out
			return s.saveLocked(symbol)
		}
	}
	s.ledger[symbol] = append(s.ledger[symbol], out)
	return s.saveLocked(symbol)
}

// RollingAccuracy is the correct fraction over the trailing window of settled
// outcomes. Before any outcomes exist it falls back to the train-time holdout
// score so a fresh model still reports something meaningful.
func (s *Store) RollingAccuracy(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rollingLocked(symbol)
}

func (s *Store) rollingLocked(symbol string) float64 {
	outcomes := s.ledger[symbol]
	if len(outcomes) == 0 {
		if art, ok := s.models[symbol]; ok {
			return art.HoldoutAccuracy
		}
		return 0
	}
	if w := s.cfg.AccuracyWindow; w > 0 && len(outcomes) > w {
		outcomes = outcomes[len(outcomes)-w:]
	}
	correct := 0
	for _, o := range outcomes {
		if o.Correct() {
			correct++
		}
	}
	return float64(correct) / float64(len(outcomes))
}

// Performance aggregates accuracy across every symbol's ledger. With no
// settled outcomes anywhere it averages the holdout scores instead.
func (s *Store) Performance() models.Performance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, correct := 0, 0
	for _, outcomes := range s.ledger {
		for _, o := range outcomes {
			total++
			if o.Correct() {
				correct++
			}
		}
	}
	if total > 0 {
		return models.Performance{
			Accuracy:         float64(correct) / float64(total),
			TotalPredictions: total,
		}
	}

	sum, n := 0.0, 0
	for _, art := range s.models {
		sum += art.HoldoutAccuracy
		n++
	}
	if n == 0 {
		return models.Performance{}
	}
	return models.Performance{Accuracy: sum / float64(n), TotalPredictions: 0}
}

func (s *Store) saveLocked(symbol string) error {
	payload := symbolFile{
		Artifact: s.models[symbol],
		Ledger:   s.ledger[symbol],
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	path := s.path(symbol)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) loadAll() {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		symbol := strings.TrimSuffix(e.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(s.cfg.Dir, e.Name()))
		if err != nil {
			continue
		}
		var payload symbolFile
		if err := json.Unmarshal(data, &payload); err != nil {
			s.log.Warn("skipping unreadable model file", logger.String("file", e.Name()))
			continue
		}
		if payload.Artifact != nil {
			if payload.Artifact.SchemaVersion != features.SchemaVersion {
				s.log.Warn("discarding model with stale feature schema",
					logger.String("symbol", symbol),
					logger.Int("have", payload.Artifact.SchemaVersion),
					logger.Int("want", features.SchemaVersion))
			} else {
				s.models[symbol] = payload.Artifact
			}
		}
		if len(payload.Ledger) > 0 {
			s.ledger[symbol] = payload.Ledger
		}
	}
}

func (s *Store) path(symbol string) string {
	return filepath.Join(s.cfg.Dir, symbol+".json")
}
