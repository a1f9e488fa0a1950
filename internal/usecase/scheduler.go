package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/features"
	"StockPulse/internal/model"
	svccache "StockPulse/internal/service/cache"
	"StockPulse/pkg/config"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

// CycleState is the lifecycle position of one symbol's training cycle.
type CycleState string

const (
	StateIdle      CycleState = "idle"
	StateFetching  CycleState = "fetching"
	StateTraining  CycleState = "training"
	StateScoring   CycleState = "scoring"
	StatePublished CycleState = "published"
	StateFailed    CycleState = "failed"
)

// Scheduler drives the daily retrain-and-predict loop. One cycle per symbol:
// fetch history, settle the previous prediction against realized closes,
// retrain, score the latest day, publish. A symbol whose cycle is already in
// flight drops the duplicate request instead of queueing it.
type Scheduler struct {
	gateway   repository.MarketData
	builder   *features.Builder
	store     *model.Store
	cache     *svccache.Predictions
	registry  *Registry
	metrics   repository.Metrics
	publisher repository.EventPublisher
	archive   repository.BarArchive
	cfg       config.Config
	log       *logger.Logger

	cron *gocron.Scheduler

	mu     sync.Mutex
	states map[string]CycleState
}

// SchedulerOption customizes optional sinks.
type SchedulerOption func(*Scheduler)

// WithPublisher attaches an event sink that receives every published prediction.
func WithPublisher(p repository.EventPublisher) SchedulerOption {
	return func(s *Scheduler) { s.publisher = p }
}

// WithArchive attaches a bar archive that stores fetched daily history.
func WithArchive(a repository.BarArchive) SchedulerOption {
	return func(s *Scheduler) { s.archive = a }
}

func NewScheduler(
	gateway repository.MarketData,
	builder *features.Builder,
	store *model.Store,
	cache *svccache.Predictions,
	registry *Registry,
	metrics repository.Metrics,
	cfg config.Config,
	log *logger.Logger,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		gateway:  gateway,
		builder:  builder,
		store:    store,
		cache:    cache,
		registry: registry,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
		cron:     gocron.NewScheduler(time.UTC),
		states:   make(map[string]CycleState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs one full pass immediately so the cache is populated at boot,
// then schedules the daily retrain at the configured wall-clock time.
func (s *Scheduler) Start(ctx context.Context) error {
	go s.RunAll(ctx)

	_, err := s.cron.Every(1).Day().At(s.cfg.Train.At).Do(func() {
		s.RunAll(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.StartAsync()
	s.log.Info("training scheduler started", logger.String("daily_at", s.cfg.Train.At))
	return nil
}

// Stop halts the daily clock. In-flight cycles finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunAll cycles every registered symbol in order, then refreshes the
// aggregate performance figures on the cache.
func (s *Scheduler) RunAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, symbol := range s.registry.Symbols() {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			s.RunCycle(ctx, symbol)
		}(symbol)
	}
	wg.Wait()
	s.cache.SetPerformance(s.store.Performance())
}

// KickOff runs one symbol's cycle in the background, used when a symbol is
// added mid-day so it does not wait for the next scheduled pass.
func (s *Scheduler) KickOff(symbol string) {
	go func() {
		s.RunCycle(context.Background(), symbol)
		s.cache.SetPerformance(s.store.Performance())
	}()
}

// State returns the symbol's current cycle state.
func (s *Scheduler) State(symbol string) CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[symbol]; ok {
		return st
	}
	return StateIdle
}

// RunCycle executes one symbol's full cycle. A request for a symbol whose
// cycle is not idle is dropped.
func (s *Scheduler) RunCycle(ctx context.Context, symbol string) {
	if !s.tryBegin(symbol) {
		s.log.Debug("cycle already in flight, dropping request", logger.String("symbol", symbol))
		return
	}
	start := time.Now()
	err := s.cycle(ctx, symbol)
	elapsed := time.Since(start)
	s.metrics.RecordCycleDuration(symbol, elapsed.Seconds())

	if err != nil {
		s.setState(symbol, StateFailed)
		s.metrics.RecordCycle(symbol, "failure")
		s.log.Error("training cycle failed",
			logger.String("symbol", symbol),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		// Publish an explicit error marker so readers see a failed symbol
		// rather than a silently stale forecast. The accuracy ledger is
		// untouched by failures.
		s.cache.Put(models.Prediction{
			Symbol:         symbol,
			Direction:      models.DirectionError,
			AsOf:           time.Now().UTC(),
			PredictionDate: util.NextTradingDay(time.Now().UTC()).Format(util.DateLayout),
		})
	} else {
		s.setState(symbol, StatePublished)
		s.metrics.RecordCycle(symbol, "success")
		s.log.Info("training cycle published",
			logger.String("symbol", symbol),
			logger.Duration("elapsed", elapsed))
	}
	s.setState(symbol, StateIdle)
}

func (s *Scheduler) cycle(ctx context.Context, symbol string) error {
	if timeout := s.cfg.Train.CycleTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.setState(symbol, StateFetching)
	history, err := s.gateway.FetchHistory(ctx, symbol, s.cfg.Train.LookbackDays)
	if err != nil {
		s.recordProviderError(err)
		return err
	}

	s.settleOutcome(symbol, history)

	if s.archive != nil {
		if err := s.archive.StoreBars(ctx, symbol, history); err != nil {
			s.log.Warn("failed to archive bars", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	s.setState(symbol, StateTraining)
	set, err := s.builder.Build(history)
	if err != nil {
		return err
	}
	if _, err := s.store.Train(symbol, set); err != nil {
		return err
	}

	s.setState(symbol, StateScoring)
	direction, confidence, err := s.store.Predict(symbol, set.Inference)
	if err != nil {
		return err
	}
	accuracy := s.store.RollingAccuracy(symbol)

	asOf := time.Now().UTC()
	pred := models.Prediction{
		Symbol:         symbol,
		Direction:      direction,
		Confidence:     confidence,
		Accuracy:       accuracy,
		AsOf:           asOf,
		PredictionDate: util.NextTradingDay(asOf).Format(util.DateLayout),
	}

	s.cache.Put(pred)
	s.metrics.RecordPrediction(symbol, confidence, accuracy)
	s.metrics.RecordLastPrice(symbol, history[len(history)-1].Close)

	if s.publisher != nil {
		if err := s.publisher.PublishPrediction(ctx, &pred); err != nil {
			s.log.Warn("failed to publish prediction event",
				logger.String("symbol", symbol), logger.Error(err))
		}
	}
	return nil
}

// settleOutcome grades the previously published prediction once the session
// it targeted has a realized close in the fetched history.
func (s *Scheduler) settleOutcome(symbol string, history []models.PriceBar) {
	prev, ok := s.cache.Get(symbol)
	if !ok || prev.Direction == models.DirectionError || prev.PredictionDate == "" {
		return
	}
	for i := 1; i < len(history); i++ {
		if history[i].Date() != prev.PredictionDate {
			continue
		}
		actual := models.DirectionDown
		if history[i].Close > history[i-1].Close {
			actual = models.DirectionUp
		}
		out := models.Outcome{Date: prev.PredictionDate, Predicted: prev.Direction, Actual: actual}
		if err := s.store.RecordOutcome(symbol, out); err != nil {
			s.log.Warn("failed to record outcome", logger.String("symbol", symbol), logger.Error(err))
			return
		}
		s.log.Info("settled prediction",
			logger.String("symbol", symbol),
			logger.String("date", out.Date),
			logger.Bool("correct", out.Correct()))
		return
	}
}

func (s *Scheduler) recordProviderError(err error) {
	switch {
	case errors.Is(err, repository.ErrRateLimited):
		s.metrics.RecordProviderError("rate_limited")
	case errors.Is(err, repository.ErrSymbolNotFound):
		s.metrics.RecordProviderError("symbol_not_found")
	default:
		s.metrics.RecordProviderError("unavailable")
	}
}

func (s *Scheduler) tryBegin(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[symbol]; ok && st != StateIdle {
		return false
	}
	s.states[symbol] = StateFetching
	return true
}

func (s *Scheduler) setState(symbol string, st CycleState) {
	s.mu.Lock()
	s.states[symbol] = st
	s.mu.Unlock()
}
