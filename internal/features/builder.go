package features

import (
	"fmt"

	"StockPulse/internal/domain/models"
	drepo "StockPulse/internal/domain/repository"
)

// SchemaVersion identifies the exact ordered feature set below. Any change
// to FeatureNames or their computation must bump this; model artifacts
// trained against another version are discarded and retrained.
const SchemaVersion = 1

// FeatureNames is the fixed order of signals in every feature vector.
var FeatureNames = []string{
	"open", "high", "low", "close", "volume", "sma_5", "sma_20", "rsi_14",
}

const (
	smaShortWindow = 5
	smaLongWindow  = 20
	rsiPeriod      = 14

	// MinBars is the shortest acceptable history: the long SMA window plus
	// one labeled day and the inference day it labels.
	MinBars = smaLongWindow + 2
)

// Row is one labeled training example.
type Row struct {
	Date     string // YYYY-MM-DD of the day the features describe
	Features []float64
	Label    int // 1 if the next day's close was higher
}

// TrainingSet is the full output of one build: labeled rows plus the
// unlabeled inference vector for the most recent day.
type TrainingSet struct {
	Rows          []Row
	Inference     []float64
	InferenceDate string
	SchemaVersion int
}

// Builder converts raw OHLCV history into training data. It is stateless
// and deterministic: identical input always yields identical output.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// Build derives one feature vector per day: every day except the last is
// labeled with the following day's direction, the last becomes the
// unlabeled inference vector. Indicators shrink to the available window
// during warm-up so no rows are lost at the front.
func (b *Builder) Build(history []models.PriceBar) (*TrainingSet, error) {
	if len(history) < MinBars {
		return nil, fmt.Errorf("need %d bars, have %d: %w", MinBars, len(history), drepo.ErrInsufficientHistory)
	}

	closes := make([]float64, len(history))
	for i, bar := range history {
		closes[i] = bar.Close
	}

	smaShort := rollingMean(closes, smaShortWindow)
	smaLong := rollingMean(closes, smaLongWindow)
	rsi := relativeStrength(closes, rsiPeriod)

	set := &TrainingSet{SchemaVersion: SchemaVersion}
	for i := range history {
		vec := []float64{
			history[i].Open,
			history[i].High,
			history[i].Low,
			history[i].Close,
			history[i].Volume,
			smaShort[i],
			smaLong[i],
			rsi[i],
		}
		if i == len(history)-1 {
			set.Inference = vec
			set.InferenceDate = history[i].Date()
			break
		}
		label := 0
		if history[i+1].Close > history[i].Close {
			label = 1
		}
		set.Rows = append(set.Rows, Row{
			Date:     history[i].Date(),
			Features: vec,
			Label:    label,
		})
	}
	return set, nil
}

// rollingMean computes a simple moving average, shrinking the window at the
// front of the series instead of emitting undefined values.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		n := window
		if i < window-1 {
			n = i + 1
		} else if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// relativeStrength computes RSI from mean gain/loss over up to period
// deltas. A window with no losses saturates at 100, no gains at 0, and a
// flat window sits at the neutral 50.
func relativeStrength(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = 50

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := 1; i < len(closes); i++ {
		lo := i - period + 1
		if lo < 1 {
			lo = 1
		}
		var gainSum, lossSum float64
		for j := lo; j <= i; j++ {
			gainSum += gains[j]
			lossSum += losses[j]
		}
		n := float64(i - lo + 1)
		avgGain := gainSum / n
		avgLoss := lossSum / n

		switch {
		case avgLoss == 0 && avgGain == 0:
			out[i] = 50
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}
