package models

import "time"

// Direction is the predicted sign of the next-session move.
type Direction string

const (
	DirectionUp    Direction = "UP"
	DirectionDown  Direction = "DOWN"
	DirectionError Direction = "ERROR"
)

// Prediction is the current published forecast for one symbol.
// Overwritten atomically on every completed training cycle.
type Prediction struct {
	Symbol         string    `json:"symbol"`
	Direction      Direction `json:"prediction"`
	Confidence     float64   `json:"confidence"`
	Accuracy       float64   `json:"accuracy"`
	AsOf           time.Time `json:"as_of"`
	PredictionDate string    `json:"prediction_date"` // YYYY-MM-DD, next trading day
}

// Performance aggregates model quality across the whole universe.
type Performance struct {
	Accuracy         float64 `json:"accuracy"`
	TotalPredictions int     `json:"total_predictions"`
}

// Outcome is one settled prediction in the accuracy ledger.
// At most one entry exists per (symbol, date).
type Outcome struct {
	Date      string    `json:"date"` // YYYY-MM-DD
	Predicted Direction `json:"predicted"`
	Actual    Direction `json:"actual"`
}

// Correct reports whether the predicted direction matched the realized one.
func (o Outcome) Correct() bool {
	return o.Predicted == o.Actual
}

// SymbolOrigin distinguishes startup defaults from user-added symbols.
type SymbolOrigin string

const (
	OriginDefault   SymbolOrigin = "default"
	OriginUserAdded SymbolOrigin = "user-added"
)

// RegistryEntry is one symbol in the tracked universe.
type RegistryEntry struct {
	Symbol      string       `json:"symbol"`
	Origin      SymbolOrigin `json:"origin"`
	OnboardedAt time.Time    `json:"onboarded_at"`
}
