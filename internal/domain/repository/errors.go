package repository

import "errors"

// Error kinds surfaced by the market data gateway and the model pipeline.
// Transient provider failures are retried inside the gateway; everything
// else is terminal for the current cycle and matched with errors.Is.
var (
	ErrProviderUnavailable = errors.New("market data provider unavailable")
	ErrRateLimited         = errors.New("market data provider rate limited")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrTrainingFailed      = errors.New("model training failed")
	ErrNoModel             = errors.New("no model available")
)
