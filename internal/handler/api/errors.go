package api

import (
	"errors"
	"net/http"

	"StockPulse/internal/domain/repository"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
)

// translate maps domain errors onto HTTP statuses before they reach the
// response writer. Anything unmapped falls through as a 500.
func translate(err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidSymbol):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, repository.ErrSymbolNotFound):
		return xhttp.NotFoundError("symbol not found").WithError(err)
	case errors.Is(err, repository.ErrRateLimited):
		return xhttp.NewAppError("ERR_RATE_LIMITED", "", "provider rate limit reached, try again shortly", http.StatusTooManyRequests).WithError(err)
	case errors.Is(err, repository.ErrProviderUnavailable):
		return xhttp.UnavailableError("market data provider unavailable").WithError(err)
	case errors.Is(err, repository.ErrInsufficientHistory):
		return xhttp.NewAppError("ERR_INSUFFICIENT_HISTORY", "", "not enough price history to train", http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, repository.ErrTrainingFailed):
		return xhttp.NewAppError("ERR_TRAINING_FAILED", "", "model training failed", http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, repository.ErrNoModel):
		return xhttp.NotFoundError("no trained model for symbol").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
