package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/pkg/logger"
)

func TestRegistrySeedsDefaults(t *testing.T) {
	gw := newFakeGateway()
	r := NewRegistry([]string{"aapl", "MSFT", "MSFT"}, gw, logger.Nop())

	assert.Equal(t, []string{"AAPL", "MSFT"}, r.Symbols())
	for _, e := range r.Entries() {
		assert.Equal(t, models.OriginDefault, e.Origin)
	}
}

func TestRegisterNewSymbol(t *testing.T) {
	gw := newFakeGateway()
	r := NewRegistry([]string{"AAPL"}, gw, logger.Nop())

	entry, added, err := r.Register(context.Background(), " tsla ")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "TSLA", entry.Symbol)
	assert.Equal(t, models.OriginUserAdded, entry.Origin)
	assert.Equal(t, []string{"AAPL", "TSLA"}, r.Symbols())
}

func TestRegisterIdempotent(t *testing.T) {
	gw := newFakeGateway()
	r := NewRegistry([]string{"AAPL"}, gw, logger.Nop())

	_, added, err := r.Register(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.True(t, added)

	_, added, err = r.Register(context.Background(), "tsla")
	require.NoError(t, err)
	assert.False(t, added)

	// re-registering a default is also a no-op with no provider call
	before := gw.quoteCalls
	_, added, err = r.Register(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, before, gw.quoteCalls)

	assert.Equal(t, []string{"AAPL", "TSLA"}, r.Symbols())
}

func TestRegisterInvalidFormat(t *testing.T) {
	gw := newFakeGateway()
	r := NewRegistry(nil, gw, logger.Nop())

	for _, raw := range []string{"", "123ABC", "WAY-TOO-LONG-TICKER", "A B"} {
		_, added, err := r.Register(context.Background(), raw)
		require.Error(t, err, "input %q", raw)
		assert.True(t, errors.Is(err, ErrInvalidSymbol), "input %q", raw)
		assert.False(t, added)
	}
	assert.Zero(t, gw.quoteCalls)
}

func TestRegisterUnknownSymbol(t *testing.T) {
	gw := newFakeGateway()
	gw.quoteErr["NOPE"] = repository.ErrSymbolNotFound
	r := NewRegistry(nil, gw, logger.Nop())

	_, added, err := r.Register(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrSymbolNotFound))
	assert.False(t, added)
	assert.False(t, r.Contains("NOPE"))
}
