package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/pkg/logger"
)

// ErrInvalidSymbol rejects ticker strings that cannot be a listed symbol.
var ErrInvalidSymbol = errors.New("invalid symbol format")

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// Registry tracks the set of symbols the engine trains and serves. It is
// seeded with the configured defaults and grows as users add tickers; adding
// a symbol that is already present is a no-op.
type Registry struct {
	gateway repository.MarketData
	log     *logger.Logger

	mu      sync.RWMutex
	order   []string
	entries map[string]models.RegistryEntry
}

func NewRegistry(defaults []string, gateway repository.MarketData, log *logger.Logger) *Registry {
	r := &Registry{
		gateway: gateway,
		log:     log,
		entries: make(map[string]models.RegistryEntry),
	}
	now := time.Now().UTC()
	for _, raw := range defaults {
		sym := Normalize(raw)
		if sym == "" {
			continue
		}
		if _, ok := r.entries[sym]; ok {
			continue
		}
		r.entries[sym] = models.RegistryEntry{Symbol: sym, Origin: models.OriginDefault, OnboardedAt: now}
		r.order = append(r.order, sym)
	}
	return r
}

// Normalize upper-cases and trims a raw ticker string.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Register validates the symbol against the provider and adds it. The
// returned bool is true only when the symbol was newly added, so callers know
// whether to kick off a training cycle for it.
func (r *Registry) Register(ctx context.Context, raw string) (models.RegistryEntry, bool, error) {
	sym := Normalize(raw)
	if !symbolPattern.MatchString(sym) {
		return models.RegistryEntry{}, false, fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}

	r.mu.RLock()
	entry, exists := r.entries[sym]
	r.mu.RUnlock()
	if exists {
		return entry, false, nil
	}

	// Quote lookup doubles as the existence check: unknown tickers come back
	// as ErrSymbolNotFound from the provider.
	if _, err := r.gateway.FetchQuote(ctx, sym); err != nil {
		return models.RegistryEntry{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, exists = r.entries[sym]; exists {
		return entry, false, nil
	}
	entry = models.RegistryEntry{Symbol: sym, Origin: models.OriginUserAdded, OnboardedAt: time.Now().UTC()}
	r.entries[sym] = entry
	r.order = append(r.order, sym)
	r.log.Info("symbol registered", logger.String("symbol", sym))
	return entry, true, nil
}

// Symbols returns every tracked ticker in onboarding order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Contains reports whether the symbol is tracked.
func (r *Registry) Contains(raw string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[Normalize(raw)]
	return ok
}

// Entries returns a copy of the registry contents in onboarding order.
func (r *Registry) Entries() []models.RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.RegistryEntry, 0, len(r.order))
	for _, sym := range r.order {
		out = append(out, r.entries[sym])
	}
	return out
}
