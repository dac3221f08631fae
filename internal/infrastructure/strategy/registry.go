package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/strategy"
	"github.com/erp/backoffice/internal/infrastructure/strategy/stock"
)

// StockStrategyRegistry maps business vertical tags to stock strategies.
// It is filled at startup and sealed before the first request is served;
// lookups are safe for concurrent use.
type StockStrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[string]strategy.StockStrategy
	fallback   strategy.StockStrategy
	sealed     bool
}

// NewStockStrategyRegistry creates an empty registry whose default is the standard strategy
func NewStockStrategyRegistry() *StockStrategyRegistry {
	return &StockStrategyRegistry{
		strategies: make(map[string]strategy.StockStrategy),
		fallback:   stock.NewStandardStockStrategy(),
	}
}

// Register binds a strategy to a vertical tag
func (r *StockStrategyRegistry) Register(tag string, s strategy.StockStrategy) error {
	tag = normalizeTag(tag)
	if tag == "" || s == nil {
		return fmt.Errorf("%w: vertical tag and strategy are required", shared.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: stock strategy registry is sealed", shared.ErrInvalidState)
	}
	if _, exists := r.strategies[tag]; exists {
		return fmt.Errorf("%w: stock strategy for vertical '%s' already registered", shared.ErrAlreadyExists, tag)
	}
	r.strategies[tag] = s
	return nil
}

// SetDefault replaces the strategy used for unknown or empty tags
func (r *StockStrategyRegistry) SetDefault(s strategy.StockStrategy) error {
	if s == nil {
		return fmt.Errorf("%w: default stock strategy is required", shared.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: stock strategy registry is sealed", shared.ErrInvalidState)
	}
	r.fallback = s
	return nil
}

// Resolve returns the strategy for tag, or the default when none is registered
func (r *StockStrategyRegistry) Resolve(tag string) strategy.StockStrategy {
	if s, ok := r.Lookup(tag); ok {
		return s
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Lookup returns the strategy registered for tag
func (r *StockStrategyRegistry) Lookup(tag string) (strategy.StockStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[normalizeTag(tag)]
	return s, ok
}

// Tags returns the registered vertical tags, sorted
func (r *StockStrategyRegistry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.strategies))
	for tag := range r.strategies {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Bindings maps each registered tag to its strategy name, plus "*" for the default
func (r *StockStrategyRegistry) Bindings() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.strategies)+1)
	for tag, s := range r.strategies {
		out[tag] = s.Name()
	}
	out["*"] = r.fallback.Name()
	return out
}

// Seal rejects any further registration
func (r *StockStrategyRegistry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// IsSealed reports whether Seal was called
func (r *StockStrategyRegistry) IsSealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
