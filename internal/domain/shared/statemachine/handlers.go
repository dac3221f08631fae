package statemachine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/erp/backoffice/internal/domain/shared"
)

// Guard decides whether a transition may fire for the given entity
type Guard[E any] func(ctx context.Context, entity E, args Args) bool

// Hook runs a side effect before or after the state is committed
type Hook[E any] func(ctx context.Context, entity E, args Args) error

// Handlers maps the names used in a Table to guard and hook implementations.
// It is populated during initialization and read concurrently afterwards.
type Handlers[E any] struct {
	mu     sync.RWMutex
	guards map[string]Guard[E]
	hooks  map[string]Hook[E]
}

// NewHandlers creates an empty handler registry
func NewHandlers[E any]() *Handlers[E] {
	return &Handlers[E]{
		guards: make(map[string]Guard[E]),
		hooks:  make(map[string]Hook[E]),
	}
}

// RegisterGuard registers a named guard
func (h *Handlers[E]) RegisterGuard(name string, g Guard[E]) error {
	if name == "" || g == nil {
		return fmt.Errorf("%w: guard name and func are required", shared.ErrInvalidInput)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.guards[name]; exists {
		return fmt.Errorf("%w: guard '%s' already registered", shared.ErrAlreadyExists, name)
	}
	h.guards[name] = g
	return nil
}

// RegisterHook registers a named before/after hook
func (h *Handlers[E]) RegisterHook(name string, fn Hook[E]) error {
	if name == "" || fn == nil {
		return fmt.Errorf("%w: hook name and func are required", shared.ErrInvalidInput)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.hooks[name]; exists {
		return fmt.Errorf("%w: hook '%s' already registered", shared.ErrAlreadyExists, name)
	}
	h.hooks[name] = fn
	return nil
}

// Guard returns the named guard
func (h *Handlers[E]) Guard(name string) (Guard[E], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	g, ok := h.guards[name]
	return g, ok
}

// Hook returns the named hook
func (h *Handlers[E]) Hook(name string) (Hook[E], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.hooks[name]
	return fn, ok
}

// Validate checks that every handler name referenced by table is registered
func Validate[S State, E any](table *Table[S], h *Handlers[E]) error {
	guards, hooks := table.handlerNames()
	var missing []string
	for _, g := range guards {
		if _, ok := h.Guard(g); !ok {
			missing = append(missing, "guard:"+g)
		}
	}
	for _, name := range hooks {
		if _, ok := h.Hook(name); !ok {
			missing = append(missing, "hook:"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("statemachine: table %s references unregistered handlers: %s",
			table.Name(), strings.Join(missing, ", "))
	}
	return nil
}
