package statemachine

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/shared"
)

// Stateful is implemented by entities driven by a Machine
type Stateful[S State] interface {
	CurrentState() S
	SetState(S)
}

// AfterHookError is returned when the after hook of a committed transition fails.
// The entity state has already moved to Transition.Target when this is returned.
type AfterHookError[S State] struct {
	Transition Transition[S]
	Hook       string
	Err        error
}

func (e *AfterHookError[S]) Error() string {
	return fmt.Sprintf("after hook '%s' of %s failed: %v", e.Hook, e.Transition, e.Err)
}

func (e *AfterHookError[S]) Unwrap() error { return e.Err }

// Machine binds a Table to one entity instance.
// A Machine is not safe for concurrent use; callers serialize access per entity.
type Machine[S State, E Stateful[S]] struct {
	table    *Table[S]
	handlers *Handlers[E]
	entity   E
}

// Bind creates a machine for entity. handlers may be nil for tables without guards or hooks.
func Bind[S State, E Stateful[S]](table *Table[S], handlers *Handlers[E], entity E) *Machine[S, E] {
	if handlers == nil {
		handlers = NewHandlers[E]()
	}
	return &Machine[S, E]{table: table, handlers: handlers, entity: entity}
}

// Table returns the bound table
func (m *Machine[S, E]) Table() *Table[S] {
	return m.table
}

// CurrentState returns the entity's current state
func (m *Machine[S, E]) CurrentState() S {
	return m.entity.CurrentState()
}

// AvailableTransitions returns the transitions whose source is the current state
func (m *Machine[S, E]) AvailableTransitions() []Transition[S] {
	return m.table.TransitionsFrom(m.entity.CurrentState())
}

// AvailableTriggers returns the distinct trigger names usable from the current state
func (m *Machine[S, E]) AvailableTriggers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range m.AvailableTransitions() {
		if t.Trigger == "" {
			continue
		}
		if _, dup := seen[t.Trigger]; dup {
			continue
		}
		seen[t.Trigger] = struct{}{}
		out = append(out, t.Trigger)
	}
	return out
}

// CanTrigger reports whether some available transition is named trigger.
// Guards are not evaluated.
func (m *Machine[S, E]) CanTrigger(trigger string) bool {
	for _, t := range m.AvailableTransitions() {
		if t.Trigger == trigger {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether some available transition targets state
func (m *Machine[S, E]) CanTransitionTo(target S) bool {
	for _, t := range m.AvailableTransitions() {
		if t.Target == target {
			return true
		}
	}
	return false
}

// Fire resolves trigger from the current state and applies it.
//
// The state is only changed after the guard passes and the before hook
// succeeds. If the after hook fails, the state stays changed and an
// *AfterHookError is returned.
func (m *Machine[S, E]) Fire(ctx context.Context, trigger string, args Args) (Transition[S], error) {
	current := m.entity.CurrentState()
	candidates := m.table.candidates(current, trigger)
	if len(candidates) == 0 {
		return Transition[S]{}, &shared.IllegalTransitionError{
			Machine: m.table.Name(),
			State:   string(current),
			Trigger: trigger,
		}
	}
	return m.apply(ctx, current, trigger, candidates, args)
}

// TransitionTo applies the first declared transition from the current state to target
func (m *Machine[S, E]) TransitionTo(ctx context.Context, target S, args Args) (Transition[S], error) {
	current := m.entity.CurrentState()
	var candidates []Transition[S]
	for _, t := range m.table.TransitionsFrom(current) {
		if t.Target == target {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return Transition[S]{}, &shared.IllegalTransitionError{
			Machine: m.table.Name(),
			State:   string(current),
			Trigger: "to:" + string(target),
		}
	}
	return m.apply(ctx, current, candidates[0].Trigger, candidates, args)
}

func (m *Machine[S, E]) apply(ctx context.Context, current S, trigger string, candidates []Transition[S], args Args) (Transition[S], error) {
	if args == nil {
		args = Args{}
	}

	var (
		selected     *Transition[S]
		rejectedWith string
	)
	for i := range candidates {
		t := candidates[i]
		if t.Guard == "" {
			selected = &t
			break
		}
		guard, ok := m.handlers.Guard(t.Guard)
		if !ok {
			return Transition[S]{}, fmt.Errorf("statemachine: %s: guard '%s' is not registered", m.table.Name(), t.Guard)
		}
		if guard(ctx, m.entity, args) {
			selected = &t
			break
		}
		rejectedWith = t.Guard
	}
	if selected == nil {
		return Transition[S]{}, &shared.GuardRejectedError{
			Machine: m.table.Name(),
			State:   string(current),
			Trigger: trigger,
			Guard:   rejectedWith,
		}
	}

	// Resolve both hooks up front so a missing handler never leaves a half-applied transition.
	var before, after Hook[E]
	if selected.Before != "" {
		h, ok := m.handlers.Hook(selected.Before)
		if !ok {
			return Transition[S]{}, fmt.Errorf("statemachine: %s: hook '%s' is not registered", m.table.Name(), selected.Before)
		}
		before = h
	}
	if selected.After != "" {
		h, ok := m.handlers.Hook(selected.After)
		if !ok {
			return Transition[S]{}, fmt.Errorf("statemachine: %s: hook '%s' is not registered", m.table.Name(), selected.After)
		}
		after = h
	}

	if before != nil {
		if err := before(ctx, m.entity, args); err != nil {
			return Transition[S]{}, fmt.Errorf("before hook '%s' of %s: %w", selected.Before, *selected, err)
		}
	}

	m.entity.SetState(selected.Target)

	if after != nil {
		if err := after(ctx, m.entity, args); err != nil {
			return *selected, &AfterHookError[S]{Transition: *selected, Hook: selected.After, Err: err}
		}
	}
	return *selected, nil
}
