// Package statemachine provides a declarative, table-driven finite state machine.
//
// A Table is pure data: each Transition names its guard and hooks instead of
// holding function values. Handler lookup happens through an explicit Handlers
// registry when a Machine is bound to an entity. Tables are built once at
// startup and shared read-only by every entity of the same document type.
package statemachine

import (
	"fmt"
	"sort"
)

// State is the constraint for state enums
type State interface {
	~string
}

// Transition describes one legal edge of a state machine.
// Guard, Before and After are handler names resolved through Handlers.
type Transition[S State] struct {
	Source  S
	Target  S
	Trigger string
	Guard   string
	Before  string
	After   string
}

// String returns a readable representation of the edge
func (t Transition[S]) String() string {
	if t.Trigger == "" {
		return fmt.Sprintf("%s -> %s", t.Source, t.Target)
	}
	return fmt.Sprintf("%s -(%s)-> %s", t.Source, t.Trigger, t.Target)
}

// Table is an immutable set of transitions for one state enum
type Table[S State] struct {
	name        string
	transitions []Transition[S]
}

// NewTable builds a table from the given transitions.
//
// Two transitions may share a (source, trigger) pair only if all of them
// declare a guard; such guarded branches are evaluated in declaration order.
func NewTable[S State](name string, transitions ...Transition[S]) (*Table[S], error) {
	if name == "" {
		return nil, fmt.Errorf("statemachine: table name is required")
	}
	if len(transitions) == 0 {
		return nil, fmt.Errorf("statemachine: table %s has no transitions", name)
	}

	type edgeKey struct {
		source  S
		trigger string
	}
	seen := make(map[edgeKey][]Transition[S])

	for i, t := range transitions {
		if t.Source == "" || t.Target == "" {
			return nil, fmt.Errorf("statemachine: table %s transition #%d needs source and target", name, i)
		}
		if t.Trigger == "" {
			continue
		}
		k := edgeKey{t.Source, t.Trigger}
		seen[k] = append(seen[k], t)
	}

	for k, edges := range seen {
		if len(edges) < 2 {
			continue
		}
		for _, e := range edges {
			if e.Guard == "" {
				return nil, fmt.Errorf("statemachine: table %s has ambiguous trigger '%s' from '%s' without guards",
					name, k.trigger, k.source)
			}
		}
	}

	copied := make([]Transition[S], len(transitions))
	copy(copied, transitions)
	return &Table[S]{name: name, transitions: copied}, nil
}

// MustTable is like NewTable but panics on error. Intended for package-level tables.
func MustTable[S State](name string, transitions ...Transition[S]) *Table[S] {
	t, err := NewTable(name, transitions...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name
func (t *Table[S]) Name() string {
	return t.name
}

// Transitions returns a copy of all transitions in declaration order
func (t *Table[S]) Transitions() []Transition[S] {
	out := make([]Transition[S], len(t.transitions))
	copy(out, t.transitions)
	return out
}

// States returns every state referenced by the table, sorted
func (t *Table[S]) States() []S {
	set := make(map[S]struct{})
	for _, tr := range t.transitions {
		set[tr.Source] = struct{}{}
		set[tr.Target] = struct{}{}
	}
	out := make([]S, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Triggers returns every distinct trigger name, sorted
func (t *Table[S]) Triggers() []string {
	set := make(map[string]struct{})
	for _, tr := range t.transitions {
		if tr.Trigger != "" {
			set[tr.Trigger] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TransitionsFrom returns the transitions whose source is s
func (t *Table[S]) TransitionsFrom(s S) []Transition[S] {
	var out []Transition[S]
	for _, tr := range t.transitions {
		if tr.Source == s {
			out = append(out, tr)
		}
	}
	return out
}

// TransitionsTo returns the transitions whose target is s
func (t *Table[S]) TransitionsTo(s S) []Transition[S] {
	var out []Transition[S]
	for _, tr := range t.transitions {
		if tr.Target == s {
			out = append(out, tr)
		}
	}
	return out
}

// candidates returns the transitions from source matching trigger, in declaration order
func (t *Table[S]) candidates(source S, trigger string) []Transition[S] {
	var out []Transition[S]
	for _, tr := range t.transitions {
		if tr.Source == source && tr.Trigger == trigger {
			out = append(out, tr)
		}
	}
	return out
}

// handlerNames returns every guard and hook name referenced by the table
func (t *Table[S]) handlerNames() (guards, hooks []string) {
	gs := make(map[string]struct{})
	hs := make(map[string]struct{})
	for _, tr := range t.transitions {
		if tr.Guard != "" {
			gs[tr.Guard] = struct{}{}
		}
		if tr.Before != "" {
			hs[tr.Before] = struct{}{}
		}
		if tr.After != "" {
			hs[tr.After] = struct{}{}
		}
	}
	for g := range gs {
		guards = append(guards, g)
	}
	for h := range hs {
		hooks = append(hooks, h)
	}
	sort.Strings(guards)
	sort.Strings(hooks)
	return guards, hooks
}
