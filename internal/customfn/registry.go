// Package customfn implements the named custom-function surface that
// campaign expressions can call in addition to CEL's own builtins
// (spec §4.6/§4.7). Each function is a small {Invoke, ConditionEnd,
// Cleanup} triple registered by name; stateful functions (currently
// MULTI_RISING_EDGE_TRIGGER) key their per-call-site memory on the
// InvocationID the evaluator assigns at compile time.
package customfn

import "github.com/fleetedge/inspection-agent/internal/signal"

// InvocationID identifies one textual call site of a custom function
// within one campaign's expression, stable across evaluation rounds.
type InvocationID uint64

// Function is one registered custom function. Invoke runs on every
// evaluation where the call site is reached (not short-circuited).
// ConditionEnd runs once per round, after the whole expression has
// been evaluated, for every invocation id that was actually invoked
// that round, in invocation order (spec §4.8). Cleanup releases any
// state held for an invocation id, called when a campaign is retired.
type Function struct {
	Invoke       func(id InvocationID, args []signal.Value) signal.Value
	ConditionEnd func(id InvocationID)
	Cleanup      func(id InvocationID)
}

// Registry holds custom functions keyed by the name used in campaign
// expressions.
type Registry struct {
	fns             map[string]Function
	multiRisingEdge *MultiRisingEdge
}

// NewRegistry builds a Registry with the standard built-ins already
// registered (spec §4.7: abs, ceil, floor, min, max, pow, log,
// MULTI_RISING_EDGE_TRIGGER).
func NewRegistry() *Registry {
	r := &Registry{fns: make(map[string]Function)}
	registerMath(r)
	registerMultiRisingEdge(r)
	return r
}

// Register adds or replaces a function under name.
func (r *Registry) Register(name string, fn Function) {
	r.fns[name] = fn
}

// Lookup returns the function registered under name, if any.
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.fns[name]
	return fn, ok
}

// Names returns the registered function names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fns))
	for n := range r.fns {
		names = append(names, n)
	}
	return names
}

// EndRound calls ConditionEnd for every invocation id invoked this
// round, in the order given, for the given function.
func (r *Registry) EndRound(name string, invoked []InvocationID) {
	fn, ok := r.fns[name]
	if !ok || fn.ConditionEnd == nil {
		return
	}
	for _, id := range invoked {
		fn.ConditionEnd(id)
	}
}

// Cleanup releases all functions' state for the given invocation id,
// called when a campaign referencing it is retired.
func (r *Registry) Cleanup(id InvocationID) {
	for _, fn := range r.fns {
		if fn.Cleanup != nil {
			fn.Cleanup(id)
		}
	}
}
