package customfn

import (
	"encoding/json"
	"math"

	"github.com/fleetedge/inspection-agent/internal/signal"
)

// registerMath installs the numeric builtins named in
// spec §4.7. Each coerces its arguments via signal.Value.AsDouble and
// returns Undefined if any argument isn't numeric, matching the
// undefined-propagation rule used throughout the evaluator.
func registerMath(r *Registry) {
	unary := map[string]func(float64) float64{
		"abs":   math.Abs,
		"ceil":  math.Ceil,
		"floor": math.Floor,
		"log":   math.Log,
	}
	for name, fn := range unary {
		fn := fn
		r.Register(name, Function{
			Invoke: func(_ InvocationID, args []signal.Value) signal.Value {
				if len(args) != 1 {
					return signal.Undefined()
				}
				v, ok := args[0].AsDouble()
				if !ok {
					return signal.Undefined()
				}
				return signal.Double(fn(v))
			},
		})
	}

	// min/max fold over two or more numeric arguments (spec §4.7); pow
	// stays fixed at two.
	variadic := map[string]func(a, b float64) float64{
		"min": math.Min,
		"max": math.Max,
	}
	for name, fn := range variadic {
		fn := fn
		r.Register(name, Function{
			Invoke: func(_ InvocationID, args []signal.Value) signal.Value {
				if len(args) < 2 {
					return signal.Undefined()
				}
				acc, ok := args[0].AsDouble()
				if !ok {
					return signal.Undefined()
				}
				for _, a := range args[1:] {
					v, ok := a.AsDouble()
					if !ok {
						return signal.Undefined()
					}
					acc = fn(acc, v)
				}
				return signal.Double(acc)
			},
		})
	}

	r.Register("pow", Function{
		Invoke: func(_ InvocationID, args []signal.Value) signal.Value {
			if len(args) != 2 {
				return signal.Undefined()
			}
			a, ok1 := args[0].AsDouble()
			b, ok2 := args[1].AsDouble()
			if !ok1 || !ok2 {
				return signal.Undefined()
			}
			return signal.Double(math.Pow(a, b))
		},
	})
}

const multiRisingEdgeFunctionName = "MULTI_RISING_EDGE_TRIGGER"

// multiRisingEdgeState is the per-invocation-id memory for
// MULTI_RISING_EDGE_TRIGGER: the last observed boolean per named
// condition, the names that rose on the most recent Invoke call
// (risenNow), and the names committed and awaiting a Drain (pending).
// risenNow and pending are kept separate so a round's rises are only
// ever committed to pending once, by conditionEnd — Invoke alone runs
// on every call site reached, including ones CEL might re-evaluate
// more than once before the round is known to be over.
type multiRisingEdgeState struct {
	last     map[string]bool
	risenNow []string
	pending  []string
}

// MultiRisingEdge implements MULTI_RISING_EDGE_TRIGGER((name, value),
// …): it returns true iff at least one named condition transitioned
// false->true this call, remembered per invocation id (call site), and
// commits the names that rose into a drainable list once per
// evaluation round so the inspection engine can publish them as a JSON
// array on the configured output signal (spec §4.7, SPEC_FULL §4.7).
type MultiRisingEdge struct {
	state map[InvocationID]*multiRisingEdgeState
}

func newMultiRisingEdge() *MultiRisingEdge {
	return &MultiRisingEdge{state: make(map[InvocationID]*multiRisingEdgeState)}
}

func (m *MultiRisingEdge) invoke(id InvocationID, args []signal.Value) signal.Value {
	if len(args) == 0 || len(args)%2 != 0 {
		return signal.Undefined()
	}

	st, ok := m.state[id]
	if !ok {
		st = &multiRisingEdgeState{last: make(map[string]bool)}
		m.state[id] = st
	}
	st.risenNow = st.risenNow[:0]

	anyRose := false
	for i := 0; i+1 < len(args); i += 2 {
		name, ok := args[i].AsString()
		if !ok {
			return signal.Undefined()
		}
		value, ok := args[i+1].AsBool()
		if !ok {
			return signal.Undefined()
		}
		rising := value && !st.last[name]
		st.last[name] = value
		if rising {
			st.risenNow = append(st.risenNow, name)
			anyRose = true
		}
	}
	return signal.Bool(anyRose)
}

// conditionEnd commits the names risen on this invocation id's most
// recent Invoke call into the drainable pending list. Called once per
// round, after the whole expression has evaluated, for every
// invocation id the registry confirms was actually reached that round
// (customfn.Registry.EndRound) — so a call site skipped by CEL's
// short-circuiting never spuriously commits stale risenNow state.
func (m *MultiRisingEdge) conditionEnd(id InvocationID) {
	st, ok := m.state[id]
	if !ok || len(st.risenNow) == 0 {
		return
	}
	st.pending = append(st.pending, st.risenNow...)
	st.risenNow = nil
}

// Drain returns the JSON array of condition names committed for id
// since the last Drain, and clears the pending list. Returns ok=false
// (and no call) when nothing is pending.
func (m *MultiRisingEdge) Drain(id InvocationID) (jsonArray string, ok bool) {
	st, present := m.state[id]
	if !present || len(st.pending) == 0 {
		return "", false
	}
	data, err := json.Marshal(st.pending)
	if err != nil {
		return "", false
	}
	st.pending = nil
	return string(data), true
}

func (m *MultiRisingEdge) cleanup(id InvocationID) {
	delete(m.state, id)
}

func registerMultiRisingEdge(r *Registry) {
	m := newMultiRisingEdge()
	r.multiRisingEdge = m
	r.Register(multiRisingEdgeFunctionName, Function{
		Invoke:       m.invoke,
		ConditionEnd: m.conditionEnd,
		Cleanup:      m.cleanup,
	})
}

// MultiRisingEdge exposes the shared MULTI_RISING_EDGE_TRIGGER state so
// the inspection engine can drain pending trigger names after a round
// of evaluation.
func (r *Registry) MultiRisingEdge() *MultiRisingEdge { return r.multiRisingEdge }
