package evaluator

import (
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/interpreter"

	"github.com/fleetedge/inspection-agent/internal/signal"
)

// toCEL converts a signal.Value into its CEL runtime representation.
// Undefined becomes a CEL error value: CEL's logical && and || are
// non-strict and absorb errors the moment the other operand already
// decides the result (false && x, true || x), which is exactly the
// short-circuit-without-evaluating-undefined-operands behavior spec
// §4.6 asks for, and it falls out of CEL's own evaluator for free.
func toCEL(v signal.Value) ref.Val {
	switch v.Kind {
	case signal.KindBool:
		b, _ := v.AsBool()
		return types.Bool(b)
	case signal.KindDouble:
		d, _ := v.AsDouble()
		return types.Double(d)
	case signal.KindString:
		s, _ := v.AsString()
		return types.String(s)
	default:
		return types.NewErr("undefined signal value")
	}
}

// fromCEL converts a CEL evaluation result back into a signal.Value.
// Any error or unrecognized type collapses to Undefined: bottoming out
// on a missing or type-mismatched signal is an ordinary outcome here,
// never a program error (spec §7).
func fromCEL(val ref.Val) signal.Value {
	switch v := val.(type) {
	case types.Bool:
		return signal.Bool(bool(v))
	case types.Double:
		return signal.Double(float64(v))
	case types.Int:
		return signal.Double(float64(v))
	case types.Uint:
		return signal.Double(float64(v))
	case types.String:
		return signal.String(string(v))
	default:
		return signal.Undefined()
	}
}

// signalActivation resolves campaign expression variables straight
// from a signal snapshot map, without copying it into a
// map[string]any first.
type signalActivation struct {
	values map[string]signal.Value
}

func (a *signalActivation) ResolveName(name string) (any, bool) {
	v, ok := a.values[name]
	if !ok {
		return nil, false
	}
	return toCEL(v), true
}

func (a *signalActivation) Parent() interpreter.Activation { return nil }
