package evaluator

import (
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// boolArithmeticOverloads extends CEL's built-in arithmetic and
// comparison operators with Bool/Double operand combinations. CEL's
// own overloads for these operators only match same-kind numeric
// pairs, so a bare bool signal used alongside a numeric literal
// (`door_open + 1 > 5`) fails to resolve any overload and the whole
// expression collapses to undefined. Spec §3/§4.6 instead ask for
// bool to coerce to 0.0/1.0 in numeric contexts.
func boolArithmeticOverloads() []cel.EnvOption {
	type coercedOp struct {
		id      string
		symbol  string
		result  *cel.Type
		combine func(a, b float64) ref.Val
	}

	ops := []coercedOp{
		{"add", operators.Add, cel.DoubleType, func(a, b float64) ref.Val { return types.Double(a + b) }},
		{"subtract", operators.Subtract, cel.DoubleType, func(a, b float64) ref.Val { return types.Double(a - b) }},
		{"multiply", operators.Multiply, cel.DoubleType, func(a, b float64) ref.Val { return types.Double(a * b) }},
		{"divide", operators.Divide, cel.DoubleType, func(a, b float64) ref.Val { return types.Double(a / b) }},
		{"modulo", operators.Modulo, cel.DoubleType, func(a, b float64) ref.Val { return types.Double(math.Mod(a, b)) }},
		{"less", operators.Less, cel.BoolType, func(a, b float64) ref.Val { return types.Bool(a < b) }},
		{"less_equals", operators.LessEquals, cel.BoolType, func(a, b float64) ref.Val { return types.Bool(a <= b) }},
		{"greater", operators.Greater, cel.BoolType, func(a, b float64) ref.Val { return types.Bool(a > b) }},
		{"greater_equals", operators.GreaterEquals, cel.BoolType, func(a, b float64) ref.Val { return types.Bool(a >= b) }},
		{"equals", operators.Equals, cel.BoolType, func(a, b float64) ref.Val { return types.Bool(a == b) }},
		{"not_equals", operators.NotEquals, cel.BoolType, func(a, b float64) ref.Val { return types.Bool(a != b) }},
	}

	opts := make([]cel.EnvOption, 0, len(ops))
	for _, o := range ops {
		o := o
		binding := cel.FunctionBinding(func(args ...ref.Val) ref.Val {
			a, ok1 := asCoercedDouble(args[0])
			b, ok2 := asCoercedDouble(args[1])
			if !ok1 || !ok2 {
				return types.NewErr("operand could not be coerced to a number for %s", o.id)
			}
			return o.combine(a, b)
		})
		opts = append(opts, cel.Function(o.symbol,
			cel.Overload("bool_double_"+o.id, []*cel.Type{cel.BoolType, cel.DoubleType}, o.result, binding),
			cel.Overload("double_bool_"+o.id, []*cel.Type{cel.DoubleType, cel.BoolType}, o.result, binding),
		))
	}
	return opts
}

// asCoercedDouble converts a CEL Bool to 0.0/1.0 and passes a Double
// through unchanged.
func asCoercedDouble(v ref.Val) (float64, bool) {
	switch val := v.(type) {
	case types.Bool:
		if val {
			return 1, true
		}
		return 0, true
	case types.Double:
		return float64(val), true
	default:
		return 0, false
	}
}
