// Package evaluator compiles cloud campaign expressions into CEL
// programs and evaluates them against live signal snapshots, bridging
// CEL's value model to the agent's three-valued undefined/bool/double/
// string signal.Value (spec §4.6).
package evaluator

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/fleetedge/inspection-agent/internal/campaign"
	"github.com/fleetedge/inspection-agent/internal/customfn"
	"github.com/fleetedge/inspection-agent/internal/fwerrors"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

// arity describes the argument counts (excluding the hidden
// invocation id) a custom function accepts: every value from Min to
// Max in steps of Step. Fixed-arity functions have Min==Max; min/max
// accept any count from 2 up, and MULTI_RISING_EDGE_TRIGGER accepts
// any even count (name/bool pairs) up to Max. CEL overloads declare
// concrete argument counts, so Compile registers one overload per
// supported count rather than a single variadic signature.
type arity struct {
	Min, Max, Step int
}

func fixedArity(n int) arity { return arity{Min: n, Max: n, Step: 1} }

func (a arity) counts() []int {
	counts := make([]int, 0, (a.Max-a.Min)/a.Step+1)
	for n := a.Min; n <= a.Max; n += a.Step {
		counts = append(counts, n)
	}
	return counts
}

// maxMultiRisingEdgeNames bounds the number of name/bool pairs a
// single MULTI_RISING_EDGE_TRIGGER call site accepts; campaigns
// needing more should use more than one call site.
const maxMultiRisingEdgeNames = 16

// maxVariadicMathArgs bounds the number of arguments min/max accept in
// one call.
const maxVariadicMathArgs = 8

// builtinArity names the supported arities (excluding the hidden
// invocation id argument) of every custom function the registry
// exposes.
var builtinArity = map[string]arity{
	"abs":                       fixedArity(1),
	"ceil":                      fixedArity(1),
	"floor":                     fixedArity(1),
	"log":                       fixedArity(1),
	"min":                       {Min: 2, Max: maxVariadicMathArgs, Step: 1},
	"max":                       {Min: 2, Max: maxVariadicMathArgs, Step: 1},
	"pow":                       fixedArity(2),
	"MULTI_RISING_EDGE_TRIGGER": {Min: 2, Max: maxMultiRisingEdgeNames * 2, Step: 2},
}

// Expr is a campaign expression compiled to a cel.Program, ready for
// repeated evaluation. It is owned by a single goroutine (the
// inspection engine's evaluation loop); Eval is not safe for
// concurrent use.
type Expr struct {
	campaignID string
	registry   *customfn.Registry
	program    cel.Program
	invoked    []customfn.InvocationID

	// callSites lists every invocation id assigned to a custom function
	// call site in this expression, regardless of whether a given
	// evaluation round actually reaches it. Kept so Release can tell the
	// registry to free per-invocation state when the campaign is retired.
	callSites []customfn.InvocationID
}

// Compile builds an Expr for one campaign. names lists every signal
// name the expression may reference as a bare identifier; registry
// supplies the custom function implementations bound into the CEL
// environment.
func Compile(campaignID, expression string, names []string, registry *customfn.Registry) (*Expr, error) {
	e := &Expr{campaignID: campaignID, registry: registry}

	fnSet := make(map[string]bool, len(builtinArity))
	for name := range builtinArity {
		if _, ok := registry.Lookup(name); ok {
			fnSet[name] = true
		}
	}
	rewritten, siteIDs := injectInvocationIDs(expression, fnSet)
	e.callSites = make([]customfn.InvocationID, len(siteIDs))
	for i, id := range siteIDs {
		e.callSites[i] = customfn.InvocationID(id)
	}

	opts := make([]cel.EnvOption, 0, len(names)+len(fnSet))
	for _, n := range names {
		opts = append(opts, cel.Variable(n, cel.DynType))
	}
	for name := range fnSet {
		opts = append(opts, e.functionOption(name))
	}
	opts = append(opts, boolArithmeticOverloads()...)

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: building evaluation environment for campaign %s: %v", fwerrors.ErrCampaignMalformed, campaignID, err)
	}
	ast, iss := env.Compile(rewritten)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: compiling expression for campaign %s: %v", fwerrors.ErrCampaignMalformed, campaignID, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: planning program for campaign %s: %v", fwerrors.ErrCampaignMalformed, campaignID, err)
	}

	e.program = prg
	return e, nil
}

// functionOption builds the cel.EnvOption that registers name as a
// CEL function accepting the hidden leading invocation-id int plus one
// overload per arity count name supports, dispatching into the
// registry and recording the invocation id into e.invoked. The
// dispatch binding is shared across every overload: the registry
// function itself is variadic over the already-decoded signal.Value
// slice, so only CEL's per-arity overload declaration needs repeating.
func (e *Expr) functionOption(name string) cel.EnvOption {
	binding := cel.FunctionBinding(func(args ...ref.Val) ref.Val {
		fn, ok := e.registry.Lookup(name)
		if !ok {
			return types.NewErr("unknown custom function %s", name)
		}
		idVal, ok := args[0].(types.Int)
		if !ok {
			return types.NewErr("invalid invocation id argument to %s", name)
		}
		id := customfn.InvocationID(idVal)
		e.invoked = append(e.invoked, id)

		rest := make([]signal.Value, len(args)-1)
		for i, a := range args[1:] {
			rest[i] = fromCEL(a)
		}
		return toCEL(fn.Invoke(id, rest))
	})

	counts := builtinArity[name].counts()
	overloads := make([]cel.FunctionOpt, 0, len(counts))
	for _, count := range counts {
		argTypes := make([]*cel.Type, 0, count+1)
		argTypes = append(argTypes, cel.IntType)
		for i := 0; i < count; i++ {
			argTypes = append(argTypes, cel.DynType)
		}
		overloads = append(overloads, cel.Overload(fmt.Sprintf("%s_invocation_%d", name, count), argTypes, cel.DynType, binding))
	}

	return cel.Function(name, overloads...)
}

// Eval evaluates the compiled expression against values. It returns
// the result (Undefined on any evaluation error, per spec §7's
// never-fatal policy) and the invocation ids of every custom function
// call actually reached this round, in call order, so the caller can
// drive ConditionEnd for exactly those and none of the
// short-circuited ones.
func (e *Expr) Eval(values map[string]signal.Value) (signal.Value, []customfn.InvocationID) {
	e.invoked = e.invoked[:0]
	act := &signalActivation{values: values}

	out, _, err := e.program.Eval(act)
	if err != nil {
		return signal.Undefined(), nil
	}
	invoked := append([]customfn.InvocationID(nil), e.invoked...)
	return fromCEL(out), invoked
}

// CampaignID returns the id of the campaign this Expr was compiled
// for, for logging.
func (e *Expr) CampaignID() string { return e.campaignID }

// CallSites returns every invocation id assigned to a custom function
// call site in this expression, regardless of whether the most recent
// evaluation round reached it. The inspection engine uses this to find
// a fired campaign's MULTI_RISING_EDGE_TRIGGER call sites and drain
// their accumulated names without tracking call sites by function name
// itself.
func (e *Expr) CallSites() []customfn.InvocationID { return e.callSites }

// Release frees every custom function's per-invocation state held for
// this expression's call sites. Call when the owning campaign is
// retired or replaced.
func (e *Expr) Release() {
	for _, id := range e.callSites {
		e.registry.Cleanup(id)
	}
}

// EdgeTracker holds the per-campaign evaluation state that must
// survive across rounds: the previous boolean condition result (for
// rising-edge detection) and the last time the campaign fired (for
// minimum-interval suppression). Owned by the same single goroutine
// as Expr.Eval.
type EdgeTracker struct {
	lastResult map[string]bool
	lastFired  map[string]time.Time
}

// NewEdgeTracker returns an empty tracker.
func NewEdgeTracker() *EdgeTracker {
	return &EdgeTracker{
		lastResult: make(map[string]bool),
		lastFired:  make(map[string]time.Time),
	}
}

// ShouldFire applies trigger-mode and minimum-interval semantics to a
// freshly evaluated boolean condition for campaignID at time now.
func (t *EdgeTracker) ShouldFire(campaignID string, mode campaign.TriggerMode, condition bool, minInterval time.Duration, now time.Time) bool {
	prev := t.lastResult[campaignID]
	t.lastResult[campaignID] = condition

	var triggered bool
	switch mode {
	case campaign.TriggerAlways:
		triggered = condition
	case campaign.TriggerRisingEdge:
		triggered = condition && !prev
	}
	if !triggered {
		return false
	}

	if minInterval > 0 {
		if last, ok := t.lastFired[campaignID]; ok && now.Sub(last) < minInterval {
			return false
		}
	}
	t.lastFired[campaignID] = now
	return true
}

// Forget drops all tracked state for campaignID, called when the
// campaign is retired or replaced.
func (t *EdgeTracker) Forget(campaignID string) {
	delete(t.lastResult, campaignID)
	delete(t.lastFired, campaignID)
}
