package evaluator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetedge/inspection-agent/internal/campaign"
	"github.com/fleetedge/inspection-agent/internal/customfn"
	"github.com/fleetedge/inspection-agent/internal/evaluator"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

func TestExpr_Eval_SimpleComparison(t *testing.T) {
	reg := customfn.NewRegistry()
	e, err := evaluator.Compile("c1", "speed > 50.0", []string{"speed"}, reg)
	require.NoError(t, err)

	result, invoked := e.Eval(map[string]signal.Value{"speed": signal.Double(72)})
	b, ok := result.AsBool()
	require.True(t, ok)
	assert.True(t, b)
	assert.Empty(t, invoked)

	result, _ = e.Eval(map[string]signal.Value{"speed": signal.Double(10)})
	b, _ = result.AsBool()
	assert.False(t, b)
}

func TestExpr_Eval_UndefinedSignalShortCircuitsAnd(t *testing.T) {
	reg := customfn.NewRegistry()
	e, err := evaluator.Compile("c2", "speed > 50.0 && rpm > 1000.0", []string{"speed", "rpm"}, reg)
	require.NoError(t, err)

	// rpm is absent entirely (undefined); speed already makes the
	// conjunction false, so CEL never needs rpm's value.
	result, _ := e.Eval(map[string]signal.Value{"speed": signal.Double(10)})
	b, ok := result.AsBool()
	require.True(t, ok)
	assert.False(t, b)
}

func TestExpr_Eval_UndefinedSignalPropagatesWhenNeeded(t *testing.T) {
	reg := customfn.NewRegistry()
	e, err := evaluator.Compile("c3", "speed > 50.0 && rpm > 1000.0", []string{"speed", "rpm"}, reg)
	require.NoError(t, err)

	result, _ := e.Eval(map[string]signal.Value{"speed": signal.Double(100)})
	assert.True(t, result.IsUndefined())
}

func TestExpr_Eval_CustomFunctionInvokedAndRecorded(t *testing.T) {
	reg := customfn.NewRegistry()
	e, err := evaluator.Compile("c4", `abs(delta) > 3.0`, []string{"delta"}, reg)
	require.NoError(t, err)

	result, invoked := e.Eval(map[string]signal.Value{"delta": signal.Double(-5)})
	b, _ := result.AsBool()
	assert.True(t, b)
	assert.Len(t, invoked, 1)
}

func TestExpr_Eval_MultiRisingEdgeTriggerIntegration(t *testing.T) {
	reg := customfn.NewRegistry()
	e, err := evaluator.Compile("c5", `MULTI_RISING_EDGE_TRIGGER("door", door_open)`, []string{"door_open"}, reg)
	require.NoError(t, err)

	result, invoked := e.Eval(map[string]signal.Value{"door_open": signal.Bool(false)})
	b, _ := result.AsBool()
	assert.False(t, b)
	require.Len(t, invoked, 1)

	result, invoked = e.Eval(map[string]signal.Value{"door_open": signal.Bool(true)})
	b, _ = result.AsBool()
	assert.True(t, b, "rising edge fires on the false->true transition")
	require.Len(t, invoked, 1)

	reg.EndRound("MULTI_RISING_EDGE_TRIGGER", invoked)
	arr, ok := reg.MultiRisingEdge().Drain(invoked[0])
	require.True(t, ok)
	assert.JSONEq(t, `["door"]`, arr)
}

// TestExpr_Eval_MultiRisingEdgeTriggerVariadicPairsCombineIntoOneArray
// exercises a single MULTI_RISING_EDGE_TRIGGER call site over more than
// one name/bool pair (spec §4.7's S5 scenario): all names that rose in
// the same call commit into one combined JSON array.
func TestExpr_Eval_MultiRisingEdgeTriggerVariadicPairsCombineIntoOneArray(t *testing.T) {
	reg := customfn.NewRegistry()
	e, err := evaluator.Compile("c5", `MULTI_RISING_EDGE_TRIGGER("ALARM1", a, "ALARM2", b, "ALARM3", c)`,
		[]string{"a", "b", "c"}, reg)
	require.NoError(t, err)

	_, invoked := e.Eval(map[string]signal.Value{
		"a": signal.Bool(false), "b": signal.Bool(false), "c": signal.Bool(false),
	})
	reg.EndRound("MULTI_RISING_EDGE_TRIGGER", invoked)

	result, invoked := e.Eval(map[string]signal.Value{
		"a": signal.Bool(true), "b": signal.Bool(false), "c": signal.Bool(true),
	})
	b, _ := result.AsBool()
	assert.True(t, b)
	require.Len(t, invoked, 1)

	reg.EndRound("MULTI_RISING_EDGE_TRIGGER", invoked)
	arr, ok := reg.MultiRisingEdge().Drain(invoked[0])
	require.True(t, ok)
	assert.JSONEq(t, `["ALARM1","ALARM3"]`, arr)
}

func TestExpr_Eval_MinMaxAcceptMoreThanTwoArguments(t *testing.T) {
	reg := customfn.NewRegistry()
	e, err := evaluator.Compile("c7", `min(a, b, c) == 1.0 && max(a, b, c) == 9.0`, []string{"a", "b", "c"}, reg)
	require.NoError(t, err)

	result, _ := e.Eval(map[string]signal.Value{"a": signal.Double(9), "b": signal.Double(1), "c": signal.Double(5)})
	b, ok := result.AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestExpr_Eval_BoolOperandCoercesToDoubleInArithmetic(t *testing.T) {
	reg := customfn.NewRegistry()
	e, err := evaluator.Compile("c8", `door_open + 1.0 > 1.0`, []string{"door_open"}, reg)
	require.NoError(t, err)

	result, _ := e.Eval(map[string]signal.Value{"door_open": signal.Bool(true)})
	b, ok := result.AsBool()
	require.True(t, ok)
	assert.True(t, b, "true coerces to 1.0, so 1.0+1.0 > 1.0")

	result, _ = e.Eval(map[string]signal.Value{"door_open": signal.Bool(false)})
	b, ok = result.AsBool()
	require.True(t, ok)
	assert.False(t, b, "false coerces to 0.0, so 0.0+1.0 > 1.0 is false")
}

func TestExpr_Compile_RejectsInvalidExpression(t *testing.T) {
	reg := customfn.NewRegistry()
	_, err := evaluator.Compile("bad", "speed >>> 5", []string{"speed"}, reg)
	assert.Error(t, err)
}

func TestEdgeTracker_RisingEdgeFiresOnceUntilConditionResets(t *testing.T) {
	tr := evaluator.NewEdgeTracker()
	now := time.Unix(1000, 0)

	assert.True(t, tr.ShouldFire("camp", campaign.TriggerRisingEdge, true, 0, now))
	assert.False(t, tr.ShouldFire("camp", campaign.TriggerRisingEdge, true, 0, now.Add(time.Second)))
	assert.False(t, tr.ShouldFire("camp", campaign.TriggerRisingEdge, false, 0, now.Add(2*time.Second)))
	assert.True(t, tr.ShouldFire("camp", campaign.TriggerRisingEdge, true, 0, now.Add(3*time.Second)))
}

func TestEdgeTracker_AlwaysModeFiresEveryTrueEvaluation(t *testing.T) {
	tr := evaluator.NewEdgeTracker()
	now := time.Unix(2000, 0)

	assert.True(t, tr.ShouldFire("camp", campaign.TriggerAlways, true, 0, now))
	assert.True(t, tr.ShouldFire("camp", campaign.TriggerAlways, true, 0, now.Add(time.Second)))
}

func TestEdgeTracker_MinIntervalSuppressesRapidRefires(t *testing.T) {
	tr := evaluator.NewEdgeTracker()
	now := time.Unix(3000, 0)
	minInterval := 10 * time.Second

	assert.True(t, tr.ShouldFire("camp", campaign.TriggerAlways, true, minInterval, now))
	assert.False(t, tr.ShouldFire("camp", campaign.TriggerAlways, true, minInterval, now.Add(2*time.Second)))
	assert.True(t, tr.ShouldFire("camp", campaign.TriggerAlways, true, minInterval, now.Add(11*time.Second)))
}

func TestEdgeTracker_ForgetClearsState(t *testing.T) {
	tr := evaluator.NewEdgeTracker()
	now := time.Unix(4000, 0)

	tr.ShouldFire("camp", campaign.TriggerRisingEdge, true, 0, now)
	tr.Forget("camp")
	assert.True(t, tr.ShouldFire("camp", campaign.TriggerRisingEdge, true, 0, now.Add(time.Second)),
		"forgetting resets the previous-result memory so the next true evaluation is a fresh rising edge")
}
