package signal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetedge/inspection-agent/internal/signal"
)

func TestHistory_AppendAndLatest(t *testing.T) {
	h := signal.NewHistory(10, 1000)
	require.True(t, h.Append(100, signal.Double(1)))
	require.True(t, h.Append(200, signal.Double(2)))

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, signal.Timestamp(200), latest.Timestamp)

	prev, ok := h.Previous()
	require.True(t, ok)
	assert.Equal(t, signal.Timestamp(100), prev.Timestamp)
}

func TestHistory_OutOfOrderSampleDropped(t *testing.T) {
	h := signal.NewHistory(10, 1000)
	require.True(t, h.Append(200, signal.Double(2)))
	accepted := h.Append(100, signal.Double(1)) // older than last, dropped
	assert.False(t, accepted)
	assert.EqualValues(t, 1, h.OutOfOrderCount())
	assert.Equal(t, 1, h.Count())
}

func TestHistory_EqualTimestampAccepted(t *testing.T) {
	// Open question resolved: ts == last.ts is accepted, not dropped.
	h := signal.NewHistory(10, 1000)
	require.True(t, h.Append(100, signal.Double(1)))
	accepted := h.Append(100, signal.Double(2))
	assert.True(t, accepted)
	assert.EqualValues(t, 0, h.OutOfOrderCount())
	assert.Equal(t, 2, h.Count())
}

// TestHistory_WindowEviction verifies property 3 from spec §8: after
// ingest, max stored age never exceeds window_max + one sample interval.
func TestHistory_WindowEviction(t *testing.T) {
	h := signal.NewHistory(100, 50) // 50ms window
	for ts := signal.Timestamp(0); ts <= 200; ts += 10 {
		h.Append(ts, signal.Double(float64(ts)))
	}

	samples := h.LastN(h.Count())
	require.NotEmpty(t, samples)
	newest := samples[len(samples)-1].Timestamp
	oldest := samples[0].Timestamp
	assert.LessOrEqual(t, int64(newest-oldest), int64(60)) // window_max(50) + one interval(10)
}

func TestHistory_RingCapacityBounded(t *testing.T) {
	h := signal.NewHistory(3, 1_000_000) // time window effectively unbounded
	for ts := signal.Timestamp(0); ts < 10; ts++ {
		h.Append(ts, signal.Double(float64(ts)))
	}
	assert.Equal(t, 3, h.Count())
	latest, _ := h.Latest()
	assert.Equal(t, signal.Timestamp(9), latest.Timestamp)
}

func TestHistory_SeenSince(t *testing.T) {
	h := signal.NewHistory(10, 1000)
	assert.False(t, h.SeenSince(0))
	h.Append(100, signal.Bool(true))
	assert.True(t, h.SeenSince(50))
	assert.False(t, h.SeenSince(150))
}

func TestHistory_Aggregates(t *testing.T) {
	h := signal.NewHistory(10, 1000)
	for i, v := range []float64{1, 2, 3, 4} {
		h.Append(signal.Timestamp(i*10), signal.Double(v))
	}
	samples := h.LastN(h.Count())

	min, ok := signal.Min(samples)
	require.True(t, ok)
	assert.Equal(t, 1.0, min)

	max, ok := signal.Max(samples)
	require.True(t, ok)
	assert.Equal(t, 4.0, max)

	sum, ok := signal.Sum(samples)
	require.True(t, ok)
	assert.Equal(t, 10.0, sum)

	avg, ok := signal.Average(samples)
	require.True(t, ok)
	assert.Equal(t, 2.5, avg)

	assert.Equal(t, 4, signal.NumericCount(samples))
}

func TestHistory_Resize_PreservesRecentSamples(t *testing.T) {
	h := signal.NewHistory(5, 1000)
	for i := 0; i < 5; i++ {
		h.Append(signal.Timestamp(i*10), signal.Double(float64(i)))
	}
	h.Resize(2, 1000)
	assert.Equal(t, 2, h.Count())
	latest, _ := h.Latest()
	assert.Equal(t, signal.Timestamp(40), latest.Timestamp)
}

func TestValue_Coercion(t *testing.T) {
	b := signal.Bool(true)
	d, ok := b.AsDouble()
	require.True(t, ok)
	assert.Equal(t, 1.0, d)

	s := signal.String("x")
	_, ok = s.AsDouble()
	assert.False(t, ok)

	assert.True(t, signal.Undefined().IsUndefined())
}

func TestValue_Equal_StringNeverCoerces(t *testing.T) {
	assert.False(t, signal.String("1").Equal(signal.Double(1)))
	assert.True(t, signal.Bool(true).Equal(signal.Double(1)))
}
