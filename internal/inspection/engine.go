// Package inspection is the orchestration core: it owns every
// signal's history, holds the active campaign set, re-evaluates
// dirty campaigns as new signals arrive, and hands fired campaigns'
// collection frames to the uplink boundary. It runs on one goroutine
// and owns all of this state exclusively (spec §5).
package inspection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetedge/inspection-agent/internal/campaign"
	"github.com/fleetedge/inspection-agent/internal/candecode"
	"github.com/fleetedge/inspection-agent/internal/customfn"
	"github.com/fleetedge/inspection-agent/internal/evaluator"
	"github.com/fleetedge/inspection-agent/internal/fwconfig"
	"github.com/fleetedge/inspection-agent/internal/queue"
	"github.com/fleetedge/inspection-agent/internal/signal"
	"github.com/fleetedge/inspection-agent/internal/uplink"
)

// CollectedDataFrame is one decoded CAN frame's combined output: the
// raw capture and/or decoded signals a canconsumer produced for it.
// The zero value (both fields nil) is the legal empty no-op frame
// (spec §3).
type CollectedDataFrame struct {
	Raw     *candecode.RawFrame
	Signals []signal.Collected
}

// compiledCampaign pairs a parsed Campaign with its compiled
// expression and the set of signal ids it reads, precomputed once at
// registration time so the hot evaluation path never walks the
// expression text.
type compiledCampaign struct {
	campaign   *campaign.Campaign
	expr       *evaluator.Expr
	watchedIDs map[signal.ID]struct{}
}

// Metrics is a point-in-time snapshot of the engine's counters,
// exposed for an external metrics exporter to poll (SPEC_FULL §9).
type Metrics struct {
	FramesIngested   uint64
	SignalsIngested  uint64
	CampaignsFired   uint64
	IntakeOverflow   uint64
	UplinkOverflow   uint64
	EvaluationErrors uint64
}

// Engine is the inspection worker: it ingests decoded frames, updates
// per-signal history, evaluates dirty campaigns, and emits collection
// payloads. Not safe for concurrent use — everything but the intake
// queue and the Sink adapter is owned exclusively by the goroutine
// running Run.
type Engine struct {
	cfg      fwconfig.InspectionConfig
	logger   zerolog.Logger
	registry *customfn.Registry
	tracker  *evaluator.EdgeTracker

	in  *queue.Queue[CollectedDataFrame]
	out *queue.Distributor[uplink.CollectionPayload]

	nameByID map[signal.ID]string
	idByName map[string]signal.ID

	histories map[signal.ID]*signal.History
	campaigns map[string]*compiledCampaign
	dirty     map[signal.ID]struct{}

	// latestRaw is the most recently ingested raw capture. canconsumer
	// delivers raw captures and decoded signals from the same physical
	// CAN frame as two separate Sink calls, so a fired campaign's
	// payload carries the most recent raw frame seen rather than one
	// threaded precisely from the triggering push.
	latestRaw *candecode.RawFrame

	metrics Metrics
}

// NewEngine creates an Engine. intakeCapacity/intakePolicy size the
// bounded queue canconsumer instances publish decoded output into;
// out is the (already-registered) distributor fanning finished
// payloads out to the uplink publisher(s).
func NewEngine(
	cfg fwconfig.InspectionConfig,
	intakeCapacity int,
	intakePolicy queue.OverflowPolicy,
	registry *customfn.Registry,
	out *queue.Distributor[uplink.CollectionPayload],
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger.With().Str("component", "inspection").Logger(),
		registry:  registry,
		tracker:   evaluator.NewEdgeTracker(),
		in:        queue.New[CollectedDataFrame](intakeCapacity, intakePolicy),
		out:       out,
		nameByID:  make(map[signal.ID]string),
		idByName:  make(map[string]signal.ID),
		histories: make(map[signal.ID]*signal.History),
		campaigns: make(map[string]*compiledCampaign),
		dirty:     make(map[signal.ID]struct{}),
	}
}

// Sink returns the canconsumer.Sink adapter one or more Consumer
// goroutines push decoded output through. It is safe to share across
// every channel's consumer: the underlying queue is a bounded MPSC.
func (e *Engine) Sink() *EngineSink { return &EngineSink{engine: e} }

// EngineSink adapts Engine's intake queue to canconsumer.Sink.
type EngineSink struct{ engine *Engine }

// PushSignals enqueues a decoded-signals-only frame. On overflow the
// record is dropped per policy and the overflow counter advances; the
// canconsumer goroutine is never blocked.
func (s *EngineSink) PushSignals(signals []signal.Collected) {
	if !s.engine.in.TryPush(CollectedDataFrame{Signals: signals}) {
		s.engine.metrics.IntakeOverflow++
	}
}

// PushRaw enqueues a raw-capture-only frame.
func (s *EngineSink) PushRaw(raw *candecode.RawFrame) {
	if !s.engine.in.TryPush(CollectedDataFrame{Raw: raw}) {
		s.engine.metrics.IntakeOverflow++
	}
}

// SetSignalNames installs the name table used to resolve campaign
// expression variables. Called whenever a new decoder manifest makes
// the name<->id mapping available; existing campaigns are unaffected
// until re-registered.
func (e *Engine) SetSignalNames(nameByID map[signal.ID]string) {
	e.nameByID = nameByID
	e.idByName = make(map[string]signal.ID, len(nameByID))
	for id, name := range nameByID {
		e.idByName[name] = id
	}
}

// RegisterCampaign compiles and activates c, replacing any prior
// campaign with the same id. Returns an error (wrapping
// fwerrors.ErrCampaignMalformed via the evaluator) without touching
// the previously active campaign if compilation fails (spec §7).
func (e *Engine) RegisterCampaign(c *campaign.Campaign) error {
	names := make([]string, 0, len(e.idByName))
	candidates := make(map[string]bool, len(e.idByName))
	for name := range e.idByName {
		names = append(names, name)
		candidates[name] = true
	}

	expr, err := evaluator.Compile(c.ID, c.Expression, names, e.registry)
	if err != nil {
		return err
	}

	watched := make(map[signal.ID]struct{})
	for name := range evaluator.ReferencedNames(c.Expression, candidates) {
		watched[e.idByName[name]] = struct{}{}
	}
	for _, spec := range c.CollectSignals {
		watched[spec.SignalID] = struct{}{}
	}

	if prev, ok := e.campaigns[c.ID]; ok {
		prev.expr.Release()
		e.tracker.Forget(c.ID)
	}
	e.campaigns[c.ID] = &compiledCampaign{campaign: c, expr: expr, watchedIDs: watched}

	for _, spec := range c.CollectSignals {
		e.ensureHistory(spec.SignalID, spec.Window)
	}
	for id := range watched {
		if _, ok := e.histories[id]; !ok {
			e.ensureHistory(id, campaign.WindowSpec{})
		}
	}
	return nil
}

// UnregisterCampaign retires a campaign, releasing its custom
// function state and edge-tracking memory.
func (e *Engine) UnregisterCampaign(campaignID string) {
	if cc, ok := e.campaigns[campaignID]; ok {
		cc.expr.Release()
		delete(e.campaigns, campaignID)
		e.tracker.Forget(campaignID)
	}
}

// ensureHistory creates or widens the History for signalID so it can
// satisfy window's span/count requirement, deriving ring capacity
// from the engine's configured sample-interval estimate.
func (e *Engine) ensureHistory(signalID signal.ID, window campaign.WindowSpec) {
	interval := e.cfg.DefaultHistorySampleInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	windowMaxMs := int64(window.Span / time.Millisecond)
	capacity := window.SampleCount
	if windowMaxMs > 0 {
		intervalMs := interval.Milliseconds()
		if intervalMs < 1 {
			intervalMs = 1
		}
		byTime := int(math.Ceil(float64(windowMaxMs) / float64(intervalMs)))
		if byTime > capacity {
			capacity = byTime
		}
	}
	if capacity < 1 {
		capacity = 1
	}

	h, exists := e.histories[signalID]
	if !exists {
		e.histories[signalID] = signal.NewHistory(capacity, windowMaxMs)
		return
	}
	h.Resize(capacity, windowMaxMs)
}

// Run processes intake frames and dirty-campaign re-evaluation until
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	for {
		frame, ok := e.in.Pop(ctx)
		if !ok {
			return
		}
		e.ingest(frame)
	}
}

// ingest folds one decoded frame's signals into history, marks the
// signals it touched dirty, and re-evaluates every campaign reading
// at least one dirty signal.
func (e *Engine) ingest(frame CollectedDataFrame) {
	e.metrics.FramesIngested++
	if frame.Raw != nil {
		e.latestRaw = frame.Raw
	}
	now := signal.Timestamp(0)
	for _, s := range frame.Signals {
		e.metrics.SignalsIngested++
		h, ok := e.histories[s.ID]
		if !ok {
			// No active campaign references this signal; nothing to
			// retain or evaluate against.
			continue
		}
		if !h.Append(s.Timestamp, s.Value) {
			continue
		}
		e.dirty[s.ID] = struct{}{}
		if s.Timestamp > now {
			now = s.Timestamp
		}
	}
	if len(e.dirty) == 0 {
		return
	}

	nowTime := time.UnixMilli(int64(now))
	for _, cc := range e.campaigns {
		if !e.readsDirtySignal(cc) {
			continue
		}
		e.evaluate(cc, e.latestRaw, nowTime)
	}
	for id := range e.dirty {
		delete(e.dirty, id)
	}
}

func (e *Engine) readsDirtySignal(cc *compiledCampaign) bool {
	for id := range cc.watchedIDs {
		if _, ok := e.dirty[id]; ok {
			return true
		}
	}
	return false
}

// evaluate re-runs a campaign's condition and, if it fires, builds and
// emits its collection payload.
func (e *Engine) evaluate(cc *compiledCampaign, triggerRaw *candecode.RawFrame, now time.Time) {
	if cc.campaign.Expired(now) {
		return
	}

	values := make(map[string]signal.Value, len(e.idByName))
	for name, id := range e.idByName {
		h, ok := e.histories[id]
		if !ok {
			continue
		}
		if latest, ok := h.Latest(); ok {
			values[name] = latest.Value
		}
	}

	result, invoked := cc.expr.Eval(values)
	condition, ok := result.AsBool()
	if !ok {
		e.metrics.EvaluationErrors++
		condition = false
	}

	fired := e.tracker.ShouldFire(cc.campaign.ID, cc.campaign.TriggerMode, condition, cc.campaign.MinInterval, now)

	for name := range builtinConditionEndFunctions {
		e.registry.EndRound(name, invoked)
	}

	if !fired {
		return
	}
	e.metrics.CampaignsFired++
	e.emit(cc, triggerRaw, signal.Timestamp(now.UnixMilli()))
}

// builtinConditionEndFunctions lists every registered function name
// that carries round-scoped state needing a ConditionEnd pass; kept
// separate from customfn's own registry so the engine doesn't need to
// enumerate all function names on every evaluation.
var builtinConditionEndFunctions = map[string]struct{}{
	"MULTI_RISING_EDGE_TRIGGER": {},
}

// emit assembles the collection payload for a fired campaign and
// pushes it to the uplink distributor.
func (e *Engine) emit(cc *compiledCampaign, triggerRaw *candecode.RawFrame, firedAt signal.Timestamp) {
	c := cc.campaign
	signals := make([]signal.Collected, 0, len(c.CollectSignals))
	for _, spec := range c.CollectSignals {
		h, ok := e.histories[spec.SignalID]
		if !ok {
			continue
		}
		samples := windowSamples(h, spec.Window, firedAt)
		for _, s := range samples {
			signals = append(signals, signal.Collected{ID: spec.SignalID, Timestamp: s.Timestamp, Value: s.Value})
		}
	}
	signals = append(signals, e.drainMultiRisingEdgeSignals(cc, firedAt)...)

	payload := uplink.CollectionPayload{
		DeliveryID:  uuid.New(),
		CampaignID:  c.ID,
		FiredAt:     firedAt,
		Raw:         triggerRaw,
		Signals:     signals,
		Compression: c.Compression,
	}
	if rejected := e.out.Push(payload); rejected > 0 {
		e.metrics.UplinkOverflow += uint64(rejected)
	}
}

// drainMultiRisingEdgeSignals drains every MULTI_RISING_EDGE_TRIGGER
// call site belonging to cc's expression and, if any produced a
// pending JSON array of risen names, attaches it to the configured
// output signal (spec §4.7, §4.8). A campaign's call sites include
// every custom function it uses, not just MULTI_RISING_EDGE_TRIGGER
// ones; Drain is a safe no-op for any id that isn't a
// MULTI_RISING_EDGE_TRIGGER invocation or has nothing pending, so no
// per-function-type bookkeeping is needed to find the right ones.
func (e *Engine) drainMultiRisingEdgeSignals(cc *compiledCampaign, firedAt signal.Timestamp) []signal.Collected {
	outID, ok := e.idByName[e.cfg.MultiRisingEdgeSignalName]
	if !ok {
		return nil
	}

	var out []signal.Collected
	for _, id := range cc.expr.CallSites() {
		jsonArray, ok := e.DrainMultiRisingEdge(id)
		if !ok {
			continue
		}
		out = append(out, signal.Collected{ID: outID, Timestamp: firedAt, Value: signal.String(jsonArray)})
	}
	return out
}

// windowSamples selects the samples a SignalCollectSpec's window asks
// for: the latest value if both span and count are zero, otherwise
// the union reachable via the larger of the two bounds.
func windowSamples(h *signal.History, w campaign.WindowSpec, now signal.Timestamp) []signal.Sample {
	if w.Span <= 0 && w.SampleCount <= 0 {
		if latest, ok := h.Latest(); ok {
			return []signal.Sample{latest}
		}
		return nil
	}
	if w.Span > 0 {
		return h.Since(now, int64(w.Span/time.Millisecond))
	}
	return h.LastN(w.SampleCount)
}

// Metrics returns a copy of the current counters.
func (e *Engine) Metrics() Metrics { return e.metrics }

// DrainMultiRisingEdge returns the JSON array output the
// MULTI_RISING_EDGE_TRIGGER function accumulated for the given
// invocation id since it was last drained, for attaching to the
// configured output signal (spec §4.7, SPEC_FULL §4.7).
func (e *Engine) DrainMultiRisingEdge(id customfn.InvocationID) (string, bool) {
	mre := e.registry.MultiRisingEdge()
	if mre == nil {
		return "", false
	}
	return mre.Drain(id)
}

// IntakeOverflowCount is a convenience accessor mirroring the
// queue's own counter, useful in tests.
func (e *Engine) IntakeOverflowCount() uint64 { return e.in.OverflowCount() }

// String renders Metrics for log lines.
func (m Metrics) String() string {
	return fmt.Sprintf(
		"frames=%d signals=%d fired=%d intake_overflow=%d uplink_overflow=%d eval_errors=%d",
		m.FramesIngested, m.SignalsIngested, m.CampaignsFired, m.IntakeOverflow, m.UplinkOverflow, m.EvaluationErrors,
	)
}
