package candecode

import (
	"sync/atomic"

	"github.com/fleetedge/inspection-agent/internal/signal"
)

// ExtendedIDMask is the 29-bit mask applied to a frame id when the
// direct (channel, frame_id) lookup misses, to compensate for cloud
// dictionaries that do not carry the extended-frame flag (spec §4.3).
// It matches the Linux SocketCAN CAN_EFF_MASK.
const ExtendedIDMask uint32 = 0x1FFFFFFF

// ExtendedFrameFlag is the SocketCAN convention bit marking an extended
// (29-bit) frame id in the high bit of the wire frame_id.
const ExtendedFrameFlag uint32 = 0x80000000

// Dictionary is an immutable snapshot mapping (channel, frame id) to a
// decode method, plus the set of signal ids enabled for collection. It
// is never mutated after construction; swaps happen by atomically
// replacing the Handle's pointer.
type Dictionary struct {
	methods          map[signal.ChannelID]map[uint32]DecodeMethod
	signalsToCollect map[signal.ID]struct{}
}

// NewDictionary builds an immutable Dictionary from the given method
// map and collect set. The caller must not mutate either argument
// afterward.
func NewDictionary(methods map[signal.ChannelID]map[uint32]DecodeMethod, signalsToCollect map[signal.ID]struct{}) *Dictionary {
	return &Dictionary{methods: methods, signalsToCollect: signalsToCollect}
}

// SignalsToCollect returns the active collect set.
func (d *Dictionary) SignalsToCollect() map[signal.ID]struct{} { return d.signalsToCollect }

// Lookup resolves (channel, frameID) to a decode method. If the direct
// lookup misses, it retries with frameID masked to its 29-bit extended
// form; on a masked hit it returns the masked id as canonicalID so the
// caller rewrites downstream records to use it (spec §4.3 step 2).
func (d *Dictionary) Lookup(channel signal.ChannelID, frameID uint32) (method DecodeMethod, canonicalID uint32, ok bool) {
	byChannel, present := d.methods[channel]
	if !present {
		return DecodeMethod{}, frameID, false
	}
	if m, hit := byChannel[frameID]; hit {
		return m, frameID, true
	}
	masked := frameID & ExtendedIDMask
	if masked != frameID {
		if m, hit := byChannel[masked]; hit {
			return m, masked, true
		}
	}
	return DecodeMethod{}, frameID, false
}

// Handle is an atomically swappable Dictionary reference. A nil
// Dictionary is a legal "invalidated" state (spec §5): readers that
// Load a nil handle must drop the in-flight frame.
type Handle struct {
	ptr atomic.Pointer[Dictionary]
}

// Load returns the current snapshot, or nil if none (or invalidated).
func (h *Handle) Load() *Dictionary { return h.ptr.Load() }

// Store atomically replaces the snapshot. Passing nil invalidates the
// dictionary.
func (h *Handle) Store(d *Dictionary) { h.ptr.Store(d) }
