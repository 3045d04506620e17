// Package uplink carries finished collection payloads from the
// inspection engine to the cloud-facing transport, which is an
// opaque external collaborator (spec §1). It owns the outgoing
// distributor and a retry-backed publisher boundary.
package uplink

import (
	"github.com/google/uuid"

	"github.com/fleetedge/inspection-agent/internal/campaign"
	"github.com/fleetedge/inspection-agent/internal/candecode"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

// CollectionPayload is one campaign firing's assembled output, ready
// to hand to the transport layer. DeliveryID is generated once per
// firing and carried through every retry attempt, so a transport that
// sees the same delivery twice (a send that succeeded server-side but
// failed to ack) can de-duplicate on it.
type CollectionPayload struct {
	DeliveryID  uuid.UUID
	CampaignID  string
	FiredAt     signal.Timestamp
	Raw         *candecode.RawFrame
	Signals     []signal.Collected
	Compression campaign.Compression
}

// Clone returns a deep-enough copy of p for fan-out to more than one
// destination queue (queue.Cloner): the signal slice and raw frame
// pointer are copied so each destination owns independent memory.
func (p CollectionPayload) Clone() CollectionPayload {
	if p.Signals != nil {
		p.Signals = append([]signal.Collected(nil), p.Signals...)
	}
	if p.Raw != nil {
		raw := *p.Raw
		p.Raw = &raw
	}
	return p
}
