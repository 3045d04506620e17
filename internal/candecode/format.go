// Package candecode implements bit-exact CAN/CAN-FD signal decoding
// against a dynamically swappable decoder dictionary.
package candecode

import "github.com/fleetedge/inspection-agent/internal/signal"

// CollectPolicy selects what a matched (channel, frame id) produces.
type CollectPolicy uint8

const (
	// PolicyRaw copies the frame payload verbatim, no signal decode.
	PolicyRaw CollectPolicy = iota
	// PolicyDecode runs the bit extractor for enabled signals only.
	PolicyDecode
	// PolicyRawAndDecode does both.
	PolicyRawAndDecode
)

// CANSignalFormat describes how to extract one signal from a frame
// payload.
type CANSignalFormat struct {
	ID          signal.ID
	StartBit    uint16
	SizeBits    uint16
	IsBigEndian bool
	IsSigned    bool
	Factor      float64
	Offset      float64
	Type        signal.Type
}

// CANMessageFormat describes how to decode one (channel, frame id).
type CANMessageFormat struct {
	MessageID uint32
	SizeBytes uint8
	Signals   []CANSignalFormat
	IsValid   bool
}

// DecodeMethod pairs a message format with the collection policy to
// apply when a frame matching it arrives.
type DecodeMethod struct {
	Format CANMessageFormat
	Policy CollectPolicy
}
