package candecode

import (
	"fmt"

	"github.com/fleetedge/inspection-agent/internal/fwerrors"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

// MaxPayloadBytes is the largest CAN-FD payload this decoder supports.
const MaxPayloadBytes = 64

// RawFrame is a captured raw CAN frame, inline-buffered to avoid a heap
// allocation on the hot path (spec §9).
type RawFrame struct {
	Channel     signal.ChannelID
	FrameID     uint32
	ReceiveTime signal.Timestamp
	Payload     [MaxPayloadBytes]byte
	Length      uint8
}

// Clone returns a value copy of f, satisfying queue.Cloner.
func (f RawFrame) Clone() RawFrame { return f }

// DecodeWarning is a non-fatal, per-signal or per-message decode issue.
// Warnings never abort decoding of the remaining signals in a frame.
type DecodeWarning struct {
	SignalID signal.ID
	Err      error
}

func (w DecodeWarning) Error() string {
	if w.SignalID == signal.InvalidID {
		return w.Err.Error()
	}
	return fmt.Sprintf("signal %d: %v", w.SignalID, w.Err)
}

// Decode applies method to payload, producing raw and/or decoded
// signal records per method.Policy. toCollect restricts decoding to
// signals present in the dictionary's active collect set (spec §4.4);
// signals with InvalidID are never decoded. Partial failures (an
// invalid format, or one signal's bit range overrunning the payload)
// are returned as warnings and do not prevent the remaining signals
// from decoding.
func Decode(
	method DecodeMethod,
	toCollect map[signal.ID]struct{},
	channel signal.ChannelID,
	frameID uint32,
	ts signal.Timestamp,
	payload []byte,
) (signals []signal.Collected, raw *RawFrame, warnings []DecodeWarning) {
	if method.Policy == PolicyRaw || method.Policy == PolicyRawAndDecode {
		raw = captureRaw(channel, frameID, ts, payload)
	}

	if method.Policy == PolicyRaw {
		return nil, raw, nil
	}

	if !method.Format.IsValid {
		warnings = append(warnings, DecodeWarning{SignalID: signal.InvalidID, Err: fwerrors.ErrFormatInvalid})
		return nil, raw, warnings
	}

	for _, sf := range method.Format.Signals {
		if sf.ID == signal.InvalidID {
			continue
		}
		if _, want := toCollect[sf.ID]; !want {
			continue
		}

		raw64, ok := extractBits(payload, int(sf.StartBit), int(sf.SizeBits), sf.IsBigEndian)
		if !ok {
			warnings = append(warnings, DecodeWarning{SignalID: sf.ID, Err: fwerrors.ErrDecodeFailure})
			continue
		}

		var rawNumeric float64
		if sf.IsSigned {
			rawNumeric = float64(signExtend(raw64, int(sf.SizeBits)))
		} else {
			rawNumeric = float64(raw64)
		}
		physical := rawNumeric*sf.Factor + sf.Offset

		val := valueForType(sf.Type, physical)
		signals = append(signals, signal.Collected{
			ID:        sf.ID,
			Timestamp: ts,
			Value:     val,
			Type:      sf.Type,
		})
	}

	return signals, raw, warnings
}

func valueForType(t signal.Type, physical float64) signal.Value {
	if t == signal.TypeBool {
		return signal.Bool(physical != 0)
	}
	return signal.Double(physical)
}

func captureRaw(channel signal.ChannelID, frameID uint32, ts signal.Timestamp, payload []byte) *RawFrame {
	rf := &RawFrame{Channel: channel, FrameID: frameID, ReceiveTime: ts}
	n := len(payload)
	if n > MaxPayloadBytes {
		n = MaxPayloadBytes
	}
	copy(rf.Payload[:n], payload[:n])
	rf.Length = uint8(n)
	return rf
}
