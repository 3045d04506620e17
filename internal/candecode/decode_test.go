package candecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetedge/inspection-agent/internal/candecode"
	"github.com/fleetedge/inspection-agent/internal/fwerrors"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

func byteRange(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func twoSignalFormat(valid bool) candecode.CANMessageFormat {
	return candecode.CANMessageFormat{
		MessageID: 0x123,
		SizeBytes: 8,
		IsValid:   valid,
		Signals: []candecode.CANSignalFormat{
			{ID: 1, StartBit: 8, SizeBits: 16, IsBigEndian: true, Factor: 1, Type: signal.TypeDouble},
			{ID: 7, StartBit: 8, SizeBits: 16, IsBigEndian: false, Factor: 1, Type: signal.TypeDouble},
		},
	}
}

// TestDecode_BigEndianByteAligned exercises property 1: the decoded
// signal id set is exactly format.signals ∩ dictionary.signals_to_collect.
func TestDecode_BigEndianByteAligned(t *testing.T) {
	method := candecode.DecodeMethod{Format: twoSignalFormat(true), Policy: candecode.PolicyDecode}
	toCollect := map[signal.ID]struct{}{1: {}}
	payload := byteRange(8)

	signals, raw, warnings := candecode.Decode(method, toCollect, 0, 0x123, 1000, payload)
	require.Empty(t, warnings)
	assert.Nil(t, raw)
	require.Len(t, signals, 1)
	assert.Equal(t, signal.ID(1), signals[0].ID)

	v, ok := signals[0].Value.AsDouble()
	require.True(t, ok)
	// bytes[1],bytes[2] = 0x01,0x02 big-endian => 0x0102 = 258
	assert.Equal(t, 258.0, v)
}

func TestDecode_LittleEndianByteAligned(t *testing.T) {
	method := candecode.DecodeMethod{Format: twoSignalFormat(true), Policy: candecode.PolicyDecode}
	toCollect := map[signal.ID]struct{}{7: {}}
	payload := byteRange(8)

	signals, _, warnings := candecode.Decode(method, toCollect, 0, 0x123, 1000, payload)
	require.Empty(t, warnings)
	require.Len(t, signals, 1)
	v, _ := signals[0].Value.AsDouble()
	// intel: byte[1] | byte[2]<<8 = 0x01 | 0x02<<8 = 0x0201 = 513
	assert.Equal(t, 513.0, v)
}

func TestDecode_SignExtension(t *testing.T) {
	format := candecode.CANMessageFormat{
		MessageID: 0x1,
		IsValid:   true,
		Signals: []candecode.CANSignalFormat{
			{ID: 1, StartBit: 4, SizeBits: 4, IsBigEndian: true, IsSigned: true, Factor: 1, Type: signal.TypeDouble},
		},
	}
	// payload[0] = 0xAB -> bits[4..8) big-endian = low nibble 0xB = 1011b = -5 signed
	payload := []byte{0xAB}
	method := candecode.DecodeMethod{Format: format, Policy: candecode.PolicyDecode}
	toCollect := map[signal.ID]struct{}{1: {}}

	signals, _, warnings := candecode.Decode(method, toCollect, 0, 1, 0, payload)
	require.Empty(t, warnings)
	require.Len(t, signals, 1)
	v, _ := signals[0].Value.AsDouble()
	assert.Equal(t, -5.0, v)
}

func TestDecode_FactorAndOffset(t *testing.T) {
	format := candecode.CANMessageFormat{
		IsValid: true,
		Signals: []candecode.CANSignalFormat{
			{ID: 1, StartBit: 0, SizeBits: 8, IsBigEndian: true, Factor: 0.5, Offset: 10, Type: signal.TypeDouble},
		},
	}
	payload := []byte{20}
	method := candecode.DecodeMethod{Format: format, Policy: candecode.PolicyDecode}
	signals, _, _ := candecode.Decode(method, map[signal.ID]struct{}{1: {}}, 0, 1, 0, payload)
	require.Len(t, signals, 1)
	v, _ := signals[0].Value.AsDouble()
	assert.Equal(t, 20.0*0.5+10, v)
}

func TestDecode_InvalidIDNeverDecoded(t *testing.T) {
	format := candecode.CANMessageFormat{
		IsValid: true,
		Signals: []candecode.CANSignalFormat{
			{ID: signal.InvalidID, StartBit: 0, SizeBits: 8, Factor: 1},
		},
	}
	method := candecode.DecodeMethod{Format: format, Policy: candecode.PolicyDecode}
	toCollect := map[signal.ID]struct{}{signal.InvalidID: {}}
	signals, _, warnings := candecode.Decode(method, toCollect, 0, 1, 0, []byte{1})
	assert.Empty(t, signals)
	assert.Empty(t, warnings)
}

func TestDecode_WidthOverrunSkipsOnlyThatSignal(t *testing.T) {
	format := candecode.CANMessageFormat{
		IsValid: true,
		Signals: []candecode.CANSignalFormat{
			{ID: 1, StartBit: 0, SizeBits: 8, IsBigEndian: true, Factor: 1, Type: signal.TypeDouble},
			{ID: 2, StartBit: 100, SizeBits: 16, IsBigEndian: true, Factor: 1, Type: signal.TypeDouble}, // overruns 1-byte payload
		},
	}
	method := candecode.DecodeMethod{Format: format, Policy: candecode.PolicyDecode}
	toCollect := map[signal.ID]struct{}{1: {}, 2: {}}
	signals, _, warnings := candecode.Decode(method, toCollect, 0, 1, 0, []byte{0x42})

	require.Len(t, signals, 1)
	assert.Equal(t, signal.ID(1), signals[0].ID)
	require.Len(t, warnings, 1)
	assert.Equal(t, signal.ID(2), warnings[0].SignalID)
}

func TestDecode_FormatInvalidSkipsDecodeButRawStillCaptured(t *testing.T) {
	method := candecode.DecodeMethod{Format: twoSignalFormat(false), Policy: candecode.PolicyRawAndDecode}
	payload := byteRange(8)
	signals, raw, warnings := candecode.Decode(method, map[signal.ID]struct{}{1: {}}, 0, 0x123, 1000, payload)
	assert.Empty(t, signals)
	require.NotNil(t, raw)
	assert.Equal(t, uint8(8), raw.Length)
	require.Len(t, warnings, 1)
}

// TestDecode_S2FDFrame mirrors scenario S2: a 64-byte CAN-FD payload
// whose first bytes match S1's classic payload, producing identical raw
// frame capture with size=64.
func TestDecode_S2FDFrame(t *testing.T) {
	method := candecode.DecodeMethod{Format: twoSignalFormat(true), Policy: candecode.PolicyRawAndDecode}
	payload := byteRange(64)
	signals, raw, warnings := candecode.Decode(method, map[signal.ID]struct{}{1: {}, 7: {}}, 0, 0x123, 1000, payload)
	require.Empty(t, warnings)
	require.Len(t, signals, 2)
	require.NotNil(t, raw)
	assert.EqualValues(t, 64, raw.Length)
}

// TestDecode_S1LiteralBitRanges exercises scenario S1's literal
// bit-range pair over the classic 8-byte payload: signal1 at [24,54)
// decodes cleanly, while signal7 at [56,87) overruns the 64-bit
// payload by 23 bits and is skipped with a warning rather than failing
// the whole frame.
func TestDecode_S1LiteralBitRanges(t *testing.T) {
	format := candecode.CANMessageFormat{
		MessageID: 0x123,
		SizeBytes: 8,
		IsValid:   true,
		Signals: []candecode.CANSignalFormat{
			{ID: 1, StartBit: 24, SizeBits: 30, IsBigEndian: true, Factor: 1, Type: signal.TypeDouble},
			{ID: 7, StartBit: 56, SizeBits: 31, IsBigEndian: true, Factor: 1, Type: signal.TypeDouble},
		},
	}
	method := candecode.DecodeMethod{Format: format, Policy: candecode.PolicyDecode}
	toCollect := map[signal.ID]struct{}{1: {}, 7: {}}
	payload := byteRange(8)

	signals, _, warnings := candecode.Decode(method, toCollect, 0, 0x123, 1000, payload)

	require.Len(t, signals, 1)
	assert.Equal(t, signal.ID(1), signals[0].ID)
	v, ok := signals[0].Value.AsDouble()
	require.True(t, ok)
	// bytes[3..5] = 0x03,0x04,0x05 contribute the top 24 of the 30 bits,
	// the remaining 6 come from the top 6 bits of byte[6] = 0x06: value =
	// (3<<22)|(4<<14)|(5<<6)|(0x06>>2) = 12648769.
	assert.Equal(t, 12648769.0, v)

	require.Len(t, warnings, 1)
	assert.Equal(t, signal.ID(7), warnings[0].SignalID)
	assert.ErrorIs(t, warnings[0].Err, fwerrors.ErrDecodeFailure)
}

// TestDictionary_Lookup_Direct exercises a direct (channel, id) hit.
func TestDictionary_Lookup_Direct(t *testing.T) {
	method := candecode.DecodeMethod{Format: twoSignalFormat(true), Policy: candecode.PolicyDecode}
	dict := candecode.NewDictionary(
		map[signal.ChannelID]map[uint32]candecode.DecodeMethod{0: {0x123: method}},
		map[signal.ID]struct{}{1: {}, 7: {}},
	)
	m, id, ok := dict.Lookup(0, 0x123)
	require.True(t, ok)
	assert.Equal(t, uint32(0x123), id)
	assert.Equal(t, method.Policy, m.Policy)
}

// TestDictionary_Lookup_ExtendedIDFallback exercises property 2 and
// scenario S3: an extended-flagged frame id matches only under the
// 29-bit mask, and the canonical (masked) id is returned for rewriting.
func TestDictionary_Lookup_ExtendedIDFallback(t *testing.T) {
	method := candecode.DecodeMethod{Format: twoSignalFormat(true), Policy: candecode.PolicyDecode}
	dict := candecode.NewDictionary(
		map[signal.ChannelID]map[uint32]candecode.DecodeMethod{0: {0x123: method}},
		map[signal.ID]struct{}{1: {}},
	)

	extended := uint32(0x123) | candecode.ExtendedFrameFlag
	_, canonicalID, ok := dict.Lookup(0, extended)
	require.True(t, ok)
	assert.Equal(t, uint32(0x123), canonicalID)
}

func TestDictionary_Lookup_UnknownFrameDropped(t *testing.T) {
	dict := candecode.NewDictionary(map[signal.ChannelID]map[uint32]candecode.DecodeMethod{}, nil)
	_, _, ok := dict.Lookup(0, 0x999)
	assert.False(t, ok)
}

// TestHandle_NilSwap exercises property 6: a swap to null between two
// frames causes the next Load to observe nil, with no side effects.
func TestHandle_NilSwap(t *testing.T) {
	var h candecode.Handle
	dict := candecode.NewDictionary(map[signal.ChannelID]map[uint32]candecode.DecodeMethod{}, nil)
	h.Store(dict)
	assert.NotNil(t, h.Load())

	h.Store(nil)
	assert.Nil(t, h.Load())
}
