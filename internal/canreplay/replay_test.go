package canreplay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetedge/inspection-agent/internal/signal"
)

func TestParseLine_DecodesChannelTimestampFrameIDAndPayload(t *testing.T) {
	f, err := ParseLine("0 1000 7DF#0201050000000000")
	require.NoError(t, err)
	assert.Equal(t, signal.ChannelID(0), f.Channel)
	assert.Equal(t, signal.Timestamp(1000), f.Timestamp)
	assert.Equal(t, uint32(0x7DF), f.FrameID)
	assert.Equal(t, []byte{0x02, 0x01, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00}, f.Payload)
}

func TestParseLine_RejectsMalformedInput(t *testing.T) {
	cases := []string{
		"0 1000",
		"0 1000 7DF",
		"zz 1000 7DF#00",
		"0 zz 7DF#00",
		"0 1000 zz#00",
		"0 1000 7DF#zz",
	}
	for _, c := range cases {
		_, err := ParseLine(c)
		assert.Error(t, err, c)
	}
}

func TestReadLog_SkipsBlankAndCommentLines(t *testing.T) {
	log := strings.Join([]string{
		"# header comment",
		"",
		"0 1000 100#01",
		"1 2000 200#02",
	}, "\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []uint32
	for f := range ReadLog(ctx, strings.NewReader(log)) {
		got = append(got, f.FrameID)
	}
	assert.Equal(t, []uint32{0x100, 0x200}, got)
}

func TestReadLog_SkipsUnparsableLinesWithoutStoppingTheStream(t *testing.T) {
	log := "garbage line\n0 1000 100#01\n"
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []uint32
	for f := range ReadLog(ctx, strings.NewReader(log)) {
		got = append(got, f.FrameID)
	}
	assert.Equal(t, []uint32{0x100}, got)
}

func TestReadLog_ClosesChannelWhenInputExhausted(t *testing.T) {
	ctx := context.Background()
	ch := ReadLog(ctx, strings.NewReader("0 1000 100#01\n"))

	select {
	case _, ok := <-ch:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected a frame")
	}

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after the reader is exhausted")
	case <-time.After(time.Second):
		t.Fatal("channel was never closed")
	}
}
