// Package canreplay feeds canconsumer.Frame records from a recorded
// bus log, standing in for the real SocketCAN reader that spec §1
// treats as an opaque external producer. It exists so the agent binary
// has a runnable local-development and test-fixture path without
// requiring CAN hardware; production deployments wire a real bus
// reader into the same canconsumer.Frame channel instead.
package canreplay

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fleetedge/inspection-agent/internal/canconsumer"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

// ParseLine parses one log line of the form
// "<channel> <timestamp_ms> <frame_id_hex>#<payload_hex>", e.g.
// "0 1000 7DF#0201050000000000". Blank lines and lines starting with
// '#' are ignored by ReadLog, not passed here.
func ParseLine(line string) (canconsumer.Frame, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return canconsumer.Frame{}, fmt.Errorf("canreplay: expected 3 fields, got %d: %q", len(fields), line)
	}

	channel, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return canconsumer.Frame{}, fmt.Errorf("canreplay: bad channel %q: %w", fields[0], err)
	}
	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return canconsumer.Frame{}, fmt.Errorf("canreplay: bad timestamp %q: %w", fields[1], err)
	}

	idAndPayload := strings.SplitN(fields[2], "#", 2)
	if len(idAndPayload) != 2 {
		return canconsumer.Frame{}, fmt.Errorf("canreplay: malformed frame %q, expected id#payload", fields[2])
	}
	frameID, err := strconv.ParseUint(idAndPayload[0], 16, 32)
	if err != nil {
		return canconsumer.Frame{}, fmt.Errorf("canreplay: bad frame id %q: %w", idAndPayload[0], err)
	}
	payload, err := hex.DecodeString(idAndPayload[1])
	if err != nil {
		return canconsumer.Frame{}, fmt.Errorf("canreplay: bad payload %q: %w", idAndPayload[1], err)
	}

	return canconsumer.Frame{
		Channel:   signal.ChannelID(channel),
		Timestamp: signal.Timestamp(ts),
		FrameID:   uint32(frameID),
		Payload:   payload,
	}, nil
}

// ReadLog scans r line by line and sends each parsed Frame on the
// returned channel, which is closed when r is exhausted or ctx is
// cancelled between lines. A malformed line is skipped rather than
// aborting the stream — replay logs are a dev convenience, not a
// validated wire format. The caller should range over the channel.
func ReadLog(ctx context.Context, r io.Reader) <-chan canconsumer.Frame {
	out := make(chan canconsumer.Frame)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			frame, err := ParseLine(line)
			if err != nil {
				continue
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
