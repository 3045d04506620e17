// Package canconsumer applies the active decoder dictionary to each
// incoming CAN frame and forwards the resulting decoded signals and/or
// raw frames downstream. One Consumer runs per bus channel, on its own
// goroutine (spec §5).
package canconsumer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/fleetedge/inspection-agent/internal/candecode"
	"github.com/fleetedge/inspection-agent/internal/fwerrors"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

// Frame is a bus-side CAN frame intake record (spec §6). Extended
// frames carry the SocketCAN EFF flag in the high bit of FrameID.
type Frame struct {
	Channel   signal.ChannelID
	Timestamp signal.Timestamp
	FrameID   uint32
	Payload   []byte
}

// Sink receives decoded output from a Consumer.
type Sink interface {
	PushSignals(signals []signal.Collected)
	PushRaw(raw *candecode.RawFrame)
}

// Counters tracks per-consumer drop/warning counts, exposed for the
// ambient metrics surface (SPEC_FULL §9).
type Counters struct {
	DictionaryAbsent uint64
	DecodeFailures   uint64
	FormatInvalid    uint64
}

// Consumer applies dict to every ingested frame on one channel.
type Consumer struct {
	channel signal.ChannelID
	dict    *candecode.Handle
	sink    Sink
	logger  zerolog.Logger
	queue   <-chan Frame

	counters Counters
}

// NewConsumer creates a Consumer for a single channel, reading frames
// from in and publishing decoded output to sink.
func NewConsumer(channel signal.ChannelID, dict *candecode.Handle, in <-chan Frame, sink Sink, logger zerolog.Logger) *Consumer {
	return &Consumer{
		channel: channel,
		dict:    dict,
		sink:    sink,
		logger:  logger.With().Str("component", "canconsumer").Uint8("channel", uint8(channel)).Logger(),
		queue:   in,
	}
}

// Run processes frames until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-c.queue:
			if !ok {
				return
			}
			c.Ingest(f)
		}
	}
}

// Ingest applies the dictionary snapshot observed at entry to f. The
// snapshot is loaded exactly once per frame so a concurrent swap never
// affects a frame already in flight (spec §4.3, §5).
func (c *Consumer) Ingest(f Frame) {
	dict := c.dict.Load()
	if dict == nil {
		c.counters.DictionaryAbsent++
		c.logger.Debug().Err(fwerrors.ErrDictionaryAbsent).Msg("no active dictionary, dropping frame")
		return
	}

	method, canonicalID, ok := dict.Lookup(f.Channel, f.FrameID)
	if !ok {
		c.counters.DictionaryAbsent++
		return
	}

	signals, raw, warnings := candecode.Decode(method, dict.SignalsToCollect(), f.Channel, canonicalID, f.Timestamp, f.Payload)
	for _, w := range warnings {
		switch {
		case w.Err == fwerrors.ErrFormatInvalid:
			c.counters.FormatInvalid++
		default:
			c.counters.DecodeFailures++
		}
		c.logger.Warn().Err(w).Msg("decode warning")
	}

	if len(signals) > 0 {
		c.sink.PushSignals(signals)
	}
	if raw != nil {
		c.sink.PushRaw(raw)
	}
}

// CountersSnapshot returns a copy of the current counters.
func (c *Consumer) CountersSnapshot() Counters { return c.counters }
