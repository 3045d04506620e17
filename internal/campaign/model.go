// Package campaign models cloud-issued campaigns and decoder manifests
// and parses them from the wire JSON documents described in spec §6.
package campaign

import (
	"time"

	"github.com/fleetedge/inspection-agent/internal/signal"
)

// TriggerMode selects edge-triggered vs. always-on firing.
type TriggerMode string

const (
	TriggerRisingEdge TriggerMode = "RISING_EDGE"
	TriggerAlways     TriggerMode = "ALWAYS"
)

// Compression names the payload compression the uplink transport should
// apply; the inspection engine never compresses data itself, it only
// carries the field through to the outgoing payload (SPEC_FULL §9).
type Compression string

const (
	CompressionNone   Compression = "NONE"
	CompressionSnappy Compression = "SNAPPY"
)

// WindowSpec names the history window to pull for a collected signal.
// Span and SampleCount may both be set; zero value of both means
// "latest value only".
type WindowSpec struct {
	Span        time.Duration
	SampleCount int
}

// SignalCollectSpec names one signal to include in the collection frame
// when a campaign fires, and the window of history to pull for it.
type SignalCollectSpec struct {
	SignalID signal.ID
	Name     string
	Window   WindowSpec
}

// Campaign is an immutable, cloud-issued collection rule.
type Campaign struct {
	ID                       string
	ConditionLanguageVersion int
	Expression               string
	TriggerMode              TriggerMode
	CollectSignals           []SignalCollectSpec
	MinInterval              time.Duration
	Expiry                   time.Time
	Compression              Compression
}

// Expired reports whether the campaign's expiry has passed as of now.
func (c *Campaign) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}
