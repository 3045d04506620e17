// Package fwconfig holds the structured configuration for the inspection
// agent: channel topology, queue sizing, and backoff tuning. Loading it
// from a file or the cloud config service is an external concern (see
// spec §1 non-goals); this package only defines the shape, defaults,
// YAML parsing of already-read bytes, and validation.
package fwconfig

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the configuration schema version.
const SchemaVersion = "1"

// AgentConfig is the root configuration document for the inspection agent.
type AgentConfig struct {
	Version    string           `yaml:"version"`
	Log        LogConfig        `yaml:"log"`
	Channels   []ChannelConfig  `yaml:"channels"`
	Queues     QueueConfig      `yaml:"queues"`
	Inspection InspectionConfig `yaml:"inspection"`
	Uplink     UplinkConfig     `yaml:"uplink"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Pretty      bool   `yaml:"pretty"`
	SampleEvery uint32 `yaml:"sample_every,omitempty"`
}

// ChannelConfig describes one CAN bus channel the agent ingests from.
type ChannelConfig struct {
	ID             uint8   `yaml:"id"`
	Name           string  `yaml:"name"`
	EstimatedMaxHz float64 `yaml:"estimated_max_hz"` // worst-case frame rate; validated as positive, but history ring sizing does not read it (it uses InspectionConfig.DefaultHistorySampleInterval)
}

// QueueConfig sizes the bounded queues between pipeline stages.
type QueueConfig struct {
	ConsumerToInspectionDepth int    `yaml:"consumer_to_inspection_depth"`
	UplinkDepth               int    `yaml:"uplink_depth"`
	OverflowPolicy            string `yaml:"overflow_policy"` // "drop_oldest" | "drop_newest"
}

// InspectionConfig tunes the inspection engine.
type InspectionConfig struct {
	DefaultHistorySampleInterval time.Duration `yaml:"default_history_sample_interval"`
	MultiRisingEdgeSignalName    string        `yaml:"multi_rising_edge_signal_name"`
}

// UplinkConfig tunes the retry executor guarding the uplink boundary.
type UplinkConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// DefaultAgentConfig returns an agent config with sensible defaults for a
// small single-vehicle deployment.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		Version: SchemaVersion,
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Channels: []ChannelConfig{
			{ID: 0, Name: "can0", EstimatedMaxHz: 1000},
		},
		Queues: QueueConfig{
			ConsumerToInspectionDepth: 2048,
			UplinkDepth:               256,
			OverflowPolicy:            "drop_oldest",
		},
		Inspection: InspectionConfig{
			DefaultHistorySampleInterval: time.Millisecond,
			MultiRisingEdgeSignalName:    "Vehicle.MultiRisingEdgeTrigger",
		},
		Uplink: UplinkConfig{
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
		},
	}
}

// Load parses an AgentConfig document from YAML bytes and validates it.
func Load(data []byte) (*AgentConfig, error) {
	cfg := DefaultAgentConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for internal consistency.
func (c *AgentConfig) Validate() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("fwconfig: at least one channel is required")
	}
	seen := make(map[uint8]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if seen[ch.ID] {
			return fmt.Errorf("fwconfig: duplicate channel id %d", ch.ID)
		}
		seen[ch.ID] = true
		if ch.EstimatedMaxHz <= 0 {
			return fmt.Errorf("fwconfig: channel %d: estimated_max_hz must be positive", ch.ID)
		}
	}
	if c.Queues.ConsumerToInspectionDepth <= 0 || c.Queues.UplinkDepth <= 0 {
		return fmt.Errorf("fwconfig: queue depths must be positive")
	}
	switch c.Queues.OverflowPolicy {
	case "drop_oldest", "drop_newest":
	default:
		return fmt.Errorf("fwconfig: unknown overflow policy %q", c.Queues.OverflowPolicy)
	}
	if c.Uplink.InitialBackoff <= 0 {
		return fmt.Errorf("fwconfig: uplink initial_backoff must be positive")
	}
	return nil
}
