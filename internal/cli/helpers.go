package cli

import (
	"context"
	"errors"

	"github.com/fleetedge/inspection-agent/internal/fwconfig"
	"github.com/fleetedge/inspection-agent/internal/retry"
	"github.com/fleetedge/inspection-agent/internal/signal"
	"github.com/fleetedge/inspection-agent/internal/uplink"
)

func signalChannelID(id uint8) signal.ChannelID { return signal.ChannelID(id) }

func retryConfigFrom(cfg fwconfig.UplinkConfig) retry.Config {
	return retry.Config{InitialBackoff: cfg.InitialBackoff, MaxBackoff: cfg.MaxBackoff}
}

// notConfiguredSend is the default uplink.SendFunc wired when no real
// transport is injected: the cloud-facing publisher is an opaque
// external collaborator (spec §1), so this build has nothing to send
// to and always reports a permanent failure, surfaced via the retry
// executor's backoff loop rather than silently dropping payloads.
func notConfiguredSend(_ context.Context, _ uplink.CollectionPayload) error {
	return errUplinkNotConfigured
}

var errUplinkNotConfigured = errors.New("cli: no uplink transport configured")
