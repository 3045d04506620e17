package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fleetedge/inspection-agent/internal/canreplay"
)

func newRunCmd() *cobra.Command {
	var src Sources

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the inspection agent: decode CAN frames, evaluate campaigns, publish collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := Bootstrap(src)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			return runAgent(cmd.Context(), agent, src.ReplayLogPath)
		},
	}

	cmd.Flags().StringVar(&src.ConfigPath, "config", "", "Path to agent configuration file (defaults built in if omitted)")
	cmd.Flags().StringVar(&src.ManifestPath, "manifest", "", "Path to the decoder manifest document")
	cmd.Flags().StringVar(&src.CatalogPath, "catalog", "", "Path to the signal name catalog document")
	cmd.Flags().StringArrayVar(&src.CampaignPaths, "campaign", nil, "Path to a campaign document (may be repeated)")
	cmd.Flags().StringVar(&src.ReplayLogPath, "replay-log", "", "Path to a recorded CAN frame log, for local runs without bus hardware")

	return cmd
}

// runAgent starts every constructed component's goroutine, routes an
// optional replay log into the per-channel consumer queues, and blocks
// until SIGINT/SIGTERM or the command context is cancelled.
func runAgent(parent context.Context, agent *Agent, replayLogPath string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		agent.Engine.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		agent.Publisher.Run(ctx)
	}()

	for _, consumer := range agent.Consumers {
		consumer := consumer
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	if replayLogPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replayFrames(ctx, agent, replayLogPath)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		agent.Logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	return nil
}

// replayFrames reads a recorded frame log and routes each frame to the
// consumer registered for its channel, logging and skipping frames
// whose channel has no consumer configured.
func replayFrames(ctx context.Context, agent *Agent, path string) {
	f, err := os.Open(path)
	if err != nil {
		agent.Logger.Error().Err(err).Str("path", path).Msg("cannot open replay log")
		return
	}
	defer f.Close()

	for frame := range canreplay.ReadLog(ctx, f) {
		dest, ok := agent.FrameIntake[frame.Channel]
		if !ok {
			agent.Logger.Warn().Uint8("channel", uint8(frame.Channel)).Msg("replay frame for unconfigured channel, dropped")
			continue
		}
		select {
		case dest <- frame:
		case <-ctx.Done():
			return
		}
	}
}
