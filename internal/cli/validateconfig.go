package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleetedge/inspection-agent/internal/fwconfig"
)

func newValidateConfigCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and validate an agent configuration file without starting the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return fmt.Errorf("validate-config: --config is required")
			}
			data, err := os.ReadFile(configFile)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			if _, err := fwconfig.Load(data); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			cmd.Printf("%s is valid\n", configFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to agent configuration file")
	return cmd
}
