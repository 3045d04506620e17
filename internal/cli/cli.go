package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd assembles the fwedge-agent command tree. Subcommands are
// registered directly on root for a flat hierarchy (e.g. "fwedge-agent
// run" rather than "fwedge-agent agent run").
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fwedge-agent",
		Short:         "fwedge-agent - edge CAN inspection and collection core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command, printing any error to stderr and
// exiting non-zero on failure. Kept separate from NewRootCmd so tests
// can exercise the command tree without triggering os.Exit.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
