// Package version reports the build identity of the inspection agent
// binary, for the version subcommand and startup log line.
package version

import "runtime"

var (
	// Version is the agent's semantic version, set by build flags.
	Version = "dev"

	// GitCommit is the commit hash the binary was built from, set by
	// build flags.
	GitCommit = "unknown"

	// BuildDate is the build timestamp, set by build flags.
	BuildDate = "unknown"

	// GoVersion is the toolchain version used to build the binary.
	GoVersion = runtime.Version()
)

// String renders a single-line identity summary for startup logging.
func String() string {
	return "fwedge-agent " + Version + " (" + GitCommit + ", " + BuildDate + ", " + GoVersion + ")"
}
