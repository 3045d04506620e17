// Package main provides the fwedge-agent binary: the edge-side CAN
// inspection and collection core of the vehicle telemetry agent.
package main

import (
	"github.com/fleetedge/inspection-agent/internal/cli"
)

func main() {
	cli.Execute()
}
