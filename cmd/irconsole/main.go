// irconsole - command-line console for remote incident response endpoints.
package main

import (
	"os"

	"github.com/incidentops/console/internal/cli"
	"github.com/incidentops/console/internal/version"
)

// Version information
var (
	Version   = "v1.0.0"
	BuildTime = "2026-08-31"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
