package main

import (
	"os"

	"github.com/mrlokans/readstats/internal/cli"
	"github.com/mrlokans/readstats/internal/config"
	"github.com/mrlokans/readstats/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	root := cli.NewRootCommand(cli.BuildInfo{Version: Version, Commit: Commit}, func() error {
		entrypoint.Run(config.NewConfig(), Version)
		return nil
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
