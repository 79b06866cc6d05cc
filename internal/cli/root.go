package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// NewRootCommand assembles the readstats command tree. serve runs the HTTP
// server and is also what a bare invocation does.
func NewRootCommand(info BuildInfo, serve func() error) *cobra.Command {
	serveE := func(*cobra.Command, []string) error { return serve() }

	root := &cobra.Command{
		Use:          "readstats",
		Short:        "Sync KOReader reading statistics from WebDAV",
		Version:      fmt.Sprintf("%s (%s)", info.Version, info.Commit),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         serveE,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server (default if no command given)",
			Args:  cobra.NoArgs,
			RunE:  serveE,
		},
		NewSyncCommand().Command(),
		NewStatusCommand().Command(),
		NewWebDAVConfigCommand().Command(),
		NewWebDAVListCommand().Command(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cc *cobra.Command, _ []string) {
				fmt.Fprintf(cc.OutOrStdout(), "readstats %s (%s)\n", info.Version, info.Commit)
			},
		},
	)
	return root
}
