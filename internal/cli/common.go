// Package cli implements the readstats subcommands that run without the
// HTTP server.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrlokans/readstats/internal/config"
	"github.com/mrlokans/readstats/internal/entrypoint"
	"github.com/mrlokans/readstats/internal/logger"
)

// options shared by every command that opens the local database
type commonFlags struct {
	DatabasePath string
	UserID       uint
	Verbose      bool

	Out io.Writer
}

// bind registers the flags every database-backed command accepts.
func (c *commonFlags) bind(cc *cobra.Command) {
	cc.Flags().UintVarP(&c.UserID, "user", "u", 0, "ID of the user (default user when omitted)")
	cc.Flags().StringVar(&c.DatabasePath, "db", "", "Path to the local database (DATABASE_PATH when omitted)")
	cc.Flags().BoolVarP(&c.Verbose, "verbose", "v", false, "Enable verbose logging")
}

// runE adapts run to cobra, sending output to the command's writer unless
// Out was set explicitly.
func (c *commonFlags) runE(run func() error) func(*cobra.Command, []string) error {
	return func(cc *cobra.Command, _ []string) error {
		if c.Out == nil {
			c.Out = cc.OutOrStdout()
		}
		return run()
	}
}

func (c *commonFlags) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *commonFlags) printf(format string, args ...any) {
	fmt.Fprintf(c.out(), format, args...)
}

func (c *commonFlags) println(args ...any) {
	fmt.Fprintln(c.out(), args...)
}

// openApp loads configuration from the environment, applies the command's
// overrides and opens the database.
func (c *commonFlags) openApp() (*entrypoint.App, error) {
	cfg := config.NewConfig()
	if c.DatabasePath != "" {
		absDBPath, err := filepath.Abs(c.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for database: %w", err)
		}
		cfg.Database.Path = absDBPath
	}

	level := "warn"
	if c.Verbose {
		level = "debug"
	}
	log, _ := logger.New(logger.Config{Level: level, Format: cfg.Logging.Format, Writer: os.Stderr})

	app, err := entrypoint.NewApp(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return app, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
