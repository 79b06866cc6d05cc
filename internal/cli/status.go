package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// StatusCommand prints a user's library summary and recent sync runs. It
// never contacts the WebDAV server.
type StatusCommand struct {
	commonFlags
	History int
}

func NewStatusCommand() *StatusCommand {
	return &StatusCommand{}
}

func (cmd *StatusCommand) Command() *cobra.Command {
	cc := &cobra.Command{
		Use:   "status",
		Short: "Show library totals and recent syncs",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if cmd.History < 0 {
				return fmt.Errorf("--history must not be negative")
			}
			return nil
		},
		RunE: cmd.runE(cmd.Run),
	}
	cmd.bind(cc)
	cc.Flags().IntVar(&cmd.History, "history", 5, "Number of recent sync runs to show")
	return cc
}

func (cmd *StatusCommand) Run() error {
	ctx := context.Background()

	app, err := cmd.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	user, err := app.ResolveUser(ctx, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	status, err := app.Sync.Status(ctx, user.ID)
	if err != nil {
		return err
	}

	cmd.printf("User: %s (id %d)\n", user.Username, user.ID)
	cmd.printf("Books: %d\n", status.TotalBooks)
	cmd.printf("Sessions: %d\n", status.TotalSessions)
	if status.LastReadingTime != nil {
		cmd.printf("Last read: %s\n", status.LastReadingTime.Local().Format(time.DateTime))
	} else {
		cmd.println("Last read: never")
	}
	if status.HasWebDAVConfig {
		cmd.println("WebDAV: configured")
	} else {
		cmd.println("WebDAV: not configured")
	}

	if cmd.History == 0 {
		return nil
	}

	runs, err := app.Sync.History(ctx, user.ID, cmd.History)
	if err != nil {
		return err
	}
	cmd.println("\n=== Recent Syncs ===")
	if len(runs) == 0 {
		cmd.println("(none)")
	}
	for _, run := range runs {
		line := fmt.Sprintf("%s  %-9s %-9s", run.StartedAt.Local().Format(time.DateTime), run.Trigger, run.Status)
		if run.Error != "" {
			line += "  " + run.Error
		} else {
			line += fmt.Sprintf("  %d books, %d sessions", run.BooksSynced, run.SessionsSynced)
		}
		cmd.println(line)
	}

	return nil
}
