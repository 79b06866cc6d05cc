package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/readstats/internal/entities"
	"github.com/mrlokans/readstats/internal/statsync"
)

// SyncCommand imports a user's KOReader statistics once and exits.
type SyncCommand struct {
	commonFlags
	RemotePath string
}

func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

func (cmd *SyncCommand) Command() *cobra.Command {
	cc := &cobra.Command{
		Use:   "sync",
		Short: "Import KOReader statistics from WebDAV once",
		Long:  "Replace a user's library with the KOReader statistics found on WebDAV.",
		Example: `  readstats sync
  readstats sync --user 2 --path /koreader/settings/statistics.sqlite3`,
		Args: cobra.NoArgs,
		RunE: cmd.runE(cmd.Run),
	}
	cmd.bind(cc)
	cc.Flags().StringVar(&cmd.RemotePath, "path", "", "Remote path of statistics.sqlite3; discovered when omitted")
	return cc
}

func (cmd *SyncCommand) Run() error {
	cmd.println("KOReader Sync")
	cmd.println("=============")

	ctx, stop := signalContext()
	defer stop()

	app, err := cmd.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	user, err := app.ResolveUser(ctx, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	cmd.printf("User: %s (id %d)\n", user.Username, user.ID)

	result := app.Sync.Sync(ctx, user.ID, statsync.SyncOptions{
		RemotePath: cmd.RemotePath,
		Trigger:    entities.SyncTriggerCLI,
	})
	if !result.Success {
		return fmt.Errorf("sync failed: %s", result.Error)
	}

	cmd.println("\n=== Sync Summary ===")
	cmd.printf("Snapshot: %s\n", result.RemotePathUsed)
	cmd.printf("Books synced: %d\n", result.BooksSynced)
	cmd.printf("Sessions synced: %d\n", result.SessionsSynced)
	cmd.printf("Books cleared: %d\n", result.BooksCleared)
	cmd.printf("Sessions cleared: %d\n", result.SessionsCleared)

	return nil
}
