package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/readstats/internal/credentials"
	"github.com/mrlokans/readstats/internal/statsync"
)

// WebDAVConfigCommand stores, or removes, a user's WebDAV credentials.
type WebDAVConfigCommand struct {
	commonFlags
	Credentials credentials.Credentials
	Test        bool
	Delete      bool
}

func NewWebDAVConfigCommand() *WebDAVConfigCommand {
	return &WebDAVConfigCommand{}
}

func (cmd *WebDAVConfigCommand) Command() *cobra.Command {
	cc := &cobra.Command{
		Use:   "webdav-config",
		Short: "Store or remove a user's WebDAV credentials",
		Long:  "Store WebDAV credentials for a user. They are encrypted at rest.",
		Example: `  readstats webdav-config --url https://dav.example.com --login reader --password secret --test
  readstats webdav-config --user 2 --delete`,
		Args:    cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error { return cmd.validate() },
		RunE:    cmd.runE(cmd.Run),
	}
	cmd.bind(cc)
	cc.Flags().StringVar(&cmd.Credentials.URL, "url", "", "WebDAV server URL (required)")
	cc.Flags().StringVar(&cmd.Credentials.Login, "login", "", "WebDAV login (required)")
	cc.Flags().StringVar(&cmd.Credentials.Password, "password", "", "WebDAV password (required)")
	cc.Flags().StringVar(&cmd.Credentials.BasePath, "base-path", "", "Directory searched first for statistics.sqlite3")
	cc.Flags().BoolVar(&cmd.Test, "test", false, "Check the connection before saving")
	cc.Flags().BoolVar(&cmd.Delete, "delete", false, "Remove the stored credentials instead")
	return cc
}

func (cmd *WebDAVConfigCommand) validate() error {
	if cmd.Delete {
		return nil
	}
	if cmd.Credentials.URL == "" {
		return fmt.Errorf("required flag --url not provided")
	}
	if cmd.Credentials.Login == "" {
		return fmt.Errorf("required flag --login not provided")
	}
	if cmd.Credentials.Password == "" {
		return fmt.Errorf("required flag --password not provided")
	}
	return cmd.Credentials.Validate()
}

func (cmd *WebDAVConfigCommand) Run() error {
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

	if cmd.Delete {
		if err := app.Credentials.Delete(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to delete credentials: %w", err)
		}
		cmd.printf("Removed WebDAV credentials for %s\n", user.Username)
		return nil
	}

	if cmd.Test {
		cmd.printf("Testing connection to %s...\n", cmd.Credentials.URL)
		if err := app.Sync.TestCredentials(ctx, cmd.Credentials); err != nil {
			return err
		}
		cmd.println("Connection OK")
	}

	if err := app.Credentials.Save(ctx, user.ID, cmd.Credentials); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	cmd.printf("Saved WebDAV credentials for %s\n", user.Username)
	return nil
}

// WebDAVListCommand lists a directory on the user's WebDAV server.
type WebDAVListCommand struct {
	commonFlags
	Path string
	Find bool
}

func NewWebDAVListCommand() *WebDAVListCommand {
	return &WebDAVListCommand{}
}

func (cmd *WebDAVListCommand) Command() *cobra.Command {
	cc := &cobra.Command{
		Use:   "webdav-ls",
		Short: "List files on a user's WebDAV server",
		Example: `  readstats webdav-ls --path /koreader
  readstats webdav-ls --find`,
		Args: cobra.NoArgs,
		RunE: cmd.runE(cmd.Run),
	}
	cmd.bind(cc)
	cc.Flags().StringVar(&cmd.Path, "path", "", "Directory to list (the configured base path when omitted)")
	cc.Flags().BoolVar(&cmd.Find, "find", false, "Search below --path (the server root when omitted) for statistics databases")
	return cc
}

func (cmd *WebDAVListCommand) Run() error {
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

	if cmd.Find {
		return cmd.find(ctx, app.Sync, user.ID)
	}

	entries, err := app.Sync.ListRemote(ctx, user.ID, cmd.Path)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir {
			cmd.printf("%-40s  <dir>\n", e.Path+"/")
			continue
		}
		cmd.printf("%-40s  %10d  %s\n", e.Path, e.Size, e.ModifiedAt.Format("2006-01-02 15:04"))
	}
	if len(entries) == 0 {
		cmd.println("(empty)")
	}
	return nil
}

func (cmd *WebDAVListCommand) find(ctx context.Context, svc *statsync.Service, userID uint) error {
	search, err := svc.FindSnapshots(ctx, userID, cmd.Path)
	if err != nil {
		return err
	}
	if search.Latest == nil {
		cmd.printf("No statistics databases found under %s\n", search.Dir)
		return nil
	}
	for _, f := range search.Files {
		cmd.printf("%-40s  %10d  %s\n", f.Path, f.Size, f.ModifiedAt.Format("2006-01-02 15:04"))
	}
	cmd.printf("\nNewest: %s\n", search.Latest.Path)
	return nil
}
