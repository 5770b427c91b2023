package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-inbox/internal/config"
	"github.com/kozaktomas/face-inbox/internal/linkage"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage enrolled users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user and its face encodings",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

var usersUnlinkCmd = &cobra.Command{
	Use:   "unlink <user-id>",
	Short: "Remove the Gmail linkage of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersUnlink,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd, usersDeleteCmd, usersUnlinkCmd)
}

// withUserStore opens the configured backend for an admin command.
func withUserStore(fn func(ctx context.Context, cfg *config.Config, b *backend) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer b.Close(ctx)
	return fn(ctx, cfg, b)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	return withUserStore(func(ctx context.Context, cfg *config.Config, b *backend) error {
		users, err := b.users.List(ctx)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENCODINGS\tGMAIL\tCREATED")
		for _, u := range users {
			email := "-"
			if u.Mail != nil {
				email = u.Mail.Email
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", u.ID, len(u.FaceEncodings), email, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d user(s)\n", len(users))
		return nil
	})
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	return withUserStore(func(ctx context.Context, cfg *config.Config, b *backend) error {
		if err := b.users.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("deleting user %s: %w", args[0], err)
		}
		fmt.Printf("Deleted user %s\n", args[0])
		return nil
	})
}

func runUsersUnlink(cmd *cobra.Command, args []string) error {
	return withUserStore(func(ctx context.Context, cfg *config.Config, b *backend) error {
		oauth := linkage.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.CallbackURL(), cfg.Gmail.Scopes)
		links := linkage.NewManager(oauth, b.users, nil)
		if err := links.Unlink(ctx, args[0]); err != nil {
			return fmt.Errorf("unlinking user %s: %w", args[0], err)
		}
		fmt.Printf("Removed Gmail link of user %s\n", args[0])
		return nil
	})
}
