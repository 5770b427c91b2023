package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-inbox/internal/config"
	"github.com/kozaktomas/face-inbox/internal/faceid"
	"github.com/kozaktomas/face-inbox/internal/facematch"
	"github.com/kozaktomas/face-inbox/internal/gmail"
	"github.com/kozaktomas/face-inbox/internal/linkage"
	"github.com/kozaktomas/face-inbox/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Inbox web server.
Users sign in with a webcam capture, link their Gmail account once and
then browse, read aloud, send and reply to mail from the browser.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (defaults to random)")
	serveCmd.Flags().Bool("memory", false, "Keep users in memory instead of DATABASE_URL")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if !cfg.GoogleConfigured() {
		slog.Warn("GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET not set, Gmail linking will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg, mustGetBool(cmd, "memory"))
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	mail := gmail.NewFactory(gmail.Settings{
		InboxLabel: cfg.Gmail.Labels.Inbox,
		SentLabel:  cfg.Gmail.Labels.Sent,
		PageSize:   cfg.Gmail.PageSize,
		DateLayout: cfg.Gmail.DateLayout,
	})
	oauth := linkage.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.CallbackURL(), cfg.Gmail.Scopes)
	encoder := faceid.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim)

	server, err := web.NewServer(cfg, web.Deps{
		Users:       store.users,
		Matcher:     facematch.NewMatcher(store.users, encoder, cfg.Face.MatchThreshold),
		Linkage:     linkage.NewManager(oauth, store.users, mail),
		Mail:        mail,
		SessionRepo: store.sessions,
		Health:      store.pingers,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}()

	slog.Info("face inbox ready",
		"url", fmt.Sprintf("http://%s:%d", cfg.Web.Host, cfg.Web.Port),
		"embedding_url", cfg.Embedding.URL,
		"match_threshold", cfg.Face.MatchThreshold,
	)

	if err := server.Start(); err != nil {
		return err
	}
	<-shutdownDone
	return nil
}
