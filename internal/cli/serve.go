package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/notify"
	"github.com/scrypster/companion/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Serve the chat page and JSON API. Turns recorded by "companion say"
while the server runs are relayed to connected browsers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, cfg)
		},
	}
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	eng, store, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if cfg.Security.SessionSecret == "" {
		log.Printf("cli: SESSION_SECRET is not set")
	}

	addr, hub, err := server.Start(ctx, cfg, eng, store.Backend())
	if err != nil {
		return err
	}

	watcher := notify.NewEventWatcher(cfg.Storage.DataPath, hub.Publish)
	if err := watcher.Start(); err != nil {
		log.Printf("cli: cross-process events disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "companion listening on http://%s (%s store)\n", addr, store.Backend())
	<-ctx.Done()
	return nil
}
