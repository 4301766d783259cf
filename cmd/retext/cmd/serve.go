package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/retext/retext/internal/api"
	"github.com/retext/retext/internal/importer"
	"github.com/retext/retext/internal/scheduler"
	"github.com/retext/retext/internal/search"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the search server",
	Long: `Run the HTTP search server in the foreground.

The server requires a bcrypt password hash in the config ([server]
password_hash) or the RETEXT_PASSWORD_HASH environment variable; search and
stats endpoints are gated behind session login.

If [import] watch_dir and schedule are configured, backups dropped into the
watch directory are imported automatically on that cron schedule:

  [import]
  watch_dir = "~/backups/sms"
  schedule = "30 3 * * *"   # 3:30am daily

Use Ctrl+C to stop the server gracefully.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		engine := search.NewEngine(st, cfg.Server.PerPage, logger)
		server := api.NewServer(cfg, engine, st, logger)

		var sched *scheduler.Scheduler
		if cfg.Import.WatchDir != "" && cfg.Import.Schedule != "" {
			sched, err = scheduler.New(cfg.Import.WatchDir, cfg.Import.Schedule,
				func(ctx context.Context, path string) (*importer.Summary, error) {
					return importer.Import(ctx, st, path, importer.Options{
						BatchSize: cfg.Import.BatchSize,
						Logger:    logger,
					})
				}, logger)
			if err != nil {
				return err
			}
		}

		g, ctx := errgroup.WithContext(cmd.Context())

		g.Go(func() error {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		if sched != nil {
			sched.Start()
		}

		g.Go(func() error {
			<-ctx.Done()
			if sched != nil {
				sched.Stop()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		if cmd.Context().Err() != nil {
			return context.Canceled
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
