package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/tracedesk/pkg/cli/config"
	httpctrl "github.com/secmon-lab/tracedesk/pkg/controller/http"
	"github.com/secmon-lab/tracedesk/pkg/service/worker"
	"github.com/secmon-lab/tracedesk/pkg/usecase"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var enableMetrics bool
	var statsInterval time.Duration
	var statsDays int
	var appCfg config.App
	var repoCfg config.Repository
	var authCfg config.Auth
	var sentryCfg config.Sentry

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("TRACEDESK_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "metrics",
			Usage:       "Serve Prometheus metrics on /metrics",
			Value:       true,
			Sources:     cli.EnvVars("TRACEDESK_METRICS"),
			Destination: &enableMetrics,
		},
		&cli.DurationFlag{
			Name:        "stats-refresh-interval",
			Usage:       "Interval of refreshing stats gauges on /metrics (0 disables)",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("TRACEDESK_STATS_REFRESH_INTERVAL"),
			Destination: &statsInterval,
		},
		&cli.IntFlag{
			Name:        "stats-window-days",
			Usage:       "Trailing days covered by stats gauges",
			Value:       30,
			Sources:     cli.EnvVars("TRACEDESK_STATS_WINDOW_DAYS"),
			Destination: &statsDays,
		},
	}

	// Add shared config flags
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("Serve configuration",
				"app", appCfg,
				"repository", repoCfg,
				"auth", authCfg,
				"sentry", sentryCfg,
			)

			flush, err := sentryCfg.Configure(version)
			if err != nil {
				return err
			}
			defer flush()

			schema, err := appCfg.Schema()
			if err != nil {
				return goerr.Wrap(err, "failed to load schema")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			authUC, err := authCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure authentication")
			}

			ucOpts := []usecase.Option{usecase.WithSchema(schema)}
			if authUC != nil {
				ucOpts = append(ucOpts, usecase.WithAuth(authUC))
			}
			uc := usecase.New(repo, ucOpts...)

			var httpOpts []httpctrl.Options
			if enableMetrics {
				httpOpts = append(httpOpts, httpctrl.WithDefaultMetrics())

				if statsInterval > 0 {
					statsWorker := worker.NewStatsRefreshWorker(uc.Stats, statsDays, statsInterval)
					if err := statsWorker.Start(ctx); err != nil {
						return goerr.Wrap(err, "failed to start stats refresh worker")
					}
					defer statsWorker.Stop()
				}
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "metrics", enableMetrics)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
