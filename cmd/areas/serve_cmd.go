package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	internalserver "github.com/pocotu/oficri-areas/internal/server"
	"github.com/pocotu/oficri-areas/modules/areas"
	"github.com/pocotu/oficri-areas/pkg/configuration"
	"github.com/pocotu/oficri-areas/pkg/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := configuration.Load(".env", ".env.local")
			if err != nil {
				return withCode(exitUsage, err)
			}
			defer conf.Unload()
			logger := conf.Logger()

			if conf.OpenTelemetry.Enabled {
				tracingCleanup := logging.SetupTracing(
					context.Background(),
					conf.OpenTelemetry.ServiceName,
					conf.OpenTelemetry.TempoURL,
				)
				defer tracingCleanup()
				logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := connectDB(ctx, conf)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer pool.Close()

			mod, err := areas.NewModule(areas.Options{Config: conf, Logger: logger})
			if err != nil {
				return withCode(exitUsage, err)
			}
			defer func() {
				if err := mod.Close(); err != nil {
					logger.WithError(err).Warn("failed to close areas module")
				}
			}()

			srv, err := internalserver.Default(&internalserver.DefaultOptions{
				Logger:        logger,
				Configuration: conf,
				Pool:          pool,
				Controllers:   mod.Controllers(),
			})
			if err != nil {
				return err
			}
			logger.Infof("Listening on: %s", conf.SocketAddress)
			return srv.Start(ctx, conf.SocketAddress)
		},
	}
}
