package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
	"github.com/pocotu/oficri-areas/modules/areas/infrastructure/persistence"
	"github.com/pocotu/oficri-areas/modules/areas/services"
	"github.com/pocotu/oficri-areas/pkg/composables"
	"github.com/pocotu/oficri-areas/pkg/configuration"
)

// serviceOpener returns a ctx carrying whatever the service needs (the pool),
// the service itself and a cleanup func.
type serviceOpener func(ctx context.Context) (context.Context, *services.AreaService, func(), error)

type cli struct {
	out         io.Writer
	openService serviceOpener
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "areas",
		Short:         "Area hierarchy service and maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.out)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newTreeCmd(c))
	cmd.AddCommand(newPathCmd(c))
	cmd.AddCommand(newCheckCmd(c))
	cmd.AddCommand(newCreateCmd(c))
	cmd.AddCommand(newMoveCmd(c))
	cmd.AddCommand(newDeleteCmd(c))
	return cmd
}

func Execute() {
	c := &cli{out: os.Stdout, openService: openPostgresService}
	if err := newRootCmd(c).Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}

func connectDB(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return pool, nil
}

func openPostgresService(ctx context.Context) (context.Context, *services.AreaService, func(), error) {
	conf, err := configuration.Load(".env", ".env.local")
	if err != nil {
		return ctx, nil, nil, withCode(exitUsage, err)
	}
	pool, err := connectDB(ctx, conf)
	if err != nil {
		conf.Unload()
		return ctx, nil, nil, withCode(exitDB, err)
	}
	svc := services.NewAreaService(
		persistence.NewAreaRepository(),
		services.WithEngine(hierarchy.New(hierarchy.WithLanguage(conf.Areas.Language()))),
	)
	cleanup := func() {
		pool.Close()
		conf.Unload()
	}
	return composables.WithPool(ctx, pool), svc, cleanup, nil
}

func parseTenant(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --tenant: %q", raw))
	}
	return id, nil
}

func parseIDFlag(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --%s: %q", name, raw))
	}
	return id, nil
}

func parseOptionalIDFlag(name, raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseIDFlag(name, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// serviceExitCode maps service failures onto CLI exit codes: client-side
// rejections are exitRejected, everything else is a database problem.
func serviceExitCode(err error) error {
	var svcErr *services.ServiceError
	if as(err, &svcErr) && svcErr.Status < 500 {
		return withCode(exitRejected, err)
	}
	return withCode(exitDB, err)
}

func cliRequestID() string {
	return "cli-" + uuid.NewString()
}
