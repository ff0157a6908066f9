package app

import (
	"context"
	"fmt"

	"github.com/driverfleet/driverfleet/cmd/dfleet-repo/app/options"
	"github.com/driverfleet/driverfleet/internal/repository"
	"github.com/driverfleet/driverfleet/pkg/app"
	"github.com/driverfleet/driverfleet/pkg/log"
)

const (
	commandName = "dfleet-repo"
	commandDesc = `The driverfleet repository serves drivers.json and the driver packages it lists.
Packages missing from the local directory can be redirected to an S3 compatible bucket.`
)

func NewApp() *app.App {
	opts := options.NewRepoOptions()
	return app.NewApp(
		commandName,
		"Launch a driverfleet catalog repository",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.RepoOptions) app.RunFunc {
	return func(ctx context.Context) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cfg.Presigner != nil {
			if err := cfg.Presigner.CheckBucket(ctx); err != nil {
				return fmt.Errorf("object storage is not usable: %w", err)
			}
			log.Info("Object storage redirects enabled", "endpoint", opts.S3Options.Endpoint, "bucket", opts.S3Options.BucketName)
		}

		srv, err := repository.NewServer(*cfg)
		if err != nil {
			return err
		}
		return srv.Start(ctx)
	}
}
