package app

import (
	"context"
	"fmt"

	"github.com/driverfleet/driverfleet/cmd/dfleet-agent/app/options"
	"github.com/driverfleet/driverfleet/internal/agent"
	"github.com/driverfleet/driverfleet/pkg/app"
)

const (
	commandName = "dfleet-agent"
	commandDesc = `The driverfleet agent runs on every managed machine. It answers discovery pings,
reports the local device inventory and downloads, verifies and installs driver packages
on request of the console.`
)

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	return app.NewApp(
		commandName,
		"Launch a driverfleet node agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.AgentOptions) app.RunFunc {
	return func(ctx context.Context) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		return agent.NewServer(*cfg).Start(ctx)
	}
}
