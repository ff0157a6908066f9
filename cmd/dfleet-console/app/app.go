package app

import (
	"context"
	"fmt"

	"github.com/driverfleet/driverfleet/cmd/dfleet-console/app/options"
	"github.com/driverfleet/driverfleet/internal/catalog"
	"github.com/driverfleet/driverfleet/internal/orchestrator"
	"github.com/driverfleet/driverfleet/pkg/app"
	"github.com/driverfleet/driverfleet/pkg/log"
	"github.com/driverfleet/driverfleet/pkg/mqtt"
)

const (
	commandName = "dfleet-console"
	commandDesc = `The driverfleet console discovers agents on the local network, compares their
device inventory with the driver catalog and installs newer driver packages remotely.`
)

func NewApp() *app.App {
	opts := options.NewConsoleOptions()
	return app.NewApp(
		commandName,
		"Discover machines and roll out driver updates",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithCommands(
			newScanCommand(opts),
			newCatalogCommand(opts),
			newDevicesCommand(opts),
			newUpdateCommand(opts),
			newUpdateFleetCommand(opts),
			newWatchCommand(opts),
		),
	)
}

// newOrchestrator builds the session of one command. Only update-fleet --interval keeps it
// across rounds. The returned func releases the MQTT connection, if any.
func newOrchestrator(ctx context.Context, opts *options.ConsoleOptions) (*orchestrator.Orchestrator, func(), error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	release := func() {}
	if cfg.MQTT != nil {
		client, err := mqtt.NewClient(cfg.MQTT)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create mqtt client: %w", err)
		}
		if err := client.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to start mqtt client: %w", err)
		}

		awaitCtx, cancel := context.WithTimeout(ctx, cfg.MQTT.ConnectTimeout)
		if err := client.AwaitConnection(awaitCtx); err != nil {
			log.Warn("MQTT broker not reachable yet; reports are sent once it is", "broker", cfg.MQTT.BrokerURL, "error", err)
		}
		cancel()

		cfg.Orchestrator.Reporter = orchestrator.NewMQTTReporter(client, cfg.TopicRoot)
		release = func() { client.Disconnect(context.Background()) }
	}

	session := orchestrator.NewSession(catalog.New(cfg.Catalog))
	return orchestrator.New(session, cfg.Orchestrator), release, nil
}
