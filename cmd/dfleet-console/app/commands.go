package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/driverfleet/driverfleet/cmd/dfleet-console/app/options"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

func newScanCommand(opts *options.ConsoleOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Discover machines running the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, release, err := newOrchestrator(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer release()

			nodes, err := o.Scan(cmd.Context())
			if err != nil {
				return err
			}
			renderNodes(cmd.OutOrStdout(), nodes)
			return nil
		},
	}
}

func newCatalogCommand(opts *options.ConsoleOptions) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the driver catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, release, err := newOrchestrator(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer release()

			snap := o.Catalog(cmd.Context(), refresh)
			renderCatalog(cmd.OutOrStdout(), snap)
			if err := o.Session().Catalog().LastError(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "catalog unavailable, showing built-in baseline: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cached snapshot.")
	return cmd
}

func newDevicesCommand(opts *options.ConsoleOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "devices <address>",
		Short:   "List the devices of one machine and whether a newer driver is available",
		Example: "  dfleet-console devices 192.168.1.20",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, release, err := newOrchestrator(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer release()

			node, err := o.Node(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			devices, err := o.Inventory(cmd.Context(), node)
			if err != nil {
				return err
			}
			renderDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
}

func newUpdateCommand(opts *options.ConsoleOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "update <address>",
		Short:   "Install every newer driver on one machine",
		Example: "  dfleet-console update 192.168.1.20 --catalog.base-url http://repo:5000",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, release, err := newOrchestrator(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer release()

			node, err := o.Node(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report := o.UpdateNode(cmd.Context(), node)
			renderNodeReport(cmd.OutOrStdout(), report)
			if !report.Updated() {
				return fmt.Errorf("%s: %d of %d packages installed", node.DisplayName(), report.Succeeded, report.Total)
			}
			return nil
		},
	}
}

func newUpdateFleetCommand(opts *options.ConsoleOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:     "update-fleet",
		Short:   "Scan the network, then update every machine found",
		Example: "  dfleet-console update-fleet --interval 30m --mqtt.broker tcp://broker.lan:1883",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval < 0 {
				return fmt.Errorf("--interval must not be negative")
			}

			o, release, err := newOrchestrator(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer release()

			return runFleetUpdates(cmd.Context(), o, interval, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat scan and update every interval until interrupted, in one session. "+
		"Devices updated in an earlier round are not reinstalled. 0 runs once.")
	return cmd
}

type fleetUpdater interface {
	Scan(ctx context.Context) ([]v1.FleetNode, error)
	UpdateFleet(ctx context.Context) v1.FleetReport
}

// runFleetUpdates runs one scan and update round, or with a positive interval keeps running
// rounds against the same session until ctx is done. Only a single round reports failures
// as an error; repeated rounds log them and go on.
func runFleetUpdates(ctx context.Context, o fleetUpdater, interval time.Duration, w io.Writer) error {
	for round := 1; ; round++ {
		if _, err := o.Scan(ctx); err != nil {
			if interval <= 0 {
				return err
			}
			log.Error(err, "Scan failed, retrying next round", "round", round)
		} else {
			if interval > 0 {
				fmt.Fprintf(w, "round %d at %s\n", round, time.Now().Format(time.RFC3339))
			}
			fleet := o.UpdateFleet(ctx)
			renderFleetReport(w, fleet)

			if interval <= 0 {
				if fleet.Succeeded != fleet.Total {
					return fmt.Errorf("%d of %d machines updated", fleet.Succeeded, fleet.Total)
				}
				return nil
			}
		}

		if ctx.Err() != nil {
			return nil
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}
