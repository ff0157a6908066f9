// Package orchestrator drives fleet-wide driver updates: discovery, inventory, matching and
// remote installs, one device and one node at a time.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/driverfleet/driverfleet/internal/catalog"
	"github.com/driverfleet/driverfleet/internal/matcher"
	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

const (
	DefaultDevicePacing = time.Second
	DefaultNodePacing   = 2 * time.Second
)

// Scanner produces the roster of reachable nodes.
type Scanner interface {
	Scan(ctx context.Context) ([]v1.FleetNode, error)
}

// Config wires an Orchestrator. Nil Matcher and Reporter mean the defaults.
type Config struct {
	Scanner  Scanner
	Client   NodeClient
	Matcher  *matcher.Matcher
	Reporter Reporter

	// DevicePacing separates consecutive installs on one node, NodePacing consecutive nodes.
	// Negative disables the delay, zero means the default.
	DevicePacing time.Duration
	NodePacing   time.Duration

	// Logger is the parent of the orchestrator logger. Nil means the global logger.
	Logger log.Logger
}

// Orchestrator runs scans and updates against one Session.
type Orchestrator struct {
	session  *Session
	scanner  Scanner
	client   NodeClient
	matcher  *matcher.Matcher
	reporter Reporter
	logger   log.Logger

	devicePacing time.Duration
	nodePacing   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator over session.
func New(session *Session, cfg Config) *Orchestrator {
	if cfg.Matcher == nil {
		cfg.Matcher = matcher.New()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = NopReporter{}
	}
	if cfg.DevicePacing == 0 {
		cfg.DevicePacing = DefaultDevicePacing
	}
	if cfg.NodePacing == 0 {
		cfg.NodePacing = DefaultNodePacing
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Std()
	}

	return &Orchestrator{
		session:      session,
		scanner:      cfg.Scanner,
		client:       cfg.Client,
		matcher:      cfg.Matcher,
		reporter:     cfg.Reporter,
		logger:       cfg.Logger.WithName("orchestrator"),
		devicePacing: cfg.DevicePacing,
		nodePacing:   cfg.NodePacing,
		sleep:        sleepContext,
	}
}

// Session returns the session the orchestrator works on.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Catalog returns the current catalog snapshot, refreshing it when force is set or it expired.
func (o *Orchestrator) Catalog(ctx context.Context, force bool) *v1.CatalogSnapshot {
	return o.session.Catalog().Get(ctx, force)
}

// Scan runs one discovery cycle and replaces the roster with its result.
func (o *Orchestrator) Scan(ctx context.Context) ([]v1.FleetNode, error) {
	nodes, err := o.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan network: %w", err)
	}
	o.session.SetRoster(nodes)
	return nodes, nil
}

// Node returns the roster entry for addr. Addresses outside the roster are pinged directly,
// so a single machine can be updated without a scan.
func (o *Orchestrator) Node(ctx context.Context, addr string) (v1.FleetNode, error) {
	if n, ok := o.session.Node(addr); ok {
		return n, nil
	}

	info, err := o.client.Ping(ctx, addr)
	if err != nil {
		return v1.FleetNode{}, fmt.Errorf("node %s: %w", addr, err)
	}
	return v1.FleetNode{
		Name:         info.Name,
		Address:      addr,
		OSVersion:    info.OSVersion,
		Architecture: info.Architecture,
		Reachable:    true,
	}, nil
}

// Inventory fetches the device list of node, applies this session's installs to it and marks
// the devices that have a newer package in the catalog.
func (o *Orchestrator) Inventory(ctx context.Context, node v1.FleetNode) ([]v1.DeviceRecord, error) {
	snap := o.session.Catalog().Get(ctx, false)
	return o.inventory(ctx, node, snap)
}

func (o *Orchestrator) inventory(ctx context.Context, node v1.FleetNode, snap *v1.CatalogSnapshot) ([]v1.DeviceRecord, error) {
	devices, err := o.client.Devices(ctx, node.Address)
	if err != nil {
		return nil, fmt.Errorf("inventory of %s: %w", node.DisplayName(), err)
	}

	o.session.applyOverrides(node.Address, devices)
	n := o.matcher.Annotate(devices, snap.Entries)
	o.session.setInventory(node.Address, devices)

	o.logger.Info("Inventory loaded", "node", node.DisplayName(), "devices", len(devices), "needUpdate", n, "catalog", snap.Source)
	return devices, nil
}

// UpdateNode installs every package the catalog resolves for the devices of node, one at a
// time. A failed install does not stop the remaining ones.
func (o *Orchestrator) UpdateNode(ctx context.Context, node v1.FleetNode) v1.NodeReport {
	report := v1.NodeReport{Node: node}
	defer func() { o.reporter.ReportNode(ctx, report) }()

	snap := o.session.Catalog().Get(ctx, false)

	devices, err := o.inventory(ctx, node, snap)
	if err != nil {
		o.logger.Error(err, "Skipping node", "node", node.DisplayName())
		report.Error = err.Error()
		return report
	}

	for _, device := range devices {
		if err := ctx.Err(); err != nil {
			report.Error = err.Error()
			break
		}
		if _, done := o.session.Installed(node.Address, device); done {
			continue
		}

		entry := o.matcher.Resolve(device, snap.Entries)
		if entry == nil {
			continue
		}

		if report.Total > 0 {
			if err := o.sleep(ctx, o.devicePacing); err != nil {
				report.Error = err.Error()
				break
			}
		}
		report.Total++

		result := o.install(ctx, node, device, catalog.ResolvePackage(snap.BaseURL, *entry))
		if result.Outcome.Success {
			report.Succeeded++
			o.session.recordInstall(node.Address, device, result.Package.Version)
		}
		report.Results = append(report.Results, result)
		o.reporter.ReportOutcome(ctx, node, result)
	}

	o.logger.Info("Node update finished", "node", node.DisplayName(), "succeeded", report.Succeeded, "total", report.Total)
	return report
}

func (o *Orchestrator) install(ctx context.Context, node v1.FleetNode, device v1.DeviceRecord, pkg v1.ResolvedPackage) v1.DeviceResult {
	o.logger.Info("Installing driver", "node", node.DisplayName(), "device", device.Name, "package", pkg.Name, "version", pkg.Version)

	out, err := o.client.Install(ctx, node.Address, pkg)
	if err != nil {
		out = v1.InstallOutcome{
			Success:     false,
			Message:     err.Error(),
			PackageName: pkg.Name,
			Timestamp:   time.Now(),
			Kind:        errdefs.KindOf(err),
		}
	}
	if out.NodeName == "" {
		out.NodeName = node.DisplayName()
	}
	if out.PackageName == "" {
		out.PackageName = pkg.Name
	}

	if out.Success {
		o.logger.Info("Driver installed", "node", out.NodeName, "device", device.Name, "package", pkg.Name)
	} else {
		o.logger.Warn("Driver install failed", "node", out.NodeName, "device", device.Name, "package", pkg.Name, "kind", out.Kind, "message", out.Message)
	}

	return v1.DeviceResult{Device: device, Package: pkg, Outcome: out}
}

// UpdateFleet runs UpdateNode for every roster node in order. A node counts as updated when
// it was reachable and every package resolved for it installed.
func (o *Orchestrator) UpdateFleet(ctx context.Context) v1.FleetReport {
	var fleet v1.FleetReport

	for i, node := range o.session.Roster() {
		if i > 0 {
			if err := o.sleep(ctx, o.nodePacing); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		report := o.UpdateNode(ctx, node)
		fleet.Total++
		if report.Updated() {
			fleet.Succeeded++
		}
		fleet.Nodes = append(fleet.Nodes, report)
	}

	o.logger.Info("Fleet update finished", "updated", fleet.Succeeded, "nodes", fleet.Total)
	o.reporter.ReportFleet(ctx, fleet)
	return fleet
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
