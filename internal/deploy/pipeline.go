// Package deploy runs one driver package install on the local node:
// download, optional hash verification, installer invocation and cleanup.
package deploy

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/looplab/fsm"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
	"github.com/driverfleet/driverfleet/internal/pkg/metrics"
	fsmutil "github.com/driverfleet/driverfleet/internal/pkg/util/fsm"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

const (
	StateDownloading = "downloading"
	StateVerifying   = "verifying"
	StateInstalling  = "installing"
	StateCleanup     = "cleanup"
	StateSucceeded   = "succeeded"
	StateFailed      = "failed"
)

const (
	EventDownloaded = "event_downloaded"
	EventVerified   = "event_verified"
	EventInstalled  = "event_installed"
	// EventAbort leaves any working state for cleanup.
	EventAbort   = "event_abort"
	EventSucceed = "event_succeed"
	EventFail    = "event_fail"
)

const DefaultDownloadTimeout = 10 * time.Minute

// Config configures a Pipeline.
type Config struct {
	// TempDir is the root under which every install gets its own private directory.
	// Empty means <os temp>/driverfleet.
	TempDir string

	DownloadTimeout time.Duration

	// NodeName is stamped on every outcome.
	NodeName string

	Client *http.Client
	Runner Runner

	// Logger is the parent of the pipeline logger. Nil means the global logger.
	Logger log.Logger
}

// Pipeline installs packages on this node. It is safe for concurrent use; every Install
// call works in its own temp directory.
type Pipeline struct {
	tempRoot string
	nodeName string
	client   *http.Client
	runner   Runner
	logger   log.Logger
	now      func() time.Time
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "driverfleet")
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.DownloadTimeout}
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.NodeName == "" {
		cfg.NodeName, _ = os.Hostname()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Std()
	}

	return &Pipeline{
		tempRoot: cfg.TempDir,
		nodeName: cfg.NodeName,
		client:   cfg.Client,
		runner:   cfg.Runner,
		logger:   cfg.Logger.WithName("deploy"),
		now:      time.Now,
	}
}

// TempRoot returns the directory holding per-install working directories.
func (p *Pipeline) TempRoot() string {
	return p.tempRoot
}

// Purge removes the temp root and everything left under it.
func (p *Pipeline) Purge() error {
	return os.RemoveAll(p.tempRoot)
}

// Install runs the whole pipeline for pkg and reports how it ended. It never panics and
// never returns an error; failures are described by the outcome.
func (p *Pipeline) Install(ctx context.Context, pkg v1.ResolvedPackage) (out v1.InstallOutcome) {
	start := p.now()
	r := &run{p: p, pkg: pkg}

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error(fmt.Errorf("%v", rec), "Install panicked", "package", pkg.Name, "stack", string(debug.Stack()))
			r.removeWorkDir()
			out = p.outcome(pkg, false, fmt.Sprintf("internal error: %v", rec), errdefs.KindInternal)
		}
		metrics.InstallTotal.WithLabelValues(metrics.Result(out.Success), out.Kind).Inc()
		metrics.InstallDuration.WithLabelValues(metrics.Result(out.Success)).Observe(p.now().Sub(start).Seconds())
	}()

	p.logger.Info("Starting driver install", "package", pkg.Name, "version", pkg.Version, "url", pkg.DownloadURL)

	if err := r.execute(ctx); err != nil {
		p.logger.Error(err, "Driver install failed", "package", pkg.Name, "state", r.fsm.Current())
		return p.outcome(pkg, false, err.Error(), errdefs.KindOf(err))
	}

	p.logger.Info("Driver installed", "package", pkg.Name, "version", pkg.Version)
	return p.outcome(pkg, true, fmt.Sprintf("%s %s installed", pkg.Name, pkg.Version), "")
}

func (p *Pipeline) outcome(pkg v1.ResolvedPackage, ok bool, msg, kind string) v1.InstallOutcome {
	return v1.InstallOutcome{
		Success:     ok,
		Message:     msg,
		PackageName: pkg.Name,
		NodeName:    p.nodeName,
		Timestamp:   p.now(),
		Kind:        kind,
	}
}

// run is the state of a single Install call.
type run struct {
	p   *Pipeline
	pkg v1.ResolvedPackage
	fsm *fsm.FSM

	workDir string
	file    string
}

func (r *run) newFSM() *fsm.FSM {
	working := []string{StateDownloading, StateVerifying, StateInstalling}

	events := fsm.Events{
		{Name: EventDownloaded, Src: []string{StateDownloading}, Dst: StateVerifying},
		{Name: EventVerified, Src: []string{StateVerifying}, Dst: StateInstalling},
		{Name: EventInstalled, Src: []string{StateInstalling}, Dst: StateCleanup},
		{Name: EventAbort, Src: working, Dst: StateCleanup},
		{Name: EventSucceed, Src: []string{StateCleanup}, Dst: StateSucceeded},
		{Name: EventFail, Src: []string{StateCleanup}, Dst: StateFailed},
	}

	callbacks := fsm.Callbacks{
		"enter_" + StateCleanup: fsmutil.WrapEvent(r.enterCleanup),
		"enter_state": func(_ context.Context, e *fsm.Event) {
			r.p.logger.Debug("Install state changed", "package", r.pkg.Name, "from", e.Src, "to", e.Dst)
		},
	}

	return fsm.NewFSM(StateDownloading, events, callbacks)
}

func (r *run) execute(ctx context.Context) error {
	r.fsm = r.newFSM()

	// Transitions must complete even after the caller gives up, so that cleanup always runs.
	fctx := context.WithoutCancel(ctx)

	steps := []struct {
		event string
		do    func(context.Context) error
	}{
		{EventDownloaded, r.download},
		{EventVerified, r.verify},
		{EventInstalled, r.install},
	}

	for _, s := range steps {
		if err := s.do(ctx); err != nil {
			r.fire(fctx, EventAbort)
			r.fire(fctx, EventFail)
			return err
		}
		r.fire(fctx, s.event)
	}

	r.fire(fctx, EventSucceed)
	return nil
}

func (r *run) fire(ctx context.Context, event string) {
	if err := r.fsm.Event(ctx, event); fsmutil.IsRealError(err) {
		// Only cleanup can fail here, and it does not change the outcome.
		r.p.logger.Warn("Install transition reported an error", "package", r.pkg.Name, "event", event, "error", err)
	}
}

func (r *run) enterCleanup(_ context.Context, _ *fsm.Event) error {
	return r.removeWorkDir()
}

func (r *run) removeWorkDir() error {
	if r.workDir == "" {
		return nil
	}
	if err := os.RemoveAll(r.workDir); err != nil {
		return fmt.Errorf("remove %s: %w", r.workDir, err)
	}
	return nil
}

func (r *run) install(ctx context.Context) error {
	cmd, err := installCommand(r.file, r.pkg.InstallArgs)
	if err != nil {
		return err
	}

	r.p.logger.Info("Running installer", "package", r.pkg.Name, "command", cmd.String())

	code, err := r.p.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: start %s: %v", errdefs.ErrInstaller, cmd.Path, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s exited with code %d", errdefs.ErrInstaller, filepath.Base(cmd.Path), code)
	}
	return nil
}
