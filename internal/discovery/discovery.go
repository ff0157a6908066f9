// Package discovery finds the nodes on the local network that run an agent.
package discovery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driverfleet/driverfleet/internal/pkg/metrics"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

const (
	DefaultAgentPort    = 8080
	DefaultConcurrency  = 10
	DefaultPingTimeout  = time.Second
	DefaultProbeTimeout = 2 * time.Second
)

// Config configures a Scanner. Zero values mean the defaults.
type Config struct {
	AgentPort    int
	Concurrency  int
	PingTimeout  time.Duration
	ProbeTimeout time.Duration

	// CIDR replaces the /24 around the primary address as the scan range.
	CIDR string

	Pinger Pinger
	Prober Prober

	// Candidates overrides how the address list is built.
	Candidates func() ([]string, error)

	// Logger is the parent of the scanner logger. Nil means the global logger.
	Logger log.Logger
}

// Scanner runs discovery cycles. Each Scan is independent.
type Scanner struct {
	concurrency  int
	pingTimeout  time.Duration
	probeTimeout time.Duration

	pinger     Pinger
	prober     Prober
	candidates func() ([]string, error)
	logger     log.Logger
}

// New creates a Scanner.
func New(cfg Config) *Scanner {
	if cfg.AgentPort <= 0 {
		cfg.AgentPort = DefaultAgentPort
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultPingTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Pinger == nil {
		cfg.Pinger = &ICMPPinger{Timeout: cfg.PingTimeout}
	}
	if cfg.Prober == nil {
		cfg.Prober = NewHTTPProber(cfg.AgentPort, cfg.ProbeTimeout)
	}
	if cfg.Candidates == nil {
		cidr := cfg.CIDR
		cfg.Candidates = func() ([]string, error) { return Candidates(cidr) }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Std()
	}

	return &Scanner{
		concurrency:  cfg.Concurrency,
		pingTimeout:  cfg.PingTimeout,
		probeTimeout: cfg.ProbeTimeout,
		pinger:       cfg.Pinger,
		prober:       cfg.Prober,
		candidates:   cfg.Candidates,
		logger:       cfg.Logger.WithName("discovery"),
	}
}

// Scan probes every candidate address and returns the nodes that answered both the ICMP echo
// and the agent ping, in candidate order. It blocks until every probe has finished.
// Unreachable addresses are left out silently.
func (s *Scanner) Scan(ctx context.Context) ([]v1.FleetNode, error) {
	addrs, err := s.candidates()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting network scan", "candidates", len(addrs), "concurrency", s.concurrency)
	start := time.Now()

	var (
		mu    sync.Mutex
		found = make(map[int]v1.FleetNode)
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, addr := range addrs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			node, ok := s.probe(ctx, addr)
			if ok {
				mu.Lock()
				found[i] = node
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	roster := make([]v1.FleetNode, 0, len(found))
	for i := range addrs {
		if n, ok := found[i]; ok {
			roster = append(roster, n)
		}
	}

	metrics.DiscoveredNodes.Set(float64(len(roster)))
	s.logger.Info("Network scan finished", "nodes", len(roster), "duration", time.Since(start))

	if err := ctx.Err(); err != nil {
		return roster, err
	}
	return roster, nil
}

func (s *Scanner) probe(ctx context.Context, addr string) (v1.FleetNode, bool) {
	pctx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	err := s.pinger.Ping(pctx, addr)
	cancel()
	metrics.ProbeTotal.WithLabelValues("icmp", metrics.Result(err == nil)).Inc()
	if err != nil {
		return v1.FleetNode{}, false
	}

	hctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	info, err := s.prober.Probe(hctx, addr)
	cancel()
	metrics.ProbeTotal.WithLabelValues("http", metrics.Result(err == nil)).Inc()
	if err != nil {
		s.logger.Debug("Address answered ping but runs no agent", "addr", addr, "error", err)
		return v1.FleetNode{}, false
	}

	return v1.FleetNode{
		Name:         info.Name,
		Address:      addr,
		OSVersion:    info.OSVersion,
		Architecture: info.Architecture,
		Reachable:    true,
	}, true
}
