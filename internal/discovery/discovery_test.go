package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

type fakePinger struct {
	alive map[string]bool

	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakePinger) Ping(ctx context.Context, addr string) error {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.alive[addr] {
		return nil
	}
	return errors.New("timeout")
}

type fakeProber struct {
	mu     sync.Mutex
	agents map[string]v1.MachineInfo
	probed []string
}

func (f *fakeProber) Probe(_ context.Context, addr string) (v1.MachineInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, addr)
	info, ok := f.agents[addr]
	if !ok {
		return v1.MachineInfo{}, errors.New("connection refused")
	}
	return info, nil
}

func fixedCandidates(addrs ...string) func() ([]string, error) {
	return func() ([]string, error) { return addrs, nil }
}

func TestScan_OnlyLoopbackResponds(t *testing.T) {
	addrs, err := buildCandidates(net.ParseIP("192.168.1.37"), "")
	require.NoError(t, err)

	pinger := &fakePinger{alive: map[string]bool{Loopback: true}}
	prober := &fakeProber{agents: map[string]v1.MachineInfo{
		Loopback: {Name: "WS-01", Address: "10.9.9.9", OSVersion: "Windows 10", Architecture: "X64"},
	}}

	s := New(Config{Pinger: pinger, Prober: prober, Candidates: fixedCandidates(addrs...)})
	roster, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, roster, 1)
	assert.Equal(t, v1.FleetNode{
		Name:         "WS-01",
		Address:      Loopback,
		OSVersion:    "Windows 10",
		Architecture: "X64",
		Reachable:    true,
	}, roster[0])
	assert.Equal(t, []string{Loopback}, prober.probed, "only ping responders get the HTTP probe")
}

func TestScan_ExcludesHostsWithoutAgent(t *testing.T) {
	pinger := &fakePinger{alive: map[string]bool{"10.0.0.1": true, "10.0.0.2": true, "10.0.0.3": true}}
	prober := &fakeProber{agents: map[string]v1.MachineInfo{
		"10.0.0.1": {Name: "a"},
		"10.0.0.3": {Name: "c"},
	}}

	s := New(Config{Pinger: pinger, Prober: prober, Candidates: fixedCandidates("10.0.0.3", "10.0.0.2", "10.0.0.1", "10.0.0.4")})
	roster, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, roster, 2)
	assert.Equal(t, "c", roster[0].Name, "candidate order is kept")
	assert.Equal(t, "a", roster[1].Name)
}

func TestScan_BoundedConcurrency(t *testing.T) {
	addrs, err := ExpandCIDR("10.1.0.0/26")
	require.NoError(t, err)

	pinger := &fakePinger{delay: 5 * time.Millisecond}
	s := New(Config{Concurrency: 4, Pinger: pinger, Prober: &fakeProber{}, Candidates: fixedCandidates(addrs...)})

	roster, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, roster)
	assert.LessOrEqual(t, pinger.peak.Load(), int32(4))
	assert.Greater(t, pinger.peak.Load(), int32(1))
}

func TestScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{Pinger: &fakePinger{}, Prober: &fakeProber{}, Candidates: fixedCandidates("10.0.0.1")})
	_, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_CandidateError(t *testing.T) {
	s := New(Config{CIDR: "not-a-cidr", Pinger: &fakePinger{}, Prober: &fakeProber{}})
	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

func TestBuildCandidates(t *testing.T) {
	addrs, err := buildCandidates(net.ParseIP("192.168.1.37"), "")
	require.NoError(t, err)

	assert.Len(t, addrs, 255, "254 subnet hosts plus loopback, local address deduplicated")
	assert.Equal(t, "192.168.1.1", addrs[0])
	assert.Equal(t, "192.168.1.254", addrs[253])
	assert.Equal(t, Loopback, addrs[254])
	assert.NotContains(t, addrs, "192.168.1.0")
	assert.NotContains(t, addrs, "192.168.1.255")
}

func TestBuildCandidates_CIDROverride(t *testing.T) {
	addrs, err := buildCandidates(net.ParseIP("192.168.1.37"), "10.0.0.0/30")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", Loopback, "192.168.1.37"}, addrs)
}

func TestBuildCandidates_NoInterface(t *testing.T) {
	addrs, err := buildCandidates(nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{Loopback}, addrs)
}

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		cidr string
		want int
	}{
		{"10.0.0.0/24", 254},
		{"10.0.0.0/30", 2},
		{"10.0.0.0/31", 2},
		{"10.0.0.7/32", 1},
		{"172.16.0.0/16", 65534},
	}
	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			ips, err := ExpandCIDR(tt.cidr)
			require.NoError(t, err)
			assert.Len(t, ips, tt.want)
		})
	}

	_, err := ExpandCIDR("10.0.0.0/8")
	assert.Error(t, err)
	_, err = ExpandCIDR("fd00::/120")
	assert.Error(t, err)
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PingPath {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(v1.MachineInfo{Name: "WS-02", OSVersion: "Windows 11", Online: true})
	}))
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	info, err := NewHTTPProber(port, time.Second).Probe(context.Background(), host)
	require.NoError(t, err)
	assert.Equal(t, "WS-02", info.Name)
	assert.True(t, info.Online)
}

func TestHTTPProber_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	_, err := NewHTTPProber(port, time.Second).Probe(context.Background(), host)
	assert.Error(t, err)
}

func TestScan_LogsUnderDiscoveryName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pinger := &fakePinger{alive: map[string]bool{"10.0.0.1": true}}
	s := New(Config{Pinger: pinger, Prober: &fakeProber{}, Candidates: fixedCandidates("10.0.0.1"), Logger: log.NewFromCore(core)})

	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	skipped := logs.FilterMessage("Address answered ping but runs no agent").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "discovery", skipped[0].LoggerName)
	assert.Equal(t, 1, logs.FilterMessage("Network scan finished").Len())
}
