package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// Agent API paths.
const (
	PathPing    = "/api/ping"
	PathDevices = "/api/devices"
	PathInstall = "/api/drivers/install"
)

const (
	DefaultAgentPort        = 8080
	DefaultInventoryTimeout = 10 * time.Second
	DefaultInstallTimeout   = 60 * time.Second
)

// NodeClient talks to the agent running on a node. addr is a host, or host:port when the
// agent does not listen on the default port.
type NodeClient interface {
	Ping(ctx context.Context, addr string) (v1.MachineInfo, error)
	Devices(ctx context.Context, addr string) ([]v1.DeviceRecord, error)
	Install(ctx context.Context, addr string, pkg v1.ResolvedPackage) (v1.InstallOutcome, error)
}

// HTTPNodeClient is the NodeClient for the agent HTTP API.
type HTTPNodeClient struct {
	port             int
	pingTimeout      time.Duration
	inventoryTimeout time.Duration
	installTimeout   time.Duration
	client           *http.Client
}

var _ NodeClient = (*HTTPNodeClient)(nil)

// NewHTTPNodeClient creates a client for agents on port. Zero values mean the defaults.
func NewHTTPNodeClient(port int, inventoryTimeout, installTimeout time.Duration) *HTTPNodeClient {
	if port <= 0 {
		port = DefaultAgentPort
	}
	if inventoryTimeout <= 0 {
		inventoryTimeout = DefaultInventoryTimeout
	}
	if installTimeout <= 0 {
		installTimeout = DefaultInstallTimeout
	}
	return &HTTPNodeClient{
		port:             port,
		pingTimeout:      2 * time.Second,
		inventoryTimeout: inventoryTimeout,
		installTimeout:   installTimeout,
		client:           &http.Client{},
	}
}

func (c *HTTPNodeClient) Ping(ctx context.Context, addr string) (v1.MachineInfo, error) {
	var info v1.MachineInfo
	err := c.do(ctx, c.pingTimeout, http.MethodGet, c.url(addr, PathPing), nil, &info)
	return info, err
}

func (c *HTTPNodeClient) Devices(ctx context.Context, addr string) ([]v1.DeviceRecord, error) {
	var devices []v1.DeviceRecord
	if err := c.do(ctx, c.inventoryTimeout, http.MethodGet, c.url(addr, PathDevices), nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *HTTPNodeClient) Install(ctx context.Context, addr string, pkg v1.ResolvedPackage) (v1.InstallOutcome, error) {
	var out v1.InstallOutcome
	err := c.do(ctx, c.installTimeout, http.MethodPost, c.url(addr, PathInstall), pkg, &out)
	return out, err
}

func (c *HTTPNodeClient) url(addr, path string) string {
	host := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		host = net.JoinHostPort(addr, strconv.Itoa(c.port))
	}
	return "http://" + host + path
}

func (c *HTTPNodeClient) do(ctx context.Context, timeout time.Duration, method, url string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", errdefs.ErrTransport, method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: agent returned %s: %s", errdefs.ErrTransport, method, url, resp.Status, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", errdefs.ErrTransport, url, err)
	}
	return nil
}
