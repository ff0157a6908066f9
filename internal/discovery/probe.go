package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

const PingPath = "/api/ping"

// Prober asks the agent at addr who it is.
type Prober interface {
	Probe(ctx context.Context, addr string) (v1.MachineInfo, error)
}

// HTTPProber calls the agent ping endpoint.
type HTTPProber struct {
	Port   int
	Client *http.Client
}

var _ Prober = (*HTTPProber)(nil)

// NewHTTPProber returns a prober for agents listening on port.
func NewHTTPProber(port int, timeout time.Duration) *HTTPProber {
	return &HTTPProber{Port: port, Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProber) Probe(ctx context.Context, addr string) (v1.MachineInfo, error) {
	url := "http://" + net.JoinHostPort(addr, strconv.Itoa(p.Port)) + PingPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return v1.MachineInfo{}, fmt.Errorf("%w: %v", errdefs.ErrTransport, err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return v1.MachineInfo{}, fmt.Errorf("%w: %v", errdefs.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return v1.MachineInfo{}, fmt.Errorf("%w: %s answered %s", errdefs.ErrTransport, url, resp.Status)
	}

	var info v1.MachineInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return v1.MachineInfo{}, fmt.Errorf("%w: decode ping response: %v", errdefs.ErrTransport, err)
	}
	return info, nil
}
