package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

func newAgentStub(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathPing, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(v1.MachineInfo{Name: "WS-01", Online: true})
	})
	mux.HandleFunc("GET "+PathDevices, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]v1.DeviceRecord{gpu})
	})
	mux.HandleFunc("POST "+PathInstall, func(w http.ResponseWriter, r *http.Request) {
		var pkg v1.ResolvedPackage
		if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(v1.InstallOutcome{Success: true, PackageName: pkg.Name, NodeName: "WS-01"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, strings.TrimPrefix(srv.URL, "http://")
}

func TestHTTPNodeClient(t *testing.T) {
	_, addr := newAgentStub(t)
	c := NewHTTPNodeClient(0, time.Second, time.Second)

	info, err := c.Ping(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, "WS-01", info.Name)

	devices, err := c.Devices(context.Background(), addr)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, gpu.PnpDeviceID, devices[0].PnpDeviceID)

	out, err := c.Install(context.Background(), addr, v1.ResolvedPackage{Name: "GPU", DownloadURL: "http://repo/x.exe"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "GPU", out.PackageName)
}

func TestHTTPNodeClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	c := NewHTTPNodeClient(0, time.Second, time.Second)

	_, err := c.Devices(context.Background(), addr)
	assert.ErrorIs(t, err, errdefs.ErrTransport)
	assert.ErrorContains(t, err, "busy")

	srv.Close()
	_, err = c.Install(context.Background(), addr, v1.ResolvedPackage{Name: "GPU"})
	assert.ErrorIs(t, err, errdefs.ErrTransport)
}

func TestHTTPNodeClient_URL(t *testing.T) {
	c := NewHTTPNodeClient(8080, 0, 0)
	assert.Equal(t, "http://10.0.0.5:8080/api/devices", c.url("10.0.0.5", PathDevices))
	assert.Equal(t, "http://10.0.0.5:9090/api/devices", c.url("10.0.0.5:9090", PathDevices))
}
