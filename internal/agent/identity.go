package agent

import (
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/driverfleet/driverfleet/internal/discovery"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// Identity is what the agent tells the console about its node.
type Identity struct {
	Name         string
	Address      string
	OSVersion    string
	Architecture string
}

// MachineInfo returns the ping response for this identity.
func (id Identity) MachineInfo() v1.MachineInfo {
	return v1.MachineInfo{
		Name:         id.Name,
		Address:      id.Address,
		OSVersion:    id.OSVersion,
		Architecture: id.Architecture,
		Online:       true,
		Status:       "Online",
	}
}

// DetectIdentity reads the identity of the local node. Missing pieces fall back to what the
// Go runtime knows.
func DetectIdentity() Identity {
	id := Identity{
		Architecture: normalizeArch(runtime.GOARCH),
		OSVersion:    runtime.GOOS,
		Address:      discovery.Loopback,
	}
	id.Name, _ = os.Hostname()

	if info, err := host.Info(); err == nil {
		if info.Hostname != "" {
			id.Name = info.Hostname
		}
		if v := strings.TrimSpace(info.Platform + " " + info.PlatformVersion); v != "" {
			id.OSVersion = v
		}
		if info.KernelArch != "" {
			id.Architecture = normalizeArch(info.KernelArch)
		}
	}

	if ip := discovery.PrimaryIPv4(); ip != nil {
		id.Address = ip.String()
	}
	return id
}

func normalizeArch(arch string) string {
	switch strings.ToLower(arch) {
	case "amd64", "x86_64", "x64":
		return "x64"
	case "386", "i386", "i686", "x86":
		return "x86"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return arch
	}
}
