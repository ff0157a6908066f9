package v1

// DeviceRecord describes one hardware device as reported by a node's enumerator.
type DeviceRecord struct {
	// Name is the friendly device name (e.g. "NVIDIA GeForce GTX 1060").
	Name string `json:"name"`

	// Manufacturer as reported by the OS.
	Manufacturer string `json:"manufacturer"`

	// Category is the device class (PNPClass on Windows, e.g. "Display", "Net", "AudioEndpoint").
	Category string `json:"category"`

	// PnpDeviceID is unique per device on a node.
	PnpDeviceID string `json:"pnpDeviceId"`

	// HardwareIDs is the ordered list of vendor/device identifiers, most specific first.
	HardwareIDs []string `json:"hardwareIds"`

	// DriverVersion of the currently bound driver. May be empty or "Unknown".
	DriverVersion string `json:"driverVersion"`

	// NeedsUpdate is derived by the console after matching against the catalog.
	// +optional
	NeedsUpdate bool `json:"needsUpdate,omitempty"`
}

// MachineInfo is the identity document served by an agent's ping endpoint.
type MachineInfo struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	OSVersion    string `json:"osVersion"`
	Architecture string `json:"architecture"`
	Online       bool   `json:"online"`
	Status       string `json:"status,omitempty"`
}

// FleetNode is one member of the roster built by a discovery cycle.
type FleetNode struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	OSVersion    string `json:"osVersion"`
	Architecture string `json:"architecture"`
	Reachable    bool   `json:"reachable"`
}

// DisplayName returns the node name, falling back to its address.
func (n FleetNode) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Address
}
