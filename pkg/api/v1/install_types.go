package v1

import "time"

// ResolvedPackage is the install request sent to a node's agent.
type ResolvedPackage struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	DownloadURL string `json:"downloadUrl"`
	InstallArgs string `json:"installArgs,omitempty"`
	SHA256      string `json:"sha256,omitempty"`
	FileName    string `json:"fileName,omitempty"`
}

// InstallOutcome reports the result of a single DeploymentPipeline run.
type InstallOutcome struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	PackageName string    `json:"packageName"`
	NodeName    string    `json:"nodeName"`
	Timestamp   time.Time `json:"timestamp"`

	// Kind is a short machine-readable failure class. Empty on success.
	// +optional
	Kind string `json:"kind,omitempty"`
}

// DeviceResult pairs a device with the package chosen for it and the install outcome.
type DeviceResult struct {
	Device  DeviceRecord    `json:"device"`
	Package ResolvedPackage `json:"package"`
	Outcome InstallOutcome  `json:"outcome"`
}

// NodeReport is the tally of one node's update cycle.
type NodeReport struct {
	Node      FleetNode      `json:"node"`
	Succeeded int            `json:"succeeded"`
	Total     int            `json:"total"`
	Results   []DeviceResult `json:"results,omitempty"`

	// Error is set when the cycle could not run at all (e.g. inventory unreachable).
	// +optional
	Error string `json:"error,omitempty"`
}

// Updated reports whether the node was reachable and every resolved package installed. A partial
// success is not an update: the node still has outdated drivers to revisit.
func (r NodeReport) Updated() bool {
	return r.Error == "" && r.Succeeded == r.Total
}

// FleetReport is the tally of a fleet-wide operation.
type FleetReport struct {
	Succeeded int          `json:"succeeded"`
	Total     int          `json:"total"`
	Nodes     []NodeReport `json:"nodes,omitempty"`
}
