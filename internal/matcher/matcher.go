// Package matcher resolves a device to the catalog entry that should be installed on it.
package matcher

import (
	"strings"

	"github.com/driverfleet/driverfleet/internal/version"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// Strategy is one way of pairing a device with a catalog entry.
type Strategy string

const (
	StrategyNone       Strategy = ""
	StrategyHardwareID Strategy = "hardware-id"
	StrategyHeuristic  Strategy = "heuristic"
)

// DefaultPolicy tries hardware ids first and falls back to the name heuristic.
var DefaultPolicy = []Strategy{StrategyHardwareID, StrategyHeuristic}

// Matcher applies a matching policy and the update gate.
type Matcher struct {
	policy []Strategy
}

// New returns a Matcher running the given strategies in order. An empty policy means DefaultPolicy.
func New(policy ...Strategy) *Matcher {
	if len(policy) == 0 {
		policy = DefaultPolicy
	}
	return &Matcher{policy: policy}
}

// Resolve returns the entry to install on device, or nil when nothing matches or the
// device is already adequately served.
func (m *Matcher) Resolve(device v1.DeviceRecord, entries []v1.CatalogEntry) *v1.CatalogEntry {
	entry, _ := m.Match(device, entries)
	if entry == nil || !NeedsUpdate(device, *entry) {
		return nil
	}
	return entry
}

// Match returns the first compatible entry and the strategy that found it, ignoring versions.
func (m *Matcher) Match(device v1.DeviceRecord, entries []v1.CatalogEntry) (*v1.CatalogEntry, Strategy) {
	for _, s := range m.policy {
		var idx int
		switch s {
		case StrategyHardwareID:
			idx = matchHardwareID(device, entries)
		case StrategyHeuristic:
			idx = matchHeuristic(device, entries)
		default:
			idx = -1
		}
		if idx >= 0 {
			entry := entries[idx]
			return &entry, s
		}
	}
	return nil, StrategyNone
}

// Annotate sets NeedsUpdate on every device in place and returns how many need an update.
func (m *Matcher) Annotate(devices []v1.DeviceRecord, entries []v1.CatalogEntry) int {
	n := 0
	for i := range devices {
		devices[i].NeedsUpdate = m.Resolve(devices[i], entries) != nil
		if devices[i].NeedsUpdate {
			n++
		}
	}
	return n
}

// NeedsUpdate is the update gate applied to a compatible entry.
//
// In-box Microsoft class drivers beyond the 1.x range are treated as adequate and never replaced.
func NeedsUpdate(device v1.DeviceRecord, entry v1.CatalogEntry) bool {
	if version.IsUnset(device.DriverVersion) {
		return true
	}
	if strings.TrimSpace(entry.Version) == "" {
		return true
	}
	if strings.Contains(device.Manufacturer, "Microsoft") && version.Major(device.DriverVersion) >= 2 {
		return false
	}
	return version.Compare(entry.Version, device.DriverVersion) == version.Greater
}

func matchHardwareID(device v1.DeviceRecord, entries []v1.CatalogEntry) int {
	for i, entry := range entries {
		for _, want := range entry.HardwareIDs {
			for _, have := range device.HardwareIDs {
				if hardwareIDsOverlap(have, want) {
					return i
				}
			}
		}
	}
	return -1
}

func hardwareIDsOverlap(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
