package orchestrator

import (
	"sync"

	"github.com/driverfleet/driverfleet/internal/catalog"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// Session is the in-memory state of one console process: the catalog, the last roster,
// the last inventory of every node and the packages installed since the process started.
//
// Readers may use it concurrently with a running update.
type Session struct {
	cache *catalog.Cache

	mu        sync.RWMutex
	roster    []v1.FleetNode
	inventory map[string][]v1.DeviceRecord
	// node address -> device key -> installed version
	installed map[string]map[string]string
}

// NewSession creates an empty session around cache.
func NewSession(cache *catalog.Cache) *Session {
	return &Session{
		cache:     cache,
		inventory: make(map[string][]v1.DeviceRecord),
		installed: make(map[string]map[string]string),
	}
}

// Catalog returns the catalog cache.
func (s *Session) Catalog() *catalog.Cache {
	return s.cache
}

// Roster returns a copy of the nodes found by the last scan.
func (s *Session) Roster() []v1.FleetNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]v1.FleetNode(nil), s.roster...)
}

// SetRoster replaces the roster.
func (s *Session) SetRoster(nodes []v1.FleetNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = append([]v1.FleetNode(nil), nodes...)
}

// Node looks a roster node up by address.
func (s *Session) Node(addr string) (v1.FleetNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.roster {
		if n.Address == addr {
			return n, true
		}
	}
	return v1.FleetNode{}, false
}

// Inventory returns a copy of the last device list fetched from addr.
func (s *Session) Inventory(addr string) []v1.DeviceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]v1.DeviceRecord(nil), s.inventory[addr]...)
}

// Installed returns the version installed on a device of addr during this session.
func (s *Session) Installed(addr string, device v1.DeviceRecord) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.installed[addr][deviceKey(device)]
	return v, ok
}

func (s *Session) setInventory(addr string, devices []v1.DeviceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[addr] = append([]v1.DeviceRecord(nil), devices...)
}

// applyOverrides replaces the reported driver version of devices updated in this session.
// A node may keep reporting the old version until it reboots.
func (s *Session) applyOverrides(addr string, devices []v1.DeviceRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range devices {
		if v, ok := s.installed[addr][deviceKey(devices[i])]; ok {
			devices[i].DriverVersion = v
		}
	}
}

// recordInstall remembers a successful install and updates the held inventory record.
func (s *Session) recordInstall(addr string, device v1.DeviceRecord, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := deviceKey(device)
	if s.installed[addr] == nil {
		s.installed[addr] = make(map[string]string)
	}
	s.installed[addr][key] = version

	inv := s.inventory[addr]
	for i := range inv {
		if deviceKey(inv[i]) == key {
			inv[i].DriverVersion = version
			inv[i].NeedsUpdate = false
		}
	}
}

func deviceKey(d v1.DeviceRecord) string {
	if d.PnpDeviceID != "" {
		return d.PnpDeviceID
	}
	return "name:" + d.Name
}
