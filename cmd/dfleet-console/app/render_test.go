package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

func TestRenderDevices(t *testing.T) {
	var buf bytes.Buffer
	renderDevices(&buf, []v1.DeviceRecord{
		{Name: "NVIDIA GeForce GTX 1060", Category: "Display", DriverVersion: "27.21.14.5671", NeedsUpdate: true},
		{Name: "PCI Express Root Port", Category: "System", DriverVersion: "10.0.19041.1"},
	})

	out := buf.String()
	assert.Contains(t, out, "NVIDIA GeForce GTX 1060")
	assert.Contains(t, out, "available")
	assert.Contains(t, out, "2 device(s), 1 with a newer driver")
}

func TestRenderCatalog(t *testing.T) {
	var buf bytes.Buffer
	renderCatalog(&buf, &v1.CatalogSnapshot{
		Entries:   []v1.CatalogEntry{{Name: "NVIDIA Graphics Driver", Version: "456.71", URL: "/nvidia/driver.exe", SHA256: "e3b0c44298fc1c149afbf4c8996fb924"}},
		Source:    v1.SnapshotSourceBaseline,
		FetchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	out := buf.String()
	assert.Contains(t, out, "456.71")
	assert.Contains(t, out, "e3b0c44298fc")
	assert.NotContains(t, out, "e3b0c44298fc1c")
	assert.Contains(t, out, "source: baseline, fetched 2026-01-02T03:04:05Z")
}

func TestRenderNodeReport(t *testing.T) {
	var buf bytes.Buffer
	renderNodeReport(&buf, v1.NodeReport{
		Node:      v1.FleetNode{Name: "WS-01", Address: "10.0.0.5"},
		Succeeded: 1,
		Total:     2,
		Results: []v1.DeviceResult{
			{Device: v1.DeviceRecord{Name: "GPU"}, Package: v1.ResolvedPackage{Name: "NVIDIA Graphics Driver", Version: "456.71"}, Outcome: v1.InstallOutcome{Success: true, Message: "installed"}},
			{Device: v1.DeviceRecord{Name: "Audio"}, Package: v1.ResolvedPackage{Name: "Realtek HD Audio Driver"}, Outcome: v1.InstallOutcome{Message: "exit code 1603", Kind: "installer"}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "failed (installer)")
	assert.Contains(t, out, "WS-01: 1/2 installed")
}

func TestRenderFleetReport(t *testing.T) {
	var buf bytes.Buffer
	renderFleetReport(&buf, v1.FleetReport{
		Succeeded: 1,
		Total:     3,
		Nodes: []v1.NodeReport{
			{Node: v1.FleetNode{Name: "WS-01", Address: "10.0.0.5"}, Succeeded: 2, Total: 2},
			{Node: v1.FleetNode{Address: "10.0.0.6"}, Error: "inventory of 10.0.0.6: transport error"},
			{Node: v1.FleetNode{Name: "WS-03", Address: "10.0.0.7"}, Succeeded: 0, Total: 1},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "updated")
	assert.Contains(t, out, "incomplete")
	assert.Contains(t, out, "transport error")
	assert.Contains(t, out, "1/3 machine(s) updated")
}

func TestRenderNodes(t *testing.T) {
	var buf bytes.Buffer
	renderNodes(&buf, []v1.FleetNode{{Name: "WS-01", Address: "10.0.0.5", OSVersion: "Windows 10", Architecture: "x64"}})
	assert.Contains(t, buf.String(), "1 machine(s) found")
}

func TestRenderOutcome(t *testing.T) {
	var buf bytes.Buffer
	renderOutcome(&buf, v1.InstallOutcome{
		Success:     true,
		PackageName: "NVIDIA Graphics Driver",
		NodeName:    "WS-01",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	assert.Contains(t, buf.String(), "WS-01  NVIDIA Graphics Driver  ok")
	assert.NotContains(t, buf.String(), "ok  ")
}
