package catalog

import (
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// Names of the built-in baseline entries.
const (
	BaselineGraphics = "NVIDIA Graphics Driver"
	BaselineAudio    = "Realtek HD Audio Driver"
	BaselineNetwork  = "Intel Network Adapter Driver"
)

// Baseline returns the fixed entries used when the remote catalog is unreachable or empty.
// One entry per common device family; URLs are relative to the catalog base.
func Baseline() []v1.CatalogEntry {
	return []v1.CatalogEntry{
		{
			Name:        BaselineGraphics,
			Version:     "456.71",
			Description: "Baseline graphics driver",
			HardwareIDs: []string{`PCI\VEN_10DE&DEV_1C03`, `PCI\VEN_10DE&DEV_1C82`},
			URL:         "/nvidia/driver.exe",
			InstallArgs: "/S /quiet",
		},
		{
			Name:        BaselineAudio,
			Version:     "6.0.9088.1",
			Description: "Baseline audio driver",
			HardwareIDs: []string{`HDAUDIO\FUNC_01&VEN_10EC`, `VEN_10EC&DEV_0662`},
			URL:         "/realtek/audio.exe",
			InstallArgs: "/S /quiet",
		},
		{
			Name:        BaselineNetwork,
			Version:     "12.19.2.45",
			Description: "Baseline network driver",
			HardwareIDs: []string{`PCI\VEN_8086&DEV_15BE`, `PCI\VEN_8086&DEV_15F2`},
			URL:         "/intel/network.msi",
			InstallArgs: "/quiet /norestart",
		},
	}
}
