package matcher

import (
	"strings"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// DeviceClass is the coarse family used by the name heuristic.
type DeviceClass string

const (
	ClassGraphics DeviceClass = "graphics"
	ClassAudio    DeviceClass = "audio"
	ClassNetwork  DeviceClass = "network"
	ClassOther    DeviceClass = "other"
)

var classKeywords = map[DeviceClass][]string{
	ClassGraphics: {"nvidia", "geforce", "radeon", "amd", "intel graphics", "graphics"},
	ClassAudio:    {"realtek", "audio", "sound", "hd audio"},
	ClassNetwork:  {"intel", "ethernet", "network", "wifi", "wireless"},
}

// Classify maps an OS device category onto a DeviceClass.
func Classify(category string) DeviceClass {
	switch {
	case strings.Contains(category, "Display"), strings.Contains(category, "GPU"):
		return ClassGraphics
	case strings.Contains(category, "Audio"), strings.Contains(category, "Microphone"):
		return ClassAudio
	case strings.Contains(category, "Network"), strings.Contains(category, "Net"):
		return ClassNetwork
	default:
		return ClassOther
	}
}

func matchHeuristic(device v1.DeviceRecord, entries []v1.CatalogEntry) int {
	keywords := classKeywords[Classify(device.Category)]
	deviceName := strings.ToLower(device.Name)
	manufacturer := strings.ToLower(strings.TrimSpace(device.Manufacturer))

	for i, entry := range entries {
		entryName := strings.ToLower(entry.Name)
		for _, kw := range keywords {
			if strings.Contains(entryName, kw) || strings.Contains(deviceName, kw) {
				return i
			}
		}
		if manufacturer != "" && strings.Contains(entryName, manufacturer) {
			return i
		}
	}
	return -1
}
