package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// Enumerator lists the hardware devices of the local node.
type Enumerator interface {
	Devices(ctx context.Context) ([]v1.DeviceRecord, error)
}

// NewEnumerator returns the platform enumerator, or a FileEnumerator when devicesFile is set.
func NewEnumerator(devicesFile string) Enumerator {
	if devicesFile != "" {
		return &FileEnumerator{Path: devicesFile}
	}
	return newPlatformEnumerator()
}

// FileEnumerator serves a fixed device list from a JSON file. The file is re-read on every call.
type FileEnumerator struct {
	Path string
}

func (e *FileEnumerator) Devices(_ context.Context) ([]v1.DeviceRecord, error) {
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, fmt.Errorf("read devices file: %w", err)
	}

	var devices []v1.DeviceRecord
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("decode devices file %s: %w", e.Path, err)
	}
	if devices == nil {
		devices = []v1.DeviceRecord{}
	}
	return devices, nil
}
