//go:build windows

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yusufpapurcu/wmi"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

// Win32_PnPEntity and Win32_PnPSignedDriver mirror the WMI classes; wmi derives the class
// name from the struct name.
type Win32_PnPEntity struct {
	Name         *string
	PNPDeviceID  *string
	PNPClass     *string
	Manufacturer *string
	HardwareID   []string
}

type Win32_PnPSignedDriver struct {
	DeviceID      *string
	DriverVersion *string
}

type wmiEnumerator struct{}

func newPlatformEnumerator() Enumerator {
	return wmiEnumerator{}
}

// Devices lists every device without a configuration error and joins it with the version
// of its signed driver.
func (wmiEnumerator) Devices(ctx context.Context) ([]v1.DeviceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entities []Win32_PnPEntity
	q := wmi.CreateQuery(&entities, "WHERE ConfigManagerErrorCode = 0")
	if err := wmi.Query(q, &entities); err != nil {
		return nil, fmt.Errorf("query Win32_PnPEntity: %w", err)
	}

	versions, err := signedDriverVersions()
	if err != nil {
		return nil, err
	}

	devices := make([]v1.DeviceRecord, 0, len(entities))
	for _, e := range entities {
		d := v1.DeviceRecord{
			Name:         deref(e.Name),
			Manufacturer: deref(e.Manufacturer),
			Category:     deref(e.PNPClass),
			PnpDeviceID:  deref(e.PNPDeviceID),
			HardwareIDs:  e.HardwareID,
		}
		if d.HardwareIDs == nil {
			d.HardwareIDs = []string{}
		}
		d.DriverVersion = versions[strings.ToUpper(d.PnpDeviceID)]
		devices = append(devices, d)
	}
	return devices, nil
}

// signedDriverVersions maps upper-cased device ids to driver versions. The first row wins.
func signedDriverVersions() (map[string]string, error) {
	var drivers []Win32_PnPSignedDriver
	q := wmi.CreateQuery(&drivers, "")
	if err := wmi.Query(q, &drivers); err != nil {
		return nil, fmt.Errorf("query Win32_PnPSignedDriver: %w", err)
	}

	out := make(map[string]string, len(drivers))
	for _, d := range drivers {
		id := strings.ToUpper(deref(d.DeviceID))
		if id == "" {
			continue
		}
		if _, ok := out[id]; !ok {
			out[id] = deref(d.DriverVersion)
		}
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
