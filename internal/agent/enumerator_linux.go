//go:build linux

package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

const defaultSysfsRoot = "/sys"

var pciVendors = map[uint64]string{
	0x10de: "NVIDIA Corporation",
	0x1002: "Advanced Micro Devices, Inc.",
	0x8086: "Intel Corporation",
	0x10ec: "Realtek Semiconductor Co., Ltd.",
	0x14e4: "Broadcom Inc.",
	0x168c: "Qualcomm Atheros",
	0x1af4: "Red Hat, Inc.",
	0x15ad: "VMware",
}

// sysfsEnumerator lists PCI functions from sysfs and reports them with Windows style
// hardware ids so the same catalog matches both platforms.
type sysfsEnumerator struct {
	root string
}

func newPlatformEnumerator() Enumerator {
	return &sysfsEnumerator{root: defaultSysfsRoot}
}

func (e *sysfsEnumerator) Devices(ctx context.Context) ([]v1.DeviceRecord, error) {
	dir := filepath.Join(e.root, "bus", "pci", "devices")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		names = append(names, ent.Name())
	}
	sort.Strings(names)

	devices := make([]v1.DeviceRecord, 0, len(names))
	for _, slot := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := e.readDevice(filepath.Join(dir, slot), slot)
		if err != nil {
			log.Debug("Skipping pci device", "slot", slot, "error", err)
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (e *sysfsEnumerator) readDevice(path, slot string) (v1.DeviceRecord, error) {
	vendor, err := readHex(filepath.Join(path, "vendor"))
	if err != nil {
		return v1.DeviceRecord{}, err
	}
	device, err := readHex(filepath.Join(path, "device"))
	if err != nil {
		return v1.DeviceRecord{}, err
	}
	class, _ := readHex(filepath.Join(path, "class"))

	base := fmt.Sprintf(`PCI\VEN_%04X&DEV_%04X`, vendor, device)
	hwids := []string{base}
	subVendor, errV := readHex(filepath.Join(path, "subsystem_vendor"))
	subDevice, errD := readHex(filepath.Join(path, "subsystem_device"))
	if errV == nil && errD == nil {
		hwids = []string{fmt.Sprintf("%s&SUBSYS_%04X%04X", base, subDevice, subVendor), base}
	}

	manufacturer, ok := pciVendors[vendor]
	if !ok {
		manufacturer = fmt.Sprintf("Vendor %04X", vendor)
	}

	d := v1.DeviceRecord{
		Manufacturer: manufacturer,
		Category:     pciCategory(class),
		PnpDeviceID:  fmt.Sprintf(`%s\%s`, base, strings.ToUpper(slot)),
		HardwareIDs:  hwids,
	}

	if link, err := os.Readlink(filepath.Join(path, "driver")); err == nil {
		drv := filepath.Base(link)
		d.Name = fmt.Sprintf("%s %s device %04X (%s)", manufacturer, strings.ToLower(d.Category), device, drv)
		d.DriverVersion = e.moduleVersion(drv)
	} else {
		d.Name = fmt.Sprintf("%s %s device %04X", manufacturer, strings.ToLower(d.Category), device)
	}
	return d, nil
}

// moduleVersion is empty for drivers built into the kernel or without a version attribute.
func (e *sysfsEnumerator) moduleVersion(driver string) string {
	data, err := os.ReadFile(filepath.Join(e.root, "module", driver, "version"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// pciCategory maps the PCI class code (0xCCSSPP) to a PnP class name.
func pciCategory(class uint64) string {
	switch {
	case class>>16 == 0x03:
		return "Display"
	case class>>8 == 0x0403:
		return "Audio"
	case class>>16 == 0x02:
		return "Net"
	default:
		return "System"
	}
}

func readHex(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	return strconv.ParseUint(s, 16, 64)
}
