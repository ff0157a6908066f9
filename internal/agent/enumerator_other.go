//go:build !windows && !linux

package agent

import (
	"context"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

type noopEnumerator struct{}

func newPlatformEnumerator() Enumerator {
	return noopEnumerator{}
}

func (noopEnumerator) Devices(ctx context.Context) ([]v1.DeviceRecord, error) {
	return []v1.DeviceRecord{}, ctx.Err()
}
