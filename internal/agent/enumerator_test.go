package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileEnumerator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name":"Realtek High Definition Audio","category":"AudioEndpoint","pnpDeviceId":"HDAUDIO\\1","hardwareIds":["HDAUDIO\\FUNC_01&VEN_10EC&DEV_0662"],"driverVersion":"6.0.8000.1"}
	]`), 0o644))

	devices, err := NewEnumerator(path).Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Realtek High Definition Audio", devices[0].Name)
	assert.Equal(t, []string{`HDAUDIO\FUNC_01&VEN_10EC&DEV_0662`}, devices[0].HardwareIDs)
}

func TestFileEnumeratorErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := (&FileEnumerator{Path: filepath.Join(dir, "missing.json")}).Devices(context.Background())
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{not json`), 0o644))
	_, err = (&FileEnumerator{Path: bad}).Devices(context.Background())
	assert.ErrorContains(t, err, "decode devices file")
}

func TestFileEnumeratorNullIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`null`), 0o644))

	devices, err := (&FileEnumerator{Path: path}).Devices(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
}

func TestNormalizeArch(t *testing.T) {
	tests := map[string]string{
		"amd64":   "x64",
		"x86_64":  "x64",
		"386":     "x86",
		"i686":    "x86",
		"aarch64": "arm64",
		"arm64":   "arm64",
		"riscv64": "riscv64",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeArch(in), in)
	}
}

func TestDetectIdentity(t *testing.T) {
	id := DetectIdentity()
	assert.NotEmpty(t, id.Name)
	assert.NotEmpty(t, id.Address)
	assert.NotEmpty(t, id.Architecture)

	info := id.MachineInfo()
	assert.True(t, info.Online)
	assert.Equal(t, id.Name, info.Name)
}
