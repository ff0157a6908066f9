package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
)

func TestInstallCommand(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		args     string
		wantPath string
		wantArgs []string
	}{
		{"msi default", "/tmp/a.msi", "", "msiexec.exe", []string{"/i", "/tmp/a.msi", "/quiet", "/norestart"}},
		{"msi custom", "/tmp/a.msi", "/passive", "msiexec.exe", []string{"/i", "/tmp/a.msi", "/passive"}},
		{"exe default", "/tmp/a.exe", "  ", "/tmp/a.exe", []string{"/S", "/quiet"}},
		{"exe custom quoted", "/tmp/a.exe", `-s "-clean install"`, "/tmp/a.exe", []string{"-s", "-clean install"}},
		{"inf ignores args", "/tmp/a.INF", "/whatever", "pnputil.exe", []string{"/add-driver", "/tmp/a.INF", "/install"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := installCommand(tt.path, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, cmd.Path)
			assert.Equal(t, tt.wantArgs, cmd.Args)
		})
	}
}

func TestInstallCommand_Unsupported(t *testing.T) {
	for _, p := range []string{"/tmp/a.zip", "/tmp/a.cab", "/tmp/noext"} {
		_, err := installCommand(p, "")
		assert.ErrorIs(t, err, errdefs.ErrUnsupportedPackage, p)
	}
}

func TestNormalizeHash(t *testing.T) {
	assert.Equal(t, "abcdef01", normalizeHash(" AB-CD:EF 01 "))
	assert.Equal(t, "", normalizeHash(""))
}

func TestPackageFileName(t *testing.T) {
	assert.Equal(t, "setup.exe", packageFileName("setup.exe", ""))
	assert.Equal(t, "driver.msi", packageFileName("", "http://repo/x/driver.msi?token=1"))
	assert.Equal(t, "passwd", packageFileName("../../etc/passwd", ""))
	assert.Contains(t, packageFileName("", "http://repo/"), "driver_")
}
