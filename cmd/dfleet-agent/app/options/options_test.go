package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driverfleet/driverfleet/internal/agent"
)

func TestAgentOptionsConfig(t *testing.T) {
	o := NewAgentOptions()
	o.DeployOptions.TempDir = t.TempDir()
	o.DeployOptions.DevicesFile = "devices.json"
	require.NoError(t, o.Validate())

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, o.DeployOptions.TempDir, cfg.Installer.TempRoot())
	assert.IsType(t, &agent.FileEnumerator{}, cfg.Enumerator)
	assert.NotEmpty(t, cfg.Identity.Name)
}

func TestAgentOptionsFlagGroups(t *testing.T) {
	fss := NewAgentOptions().Flags()
	assert.Equal(t, []string{"HTTP", "Deploy", "Log"}, fss.Order)
	assert.NotNil(t, fss.FlagSet("HTTP").Lookup("http.addr"))
	assert.NotNil(t, fss.FlagSet("Deploy").Lookup("deploy.devices-file"))
}
