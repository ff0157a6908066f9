package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{addr: "0.0.0.0:8080"},
		{addr: ":8080"},
		{addr: "localhost:5000"},
		{addr: "127.0.0.1:0"},
		{addr: "8080", wantErr: true},
		{addr: "127.0.0.1:http", wantErr: true},
		{addr: "127.0.0.1:70000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	groups := map[string]IOptions{
		"http":         NewHttpOptions(),
		"mqtt":         NewMqttOptions(),
		"s3":           NewS3Options(),
		"catalog":      NewCatalogOptions(),
		"discovery":    NewDiscoveryOptions(),
		"orchestrator": NewOrchestratorOptions(),
		"deploy":       NewDeployOptions(),
		"repository":   NewRepositoryOptions(),
	}
	for name, o := range groups {
		assert.Empty(t, o.Validate(), name)
	}
}

func TestFlagsOverrideDefaults(t *testing.T) {
	catalog := NewCatalogOptions()
	discovery := NewDiscoveryOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	catalog.AddFlags(fs)
	discovery.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--catalog.base-url=http://repo.lan:5000",
		"--catalog.ttl=1m",
		"--discovery.cidr=10.1.2.0/24",
		"--discovery.concurrency=32",
	}))

	assert.Equal(t, "http://repo.lan:5000", catalog.BaseURL)
	assert.Equal(t, time.Minute, catalog.TTL)
	assert.Equal(t, "10.1.2.0/24", discovery.CIDR)
	assert.Equal(t, 32, discovery.Concurrency)
}

func TestInvalidOptions(t *testing.T) {
	c := NewCatalogOptions()
	c.BaseURL = "repo.lan"
	c.TTL = 0
	assert.Len(t, c.Validate(), 2)

	d := NewDiscoveryOptions()
	d.CIDR = "10.0.0.0"
	d.Concurrency = 0
	assert.Len(t, d.Validate(), 2)

	m := NewMqttOptions()
	m.Broker = "not a url"
	assert.NotEmpty(t, m.Validate())

	s := NewS3Options()
	s.Endpoint = "minio.local:9000"
	assert.Len(t, s.Validate(), 1, "credentials are required")

	r := NewRepositoryOptions()
	r.Addr = "nowhere"
	assert.Len(t, r.Validate(), 1)
}

func TestMqttToClientConfig(t *testing.T) {
	o := NewMqttOptions()
	o.Broker = "tcp://broker.lan:1883"
	o.ClientID = "dfleet-console-ws01"

	cfg := o.ToClientConfig()
	assert.Equal(t, "tcp://broker.lan:1883", cfg.BrokerURL)
	assert.Equal(t, uint16(60), cfg.KeepAlive)
	assert.NoError(t, cfg.Validate())
	assert.True(t, o.Enabled())
	assert.False(t, NewMqttOptions().Enabled())
}
