package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DeployOptions)(nil)

// DeployOptions configures the install pipeline hosted by the agent.
type DeployOptions struct {
	// TempDir holds one working directory per install. Empty means <os temp>/driverfleet.
	TempDir         string        `json:"temp-dir" mapstructure:"temp-dir"`
	DownloadTimeout time.Duration `json:"download-timeout" mapstructure:"download-timeout"`

	// DevicesFile replaces the platform device enumerator with a JSON fixture.
	DevicesFile string `json:"devices-file" mapstructure:"devices-file"`
}

func NewDeployOptions() *DeployOptions {
	return &DeployOptions{
		DownloadTimeout: 10 * time.Minute,
	}
}

func (o *DeployOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.DownloadTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--deploy.download-timeout must be positive"))
	}

	return errors
}

func (o *DeployOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.TempDir, "deploy.temp-dir", o.TempDir, "Directory for downloaded packages. Defaults to <os temp>/driverfleet.")
	fs.DurationVar(&o.DownloadTimeout, "deploy.download-timeout", o.DownloadTimeout, "Timeout for downloading one package.")
	fs.StringVar(&o.DevicesFile, "deploy.devices-file", o.DevicesFile, "Serve the device inventory from this JSON file instead of the OS.")
}
