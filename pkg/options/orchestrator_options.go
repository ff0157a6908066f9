package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*OrchestratorOptions)(nil)

// OrchestratorOptions configures the update cycle run by the console.
type OrchestratorOptions struct {
	InventoryTimeout time.Duration `json:"inventory-timeout" mapstructure:"inventory-timeout"`
	InstallTimeout   time.Duration `json:"install-timeout" mapstructure:"install-timeout"`

	// Pacing waits between two installs on a node and between two nodes of a fleet update.
	DevicePacing time.Duration `json:"device-pacing" mapstructure:"device-pacing"`
	NodePacing   time.Duration `json:"node-pacing" mapstructure:"node-pacing"`
}

func NewOrchestratorOptions() *OrchestratorOptions {
	return &OrchestratorOptions{
		InventoryTimeout: 10 * time.Second,
		InstallTimeout:   60 * time.Second,
		DevicePacing:     time.Second,
		NodePacing:       2 * time.Second,
	}
}

func (o *OrchestratorOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.InventoryTimeout <= 0 || o.InstallTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--orchestrator.inventory-timeout and --orchestrator.install-timeout must be positive"))
	}
	if o.DevicePacing < 0 || o.NodePacing < 0 {
		errors = append(errors, fmt.Errorf("pacing delays must not be negative"))
	}

	return errors
}

func (o *OrchestratorOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.InventoryTimeout, "orchestrator.inventory-timeout", o.InventoryTimeout, "Timeout for reading a node's device inventory.")
	fs.DurationVar(&o.InstallTimeout, "orchestrator.install-timeout", o.InstallTimeout, "Timeout for a single remote install request.")
	fs.DurationVar(&o.DevicePacing, "orchestrator.device-pacing", o.DevicePacing, "Delay between two installs on the same node.")
	fs.DurationVar(&o.NodePacing, "orchestrator.node-pacing", o.NodePacing, "Delay between two nodes during a fleet update.")
}
