package options

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DiscoveryOptions)(nil)

// DiscoveryOptions configures the fleet scan.
type DiscoveryOptions struct {
	// CIDR overrides the /24 around the primary local address.
	CIDR         string        `json:"cidr" mapstructure:"cidr"`
	AgentPort    int           `json:"agent-port" mapstructure:"agent-port"`
	Concurrency  int           `json:"concurrency" mapstructure:"concurrency"`
	PingTimeout  time.Duration `json:"ping-timeout" mapstructure:"ping-timeout"`
	ProbeTimeout time.Duration `json:"probe-timeout" mapstructure:"probe-timeout"`
}

func NewDiscoveryOptions() *DiscoveryOptions {
	return &DiscoveryOptions{
		AgentPort:    8080,
		Concurrency:  10,
		PingTimeout:  time.Second,
		ProbeTimeout: 2 * time.Second,
	}
}

func (o *DiscoveryOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.CIDR != "" {
		if _, _, err := net.ParseCIDR(o.CIDR); err != nil {
			errors = append(errors, fmt.Errorf("--discovery.cidr: %w", err))
		}
	}
	if o.AgentPort <= 0 || o.AgentPort > 65535 {
		errors = append(errors, fmt.Errorf("--discovery.agent-port %d is out of range", o.AgentPort))
	}
	if o.Concurrency < 1 {
		errors = append(errors, fmt.Errorf("--discovery.concurrency must be at least 1"))
	}
	if o.PingTimeout <= 0 || o.ProbeTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--discovery.ping-timeout and --discovery.probe-timeout must be positive"))
	}

	return errors
}

func (o *DiscoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.CIDR, "discovery.cidr", o.CIDR, "Network to scan (e.g. 192.168.1.0/24). Defaults to the /24 of the primary local address.")
	fs.IntVar(&o.AgentPort, "discovery.agent-port", o.AgentPort, "Port the node agents listen on.")
	fs.IntVar(&o.Concurrency, "discovery.concurrency", o.Concurrency, "Maximum number of hosts probed at once.")
	fs.DurationVar(&o.PingTimeout, "discovery.ping-timeout", o.PingTimeout, "ICMP echo timeout per host.")
	fs.DurationVar(&o.ProbeTimeout, "discovery.probe-timeout", o.ProbeTimeout, "Agent ping endpoint timeout per host.")
}
