package options

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/driverfleet/driverfleet/internal/catalog"
	"github.com/driverfleet/driverfleet/internal/discovery"
	"github.com/driverfleet/driverfleet/internal/orchestrator"
	"github.com/driverfleet/driverfleet/pkg/app"
	"github.com/driverfleet/driverfleet/pkg/log"
	"github.com/driverfleet/driverfleet/pkg/mqtt"
	genericoptions "github.com/driverfleet/driverfleet/pkg/options"
)

type ConsoleOptions struct {
	CatalogOptions      *genericoptions.CatalogOptions      `json:"catalog" mapstructure:"catalog"`
	DiscoveryOptions    *genericoptions.DiscoveryOptions    `json:"discovery" mapstructure:"discovery"`
	OrchestratorOptions *genericoptions.OrchestratorOptions `json:"orchestrator" mapstructure:"orchestrator"`
	MqttOptions         *genericoptions.MqttOptions         `json:"mqtt" mapstructure:"mqtt"`
	Log                 *log.Options                        `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*ConsoleOptions)(nil)

func NewConsoleOptions() *ConsoleOptions {
	return &ConsoleOptions{
		CatalogOptions:      genericoptions.NewCatalogOptions(),
		DiscoveryOptions:    genericoptions.NewDiscoveryOptions(),
		OrchestratorOptions: genericoptions.NewOrchestratorOptions(),
		MqttOptions:         genericoptions.NewMqttOptions(),
		Log:                 log.NewOptions(),
	}
}

func (o *ConsoleOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}

	o.CatalogOptions.AddFlags(fss.FlagSet("Catalog"))
	o.DiscoveryOptions.AddFlags(fss.FlagSet("Discovery"))
	o.OrchestratorOptions.AddFlags(fss.FlagSet("Orchestrator"))
	o.MqttOptions.AddFlags(fss.FlagSet("MQTT"))
	o.Log.AddFlags(fss.FlagSet("Log"))
	return fss
}

// Complete generates an MQTT client id when reporting is on and none was given.
func (o *ConsoleOptions) Complete() error {
	if o.MqttOptions.Enabled() && o.MqttOptions.ClientID == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "console"
		}
		o.MqttOptions.ClientID = fmt.Sprintf("dfleet-console-%s-%s", host, uuid.NewString()[:8])
	}
	return nil
}

func (o *ConsoleOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.CatalogOptions.Validate()...)
	errs = append(errs, o.DiscoveryOptions.Validate()...)
	errs = append(errs, o.OrchestratorOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)

	return utilerrors.NewAggregate(errs)
}

func (o *ConsoleOptions) LogOptions() *log.Options {
	return o.Log
}

// Config is everything the console needs to build an orchestrator.
type Config struct {
	Catalog      catalog.Config
	Orchestrator orchestrator.Config

	// MQTT is nil when outcome reporting is off.
	MQTT      *mqtt.ClientConfig
	TopicRoot string
}

func (o *ConsoleOptions) Config() (*Config, error) {
	d := o.DiscoveryOptions
	orch := o.OrchestratorOptions

	cfg := &Config{
		Catalog: catalog.Config{
			BaseURL: o.CatalogOptions.BaseURL,
			TTL:     o.CatalogOptions.TTL,
			Timeout: o.CatalogOptions.Timeout,
		},
		Orchestrator: orchestrator.Config{
			Scanner: discovery.New(discovery.Config{
				AgentPort:    d.AgentPort,
				Concurrency:  d.Concurrency,
				PingTimeout:  d.PingTimeout,
				ProbeTimeout: d.ProbeTimeout,
				CIDR:         d.CIDR,
			}),
			Client:       orchestrator.NewHTTPNodeClient(d.AgentPort, orch.InventoryTimeout, orch.InstallTimeout),
			DevicePacing: pacing(orch.DevicePacing),
			NodePacing:   pacing(orch.NodePacing),
		},
	}

	if o.MqttOptions.Enabled() {
		cfg.MQTT = o.MqttOptions.ToClientConfig()
		cfg.TopicRoot = o.MqttOptions.TopicRoot
	}
	return cfg, nil
}

// pacing maps an explicit zero to "no delay"; the orchestrator reads zero as its default.
func pacing(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
