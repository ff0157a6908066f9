package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/driverfleet/driverfleet/internal/agent"
	"github.com/driverfleet/driverfleet/internal/deploy"
	"github.com/driverfleet/driverfleet/pkg/app"
	"github.com/driverfleet/driverfleet/pkg/log"
	genericoptions "github.com/driverfleet/driverfleet/pkg/options"
)

type AgentOptions struct {
	HttpOptions   *genericoptions.HttpOptions   `json:"http" mapstructure:"http"`
	DeployOptions *genericoptions.DeployOptions `json:"deploy" mapstructure:"deploy"`
	Log           *log.Options                  `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*AgentOptions)(nil)

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		HttpOptions:   genericoptions.NewHttpOptions(),
		DeployOptions: genericoptions.NewDeployOptions(),
		Log:           log.NewOptions(),
	}
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}

	o.HttpOptions.AddFlags(fss.FlagSet("HTTP"))
	o.DeployOptions.AddFlags(fss.FlagSet("Deploy"))
	o.Log.AddFlags(fss.FlagSet("Log"))
	return fss
}

func (o *AgentOptions) Complete() error {
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.DeployOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)

	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) LogOptions() *log.Options {
	return o.Log
}

// Config detects the node identity and wires the install pipeline and device enumerator.
func (o *AgentOptions) Config() (*agent.Config, error) {
	id := agent.DetectIdentity()

	pipeline := deploy.New(deploy.Config{
		TempDir:         o.DeployOptions.TempDir,
		DownloadTimeout: o.DeployOptions.DownloadTimeout,
		NodeName:        id.Name,
	})

	return &agent.Config{
		Addr:              o.HttpOptions.Addr,
		ReadHeaderTimeout: o.HttpOptions.ReadHeaderTimeout,
		Version:           app.Version(),
		Identity:          id,
		Enumerator:        agent.NewEnumerator(o.DeployOptions.DevicesFile),
		Installer:         pipeline,
	}, nil
}
