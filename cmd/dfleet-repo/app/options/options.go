package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/driverfleet/driverfleet/internal/repository"
	"github.com/driverfleet/driverfleet/pkg/app"
	"github.com/driverfleet/driverfleet/pkg/log"
	genericoptions "github.com/driverfleet/driverfleet/pkg/options"
)

type RepoOptions struct {
	RepositoryOptions *genericoptions.RepositoryOptions `json:"repo" mapstructure:"repo"`
	S3Options         *genericoptions.S3Options         `json:"s3" mapstructure:"s3"`
	Log               *log.Options                      `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*RepoOptions)(nil)

func NewRepoOptions() *RepoOptions {
	return &RepoOptions{
		RepositoryOptions: genericoptions.NewRepositoryOptions(),
		S3Options:         genericoptions.NewS3Options(),
		Log:               log.NewOptions(),
	}
}

func (o *RepoOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}

	o.RepositoryOptions.AddFlags(fss.FlagSet("Repository"))
	o.S3Options.AddFlags(fss.FlagSet("S3"))
	o.Log.AddFlags(fss.FlagSet("Log"))
	return fss
}

func (o *RepoOptions) Complete() error {
	return nil
}

func (o *RepoOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.RepositoryOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)

	return utilerrors.NewAggregate(errs)
}

func (o *RepoOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *RepoOptions) Config() (*repository.Config, error) {
	cfg := &repository.Config{
		Dir:           o.RepositoryOptions.Dir,
		Addr:          o.RepositoryOptions.Addr,
		Watch:         o.RepositoryOptions.Watch,
		PresignExpiry: o.RepositoryOptions.PresignExpiry,
	}

	if o.S3Options.Enabled() {
		p, err := repository.NewMinIOPresigner(o.S3Options)
		if err != nil {
			return nil, err
		}
		cfg.Presigner = p
	}
	return cfg, nil
}
