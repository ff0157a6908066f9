package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RepositoryOptions)(nil)

// RepositoryOptions configures the driver repository server.
type RepositoryOptions struct {
	Dir           string        `json:"dir" mapstructure:"dir"`
	Addr          string        `json:"addr" mapstructure:"addr"`
	Watch         bool          `json:"watch" mapstructure:"watch"`
	PresignExpiry time.Duration `json:"presign-expiry" mapstructure:"presign-expiry"`
}

func NewRepositoryOptions() *RepositoryOptions {
	return &RepositoryOptions{
		Dir:           "Drivers",
		Addr:          "localhost:5000",
		Watch:         true,
		PresignExpiry: 15 * time.Minute,
	}
}

func (o *RepositoryOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.Dir == "" {
		errors = append(errors, fmt.Errorf("--repo.dir must not be empty"))
	}
	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}
	if o.PresignExpiry < time.Second {
		errors = append(errors, fmt.Errorf("--repo.presign-expiry must be at least 1s"))
	}

	return errors
}

func (o *RepositoryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Dir, "repo.dir", o.Dir, "Directory holding drivers.json and the package files.")
	fs.StringVar(&o.Addr, "repo.addr", o.Addr, "Address the repository listens on.")
	fs.BoolVar(&o.Watch, "repo.watch", o.Watch, "Log parse status whenever drivers.json changes.")
	fs.DurationVar(&o.PresignExpiry, "repo.presign-expiry", o.PresignExpiry, "Lifetime of presigned object storage links.")
}
