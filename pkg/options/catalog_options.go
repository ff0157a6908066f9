package options

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*CatalogOptions)(nil)

// CatalogOptions configures where the console reads drivers.json and how long it keeps it.
type CatalogOptions struct {
	// BaseURL is the repository address; relative package URLs are resolved against it.
	BaseURL string        `json:"base-url" mapstructure:"base-url"`
	TTL     time.Duration `json:"ttl" mapstructure:"ttl"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

func NewCatalogOptions() *CatalogOptions {
	return &CatalogOptions{
		BaseURL: "http://localhost:5000",
		TTL:     5 * time.Minute,
		Timeout: 30 * time.Second,
	}
}

func (o *CatalogOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if u, err := url.Parse(o.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Errorf("--catalog.base-url %q must be an absolute http(s) url", o.BaseURL))
	}
	if o.TTL <= 0 {
		errors = append(errors, fmt.Errorf("--catalog.ttl must be positive"))
	}
	if o.Timeout <= 0 {
		errors = append(errors, fmt.Errorf("--catalog.timeout must be positive"))
	}

	return errors
}

func (o *CatalogOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BaseURL, "catalog.base-url", o.BaseURL, "Base URL of the driver repository serving drivers.json.")
	fs.DurationVar(&o.TTL, "catalog.ttl", o.TTL, "How long a fetched catalog snapshot is reused.")
	fs.DurationVar(&o.Timeout, "catalog.timeout", o.Timeout, "Timeout for fetching drivers.json.")
}
