package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ClientConfig describes one broker connection. pkg/options builds it from the --mqtt.* flags.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// KeepAlive is the ping interval in seconds, 60 when zero.
	KeepAlive uint16

	// ConnectTimeout for each connection attempt. Default is 5s.
	ConnectTimeout time.Duration

	// CleanStart discards any session the broker kept for ClientID. Watchers that must not miss
	// outcomes while offline set it to false together with a SessionExpiry.
	CleanStart bool

	// SessionExpiry in seconds; 0 ends the session with the connection.
	SessionExpiry uint32

	// InsecureSkipVerify disables TLS certificate verification for ssl:// and tls:// brokers.
	InsecureSkipVerify bool
}

// setDefaultConfig fills the zero durations NewClient cannot run with.
func setDefaultConfig(cfg *ClientConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}
}

// Validate reports the first setting that would make every connection attempt fail.
func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("broker url %q has no host", c.BrokerURL)
	}
	if c.ClientID == "" {
		return errors.New("client id is required")
	}
	return nil
}
