package gena

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable spec.md §6 enumerates.
type Config struct {
	// AutoRenewMargin is how long before TIMEOUT a renewal is fired. Zero
	// disables auto-renew: subscriptions emit EventSubscriptionExpired
	// instead of being renewed.
	AutoRenewMargin time.Duration `yaml:"auto_renew_margin"`

	// MinSubSecs floors outgoing TIMEOUT requests below this value.
	MinSubSecs TimeoutSpec `yaml:"min_sub_secs"`

	// HTTPDefaultTimeout bounds every outbound SUBSCRIBE/UNSUBSCRIBE call.
	HTTPDefaultTimeout time.Duration `yaml:"http_default_timeout"`

	// LocalPortV4 / LocalPortV6 are the ports advertised in CALLBACK URLs.
	LocalPortV4 int `yaml:"local_port_v4"`
	LocalPortV6 int `yaml:"local_port_v6"`

	// UserAgent is sent as USER-AGENT on every outbound request.
	UserAgent string `yaml:"user_agent"`
}

// Defaults returns the historical UPnP SDK defaults.
func Defaults() Config {
	return Config{
		AutoRenewMargin:    10 * time.Second,
		MinSubSecs:         1800,
		HTTPDefaultTimeout: 30 * time.Second,
		LocalPortV4:        8058,
		LocalPortV6:        8058,
		UserAgent:          "GENA-Go/1.0 UPnP/1.0",
	}
}

// LoadConfig reads a YAML config file, starting from Defaults() so a
// partial file only overrides the fields it sets.
func LoadConfig(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("gena: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("gena: parse config: %w", err)
	}
	return cfg, nil
}

// configAlias mirrors Config's fields but with the duration fields typed as
// strings, so UnmarshalYAML can hand them to time.ParseDuration: time.Duration
// has no UnmarshalYAML/UnmarshalText of its own, so a plain scalar like "10s"
// would otherwise fail to decode into an int64-kinded field.
type configAlias struct {
	AutoRenewMargin    string      `yaml:"auto_renew_margin"`
	MinSubSecs         TimeoutSpec `yaml:"min_sub_secs"`
	HTTPDefaultTimeout string      `yaml:"http_default_timeout"`
	LocalPortV4        int         `yaml:"local_port_v4"`
	LocalPortV6        int         `yaml:"local_port_v6"`
	UserAgent          string      `yaml:"user_agent"`
}

// UnmarshalYAML decodes a partial document over c's existing field values
// (callers start from Defaults()), so a key absent from the document leaves
// its field untouched.
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	alias := configAlias{
		AutoRenewMargin:    c.AutoRenewMargin.String(),
		MinSubSecs:         c.MinSubSecs,
		HTTPDefaultTimeout: c.HTTPDefaultTimeout.String(),
		LocalPortV4:        c.LocalPortV4,
		LocalPortV6:        c.LocalPortV6,
		UserAgent:          c.UserAgent,
	}
	if err := unmarshal(&alias); err != nil {
		return err
	}

	autoRenewMargin, err := time.ParseDuration(alias.AutoRenewMargin)
	if err != nil {
		return fmt.Errorf("gena: auto_renew_margin: %w", err)
	}
	httpDefaultTimeout, err := time.ParseDuration(alias.HTTPDefaultTimeout)
	if err != nil {
		return fmt.Errorf("gena: http_default_timeout: %w", err)
	}

	c.AutoRenewMargin = autoRenewMargin
	c.MinSubSecs = alias.MinSubSecs
	c.HTTPDefaultTimeout = httpDefaultTimeout
	c.LocalPortV4 = alias.LocalPortV4
	c.LocalPortV6 = alias.LocalPortV6
	c.UserAgent = alias.UserAgent
	return nil
}

// AutoRenewDisabled reports whether AutoRenewMargin selects the
// compile-time-equivalent "no auto-renew" mode from spec.md §4.5 step 1.
func (c Config) AutoRenewDisabled() bool {
	return c.AutoRenewMargin <= 0
}
