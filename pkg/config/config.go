// Package config holds the run configuration for the sync and its
// validation. Values come from CLI flags with environment fallbacks; nothing
// is read from files and nothing is persisted.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/azsync/azsync/pkg/source"
)

// Environment variables consulted when the matching flag is unset.
const (
	EnvNetBoxURL   = "NETBOX_URL"
	EnvNetBoxToken = "NETBOX_TOKEN"
)

// Config is the full configuration for one sync run.
type Config struct {
	// NetBoxURL is the base URL of the target inventory system.
	NetBoxURL string `validate:"required,url"`

	// NetBoxToken is the API token for the target inventory system.
	NetBoxToken string `validate:"required"`

	// AuthMode selects the cloud authentication mode.
	AuthMode source.AuthMode `validate:"oneof=default interactive"`

	// SubscriptionID limits the run to a single account when set.
	SubscriptionID string

	// MaxParallel bounds concurrent writes against the target store within
	// one reconciliation phase.
	MaxParallel int `validate:"min=1"`

	// Timeout is the wall-clock budget for the whole run. When exceeded the
	// run stops, keeps the writes already applied, and reports the rest as
	// incomplete.
	Timeout time.Duration `validate:"min=0"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		AuthMode:    source.AuthModeDefault,
		MaxParallel: 4,
		Timeout:     30 * time.Minute,
	}
}

// ApplyEnv fills unset credential fields from the environment, matching the
// original CLI contract.
func (c *Config) ApplyEnv() {
	if c.NetBoxURL == "" {
		c.NetBoxURL = os.Getenv(EnvNetBoxURL)
	}
	if c.NetBoxToken == "" {
		c.NetBoxToken = os.Getenv(EnvNetBoxToken)
	}
}

// Validate checks the configuration and returns a descriptive error on the
// first problem found.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return fmt.Errorf("invalid configuration: field %s failed %q", errs[0].Field(), errs[0].Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
