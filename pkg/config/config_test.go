package config

import (
	"testing"
)

func validConfig() Config {
	c := Default()
	c.NetBoxURL = "https://netbox.example.com"
	c.NetBoxToken = "token"
	return c
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRequiresURL(t *testing.T) {
	c := validConfig()
	c.NetBoxURL = ""
	if err := c.Validate(); err == nil {
		t.Fatal("config without url accepted")
	}
}

func TestValidateRequiresToken(t *testing.T) {
	c := validConfig()
	c.NetBoxToken = ""
	if err := c.Validate(); err == nil {
		t.Fatal("config without token accepted")
	}
}

func TestValidateRejectsBadAuthMode(t *testing.T) {
	c := validConfig()
	c.AuthMode = "browser"
	if err := c.Validate(); err == nil {
		t.Fatal("config with unknown auth mode accepted")
	}
}

func TestApplyEnvFillsGapsOnly(t *testing.T) {
	t.Setenv(EnvNetBoxURL, "https://env.example.com")
	t.Setenv(EnvNetBoxToken, "env-token")

	c := Default()
	c.NetBoxToken = "flag-token"
	c.ApplyEnv()

	if c.NetBoxURL != "https://env.example.com" {
		t.Errorf("url not taken from environment: %q", c.NetBoxURL)
	}
	if c.NetBoxToken != "flag-token" {
		t.Errorf("flag value overridden by environment: %q", c.NetBoxToken)
	}
}
