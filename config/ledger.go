package config

import (
	"fmt"
	"time"

	"simplehash/ledger"
)

// AuthConfig selects how the ledger bearer token is obtained.
type AuthConfig struct {
	TokenFile        string `yaml:"token_file" env:"TOKEN_FILE"`
	ClientID         string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecretFile string `yaml:"client_secret_file" env:"CLIENT_SECRET_FILE"`
}

// Credentials converts the auth section for ledger.TokenSource.
func (c AuthConfig) Credentials() ledger.Credentials {
	return ledger.Credentials{
		TokenFile:        c.TokenFile,
		ClientID:         c.ClientID,
		ClientSecretFile: c.ClientSecretFile,
	}
}

// LedgerConfig describes the ledger events API.
type LedgerConfig struct {
	FQDN              string        `yaml:"fqdn" env:"FQDN"`
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	PageSize          int           `yaml:"page_size" env:"PAGE_SIZE"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int           `yaml:"burst" env:"BURST"`

	Auth AuthConfig `yaml:"auth" envPrefix:"AUTH_"`
}

// SetDefaults fills unset ledger settings.
func (c *LedgerConfig) SetDefaults() {
	if c.FQDN == "" && c.BaseURL == "" {
		c.FQDN = ledger.DefaultFQDN
		fmt.Printf("Warning: ledger.fqdn not set, defaulting to %s\n", c.FQDN)
	}
	if c.PageSize <= 0 {
		c.PageSize = ledger.DefaultPageSize
		fmt.Printf("Warning: ledger.page_size not set or invalid, defaulting to %d\n", c.PageSize)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
		fmt.Printf("Warning: ledger.request_timeout not set, defaulting to %v\n", c.RequestTimeout)
	}
}

// Validate checks that some form of authentication is configured.
func (c *LedgerConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("ledger requests_per_second cannot be negative")
	}
	if c.Auth.TokenFile == "" && (c.Auth.ClientID == "" || c.Auth.ClientSecretFile == "") {
		return fmt.Errorf("ledger auth: set token_file, or both client_id and client_secret_file")
	}
	return nil
}

// ClientConfig converts the section for ledger.NewClient.
func (c *LedgerConfig) ClientConfig() ledger.Config {
	return ledger.Config{
		FQDN:              c.FQDN,
		BaseURL:           c.BaseURL,
		PageSize:          c.PageSize,
		RequestTimeout:    c.RequestTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}
