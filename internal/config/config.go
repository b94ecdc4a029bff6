// Package config handles configuration loading for the EFILE core.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like the retention encryption key and transmitter credentials to be
// injected at runtime.
//
// # Configuration Sections
//
//   - efile: environment selector (CERT or PROD) and per-environment
//     transmitter profiles (software id, software version, transmitter id,
//     endpoint URL)
//   - transmit: per-attempt timeout, attempt ceiling, backoff pacing, and
//     circuit breaker tuning
//   - retention: consent artifact retention (enabled flag, encryption key
//     material, secondary artifact flag)
//   - storage: SQLite database path for durable state
//   - features: XML transmission path versus legacy JSON path
//
// # Example Configuration
//
//	efile:
//	  environment: CERT
//	  cert:
//	    softwareId: TAXAPP-CERT
//	    transmitterId: "900000"
//	    endpoint: https://cert.efile.example.ca/intake
//	  prod:
//	    softwareId: TAXAPP-PROD
//	    transmitterId: "900001"
//	    endpoint: ${EFILE_ENDPOINT_PROD}
//	  softwareVersion: 0.0.3
//
//	retention:
//	  enabled: true
//	  key: ${T183_CRYPTO_KEY}
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Efile     EfileConfig     `yaml:"efile"`
	Transmit  TransmitConfig  `yaml:"transmit"`
	Retention RetentionConfig `yaml:"retention"`
	Storage   StorageConfig   `yaml:"storage"`
	Features  FeatureConfig   `yaml:"features"`
}

// EfileConfig holds the environment selector and per-environment profiles
type EfileConfig struct {
	// Environment selects the active profile: CERT or PROD
	Environment     string        `yaml:"environment"`
	SoftwareVersion string        `yaml:"softwareVersion"`
	Cert            ProfileConfig `yaml:"cert"`
	Prod            ProfileConfig `yaml:"prod"`
}

// ProfileConfig identifies the transmitter for one environment
type ProfileConfig struct {
	SoftwareID    string `yaml:"softwareId"`
	TransmitterID string `yaml:"transmitterId"`
	Endpoint      string `yaml:"endpoint"`
}

// TransmitConfig holds delivery resilience tuning
type TransmitConfig struct {
	// Timeout bounds each network attempt
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts is the retry ceiling, including the first try
	MaxAttempts int `yaml:"maxAttempts"`
	// BackoffBase is the delay before the second attempt
	BackoffBase time.Duration `yaml:"backoffBase"`
	// BackoffCap bounds the unjittered delay
	BackoffCap time.Duration `yaml:"backoffCap"`
	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit breaker
	BreakerThreshold int `yaml:"breakerThreshold"`
	// BreakerCooldown is how long the breaker stays open
	BreakerCooldown time.Duration `yaml:"breakerCooldown"`
}

// RetentionConfig holds consent artifact retention settings
type RetentionConfig struct {
	Enabled bool `yaml:"enabled"`
	// Key is the symmetric key material for at-rest encryption. Required
	// whenever Enabled is true; there is no plaintext fallback.
	Key string `yaml:"key"`
	// SecondaryArtifacts enables retention of the summary artifact kind
	// alongside the consent document
	SecondaryArtifacts bool `yaml:"secondaryArtifacts"`
}

// StorageConfig holds durable-state settings
type StorageConfig struct {
	// Path is the SQLite database file holding the reference sequence,
	// digest ledger, retention records, and attempt audit
	Path string `yaml:"path"`
}

// FeatureConfig gates optional behavior
type FeatureConfig struct {
	// XMLTransmission enables the T619 XML path; when false the legacy
	// JSON path is used
	XMLTransmission bool `yaml:"xmlTransmission"`
	// Transmit2025 opens the not-yet-certified 2025 tax year
	Transmit2025 bool `yaml:"transmit2025"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Efile.Environment == "" {
		c.Efile.Environment = "CERT"
	}
	if c.Efile.SoftwareVersion == "" {
		c.Efile.SoftwareVersion = "0.0.3"
	}
	if c.Efile.Cert.SoftwareID == "" {
		c.Efile.Cert.SoftwareID = "TAXAPP-CERT"
	}
	if c.Efile.Cert.TransmitterID == "" {
		c.Efile.Cert.TransmitterID = "900000"
	}
	if c.Efile.Prod.SoftwareID == "" {
		c.Efile.Prod.SoftwareID = "TAXAPP-PROD"
	}
	if c.Efile.Prod.TransmitterID == "" {
		c.Efile.Prod.TransmitterID = "900001"
	}
	if c.Transmit.Timeout == 0 {
		c.Transmit.Timeout = 15 * time.Second
	}
	if c.Transmit.MaxAttempts == 0 {
		c.Transmit.MaxAttempts = 3
	}
	if c.Transmit.BackoffBase == 0 {
		c.Transmit.BackoffBase = 2 * time.Second
	}
	if c.Transmit.BackoffCap == 0 {
		c.Transmit.BackoffCap = 60 * time.Second
	}
	if c.Transmit.BreakerThreshold == 0 {
		c.Transmit.BreakerThreshold = 5
	}
	if c.Transmit.BreakerCooldown == 0 {
		c.Transmit.BreakerCooldown = 60 * time.Second
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "efile.db"
	}
}

func (c *Config) validate() error {
	if c.Efile.Environment != "CERT" && c.Efile.Environment != "PROD" {
		return fmt.Errorf("efile.environment must be CERT or PROD, got %q", c.Efile.Environment)
	}
	if c.Retention.Enabled && c.Retention.Key == "" {
		return fmt.Errorf("retention.key is required when retention is enabled")
	}
	if c.Transmit.MaxAttempts < 1 {
		return fmt.Errorf("transmit.maxAttempts must be at least 1")
	}
	return nil
}

// ActiveProfile returns the profile for the configured environment.
func (c *Config) ActiveProfile() ProfileConfig {
	if c.Efile.Environment == "PROD" {
		return c.Efile.Prod
	}
	return c.Efile.Cert
}
