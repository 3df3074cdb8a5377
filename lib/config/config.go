// Copyright 2026 The Meshseal Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for meshseal tools.
//
// Configuration is loaded from a single YAML file specified by:
//   - MESHSEAL_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery; this keeps trust
// configuration deterministic and auditable. The file may contain
// environment-specific sections (development, staging, production)
// that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meshseal-foundation/meshseal/lib/archive"
	"github.com/meshseal-foundation/meshseal/lib/sigchain"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for meshseal tools.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Realm is the trust boundary envelopes in this deployment claim.
	Realm string `yaml:"realm"`

	// Keystore configures key locations.
	Keystore KeystoreConfig `yaml:"keystore"`

	// Policy configures chain validation and anomaly thresholds.
	Policy PolicyConfig `yaml:"policy"`

	// Archive configures audit archive output.
	Archive ArchiveConfig `yaml:"archive"`

	// Per-environment overrides, applied after the base config loads.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can be overridden per
// environment.
type Overrides struct {
	Realm    string           `yaml:"realm,omitempty"`
	Keystore *KeystoreConfig  `yaml:"keystore,omitempty"`
	Policy   *PolicyOverrides `yaml:"policy,omitempty"`
	Archive  *ArchiveConfig   `yaml:"archive,omitempty"`
}

// PolicyOverrides mirrors PolicyConfig with pointer and nil-able
// fields, so an environment section can set a value to zero (disable
// min_signatures, clear trusted_nodes) distinctly from leaving it
// alone.
type PolicyOverrides struct {
	MinSignatures      *int     `yaml:"min_signatures,omitempty"`
	RequiredOperations []string `yaml:"required_operations,omitempty"`
	MinTrustedSigners  *int     `yaml:"min_trusted_signers,omitempty"`
	TrustedNodes       []string `yaml:"trusted_nodes,omitempty"`
	ClockSkew          *string  `yaml:"clock_skew,omitempty"`
	MaxHops            *int     `yaml:"max_hops,omitempty"`
}

// KeystoreConfig configures where runtime keys live.
type KeystoreConfig struct {
	// Dir is the keystore directory holding <runtime-id>.pub and
	// private key files.
	Dir string `yaml:"dir"`
}

// PolicyConfig configures chain signing policy and anomaly
// thresholds. ClockSkew is a duration string ("5s", "1m"); MaxHops
// zero means "use the default".
type PolicyConfig struct {
	MinSignatures      int      `yaml:"min_signatures"`
	RequiredOperations []string `yaml:"required_operations"`
	MinTrustedSigners  int      `yaml:"min_trusted_signers"`
	TrustedNodes       []string `yaml:"trusted_nodes"`
	ClockSkew          string   `yaml:"clock_skew"`
	MaxHops            int      `yaml:"max_hops"`
}

// ArchiveConfig configures audit archive output.
type ArchiveConfig struct {
	// Compression is one of "none", "lz4", "zstd".
	Compression string `yaml:"compression"`
}

// Default returns the default configuration. Defaults ensure every
// field has a sensible zero-value base before the file loads; the
// config file itself remains required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Policy: PolicyConfig{
			ClockSkew: sigchain.DefaultClockSkew.String(),
			MaxHops:   sigchain.DefaultMaxHops,
		},
		Archive: ArchiveConfig{
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the MESHSEAL_CONFIG environment
// variable. There are no fallbacks: if the variable is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("MESHSEAL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("MESHSEAL_CONFIG environment variable not set; " +
			"set it to the path of your meshseal.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies
// environment overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching the
// configured environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Realm != "" {
		c.Realm = overrides.Realm
	}
	if overrides.Keystore != nil && overrides.Keystore.Dir != "" {
		c.Keystore.Dir = overrides.Keystore.Dir
	}
	if overrides.Policy != nil {
		p := overrides.Policy
		if p.MinSignatures != nil {
			c.Policy.MinSignatures = *p.MinSignatures
		}
		if p.RequiredOperations != nil {
			c.Policy.RequiredOperations = p.RequiredOperations
		}
		if p.MinTrustedSigners != nil {
			c.Policy.MinTrustedSigners = *p.MinTrustedSigners
		}
		if p.TrustedNodes != nil {
			c.Policy.TrustedNodes = p.TrustedNodes
		}
		if p.ClockSkew != nil {
			c.Policy.ClockSkew = *p.ClockSkew
		}
		if p.MaxHops != nil {
			c.Policy.MaxHops = *p.MaxHops
		}
	}
	if overrides.Archive != nil && overrides.Archive.Compression != "" {
		c.Archive.Compression = overrides.Archive.Compression
	}
}

// Validate checks the configuration for errors, reporting all of
// them at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Realm == "" {
		errs = append(errs, fmt.Errorf("realm is required"))
	}
	if c.Keystore.Dir == "" {
		errs = append(errs, fmt.Errorf("keystore.dir is required"))
	}

	if _, err := time.ParseDuration(c.Policy.ClockSkew); err != nil {
		errs = append(errs, fmt.Errorf("policy.clock_skew: %w", err))
	}
	if c.Policy.MaxHops < 0 {
		errs = append(errs, fmt.Errorf("policy.max_hops must not be negative"))
	}
	for _, op := range c.Policy.RequiredOperations {
		switch sigchain.Operation(op) {
		case sigchain.OpSource, sigchain.OpRoute, sigchain.OpTransform, sigchain.OpDestination:
		default:
			errs = append(errs, fmt.Errorf("policy.required_operations: unknown operation %q", op))
		}
	}

	if _, err := archive.ParseCompression(c.Archive.Compression); err != nil {
		errs = append(errs, fmt.Errorf("archive.compression: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ChainPolicy converts the policy section into the sigchain policy
// type. Call only after Validate (or LoadFile, which validates).
func (c *Config) ChainPolicy() sigchain.Policy {
	skew, err := time.ParseDuration(c.Policy.ClockSkew)
	if err != nil {
		skew = sigchain.DefaultClockSkew
	}

	maxHops := c.Policy.MaxHops
	if maxHops == 0 {
		maxHops = sigchain.DefaultMaxHops
	}

	operations := make([]sigchain.Operation, 0, len(c.Policy.RequiredOperations))
	for _, op := range c.Policy.RequiredOperations {
		operations = append(operations, sigchain.Operation(op))
	}

	return sigchain.Policy{
		MinSignatures:      c.Policy.MinSignatures,
		RequiredOperations: operations,
		MinTrustedSigners:  c.Policy.MinTrustedSigners,
		TrustedNodes:       c.Policy.TrustedNodes,
		ClockSkew:          skew,
		MaxHops:            maxHops,
	}
}

// CompressionTag returns the archive compression tag. Call only after
// Validate.
func (c *Config) CompressionTag() archive.CompressionTag {
	tag, err := archive.ParseCompression(c.Archive.Compression)
	if err != nil {
		return archive.CompressionZstd
	}
	return tag
}
