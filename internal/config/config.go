// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

// Config is the top-level Topiq configuration.
type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Cache      CacheConfig               `mapstructure:"cache"`
	Resolution ResolutionConfig          `mapstructure:"resolution"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Populate   PopulateConfig            `mapstructure:"populate"`
	Resources  []string                  `mapstructure:"resources"`
}

// ServerConfig controls how the HTTP API listens.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig controls the cache lifecycle.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ResolutionConfig tunes the similarity decision thresholds.
type ResolutionConfig struct {
	ConfidentThreshold float64       `mapstructure:"confident_threshold"`
	AmbiguousThreshold float64       `mapstructure:"ambiguous_threshold"`
	ArbiterTimeout     time.Duration `mapstructure:"arbiter_timeout"`
}

// ProviderConfig holds credentials and endpoint for a model provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig selects the models used per role.
type ModelsConfig struct {
	Chat      string `mapstructure:"chat"`
	Embedding string `mapstructure:"embedding"`
}

// PopulateConfig tunes background alias population.
type PopulateConfig struct {
	MaxAliases int           `mapstructure:"max_aliases"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix TOPIQ_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", "127.0.0.1:8420")
	v.SetDefault("storage.path", "topiq.db")
	v.SetDefault("cache.ttl", "168h")
	v.SetDefault("cache.sweep_interval", "1h")
	v.SetDefault("resolution.confident_threshold", 0.70)
	v.SetDefault("resolution.ambiguous_threshold", 0.50)
	v.SetDefault("resolution.arbiter_timeout", "10s")
	v.SetDefault("models.chat", "gpt-4.1-mini")
	v.SetDefault("models.embedding", "text-embedding-3-small")
	v.SetDefault("populate.max_aliases", 12)
	v.SetDefault("populate.timeout", "2m")

	// Environment
	v.SetEnvPrefix("TOPIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, and
	// the provider block has no defaults. Bind its keys explicitly so
	// TOPIQ_PROVIDERS_OPENAI_API_KEY works without a config file.
	_ = v.BindEnv("providers.openai.api_key")
	_ = v.BindEnv("providers.openai.endpoint")

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, topiqerr.Errorf(topiqerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, topiqerr.Errorf(topiqerr.CodeConfigLoadReadFailure, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns
// every validation error found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateResolution()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validatePopulate()...)

	if c.Storage.Path == "" {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue, "config: storage.path must not be empty"))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateCache() []error {
	var errs []error

	if c.Cache.TTL <= 0 {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.SweepInterval <= 0 {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: cache.sweep_interval must be positive, got %s", c.Cache.SweepInterval))
	}

	return errs
}

func (c *Config) validateResolution() []error {
	var errs []error
	r := c.Resolution

	if r.ConfidentThreshold <= 0 || r.ConfidentThreshold > 1 {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: resolution.confident_threshold must be in (0, 1], got %g", r.ConfidentThreshold))
	}
	if r.AmbiguousThreshold <= 0 || r.AmbiguousThreshold > 1 {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: resolution.ambiguous_threshold must be in (0, 1], got %g", r.AmbiguousThreshold))
	}
	if r.AmbiguousThreshold >= r.ConfidentThreshold {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: resolution.ambiguous_threshold (%g) must be below confident_threshold (%g)",
			r.AmbiguousThreshold, r.ConfidentThreshold))
	}
	if r.ArbiterTimeout <= 0 {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: resolution.arbiter_timeout must be positive, got %s", r.ArbiterTimeout))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Chat == "" {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue, "config: models.chat must not be empty"))
	}
	if c.Models.Embedding == "" {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue, "config: models.embedding must not be empty"))
	}

	return errs
}

func (c *Config) validatePopulate() []error {
	var errs []error

	if c.Populate.MaxAliases <= 0 {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: populate.max_aliases must be positive, got %d", c.Populate.MaxAliases))
	}
	if c.Populate.Timeout <= 0 {
		errs = append(errs, topiqerr.Errorf(topiqerr.CodeConfigValidateInvalidValue,
			"config: populate.timeout must be positive, got %s", c.Populate.Timeout))
	}

	return errs
}

// OpenAI returns the OpenAI provider block, if configured.
func (c *Config) OpenAI() (ProviderConfig, bool) {
	p, ok := c.Providers["openai"]
	return p, ok
}
