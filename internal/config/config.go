// Package config defines the application configuration: ledger paths, the
// history database, pipeline tuning, and the configured import sources.
package config

import (
	"fmt"
	"regexp"

	"github.com/spf13/viper"

	"github.com/beanflow/beanflow/internal/common"
)

// Defaults applied when the config file leaves a key unset.
const (
	DefaultWindowDays      = 7
	DefaultConfidenceFloor = 0.55
	DefaultSourceRegex     = `^(Assets|Liabilities):`
	DefaultCategoryRegex   = `^(Expenses|Income):`
	DefaultHistoryDB       = "~/.local/share/beanflow/history.db"
)

// SourceConfig binds one import source to a parser format and a ledger
// account.
type SourceConfig struct {
	Name     string   `mapstructure:"name"`
	Format   string   `mapstructure:"format"`
	Account  string   `mapstructure:"account"`
	Currency string   `mapstructure:"currency"`
	Hooks    []string `mapstructure:"hooks"`
}

// Config is the full application configuration.
type Config struct {
	Ledger struct {
		File         string `mapstructure:"file"`
		FallbackFile string `mapstructure:"fallback_file"`
	} `mapstructure:"ledger"`

	History struct {
		DB string `mapstructure:"db"`
	} `mapstructure:"history"`

	Dedup struct {
		WindowDays int `mapstructure:"window_days"`
	} `mapstructure:"dedup"`

	Classifier struct {
		ConfidenceFloor float64 `mapstructure:"confidence_floor"`
	} `mapstructure:"classifier"`

	Accounts struct {
		SourceRegex   string `mapstructure:"source_regex"`
		CategoryRegex string `mapstructure:"category_regex"`
	} `mapstructure:"accounts"`

	Sources []SourceConfig `mapstructure:"sources"`

	sourceRe   *regexp.Regexp
	categoryRe *regexp.Regexp
}

// SetDefaults registers default values on a viper instance. Call before
// reading the config file so unset keys resolve to sane values.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("history.db", DefaultHistoryDB)
	v.SetDefault("dedup.window_days", DefaultWindowDays)
	v.SetDefault("classifier.confidence_floor", DefaultConfidenceFloor)
	v.SetDefault("accounts.source_regex", DefaultSourceRegex)
	v.SetDefault("accounts.category_regex", DefaultCategoryRegex)
}

// Load unmarshals and validates the configuration from a viper instance.
// File paths come back with ~ and environment variables expanded.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Ledger.File = ExpandPath(cfg.Ledger.File)
	cfg.Ledger.FallbackFile = ExpandPath(cfg.Ledger.FallbackFile)
	cfg.History.DB = ExpandPath(cfg.History.DB)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and compiles the account regexes.
func (c *Config) Validate() error {
	if c.Ledger.File == "" {
		return fmt.Errorf("ledger.file: %w", common.ErrMissingConfig)
	}
	if c.History.DB == "" {
		return fmt.Errorf("history.db: %w", common.ErrMissingConfig)
	}
	if c.Dedup.WindowDays < 0 {
		return fmt.Errorf("dedup.window_days must not be negative: %w", common.ErrInvalidConfig)
	}
	if c.Classifier.ConfidenceFloor <= 0 || c.Classifier.ConfidenceFloor > 1 {
		return fmt.Errorf("classifier.confidence_floor must be in (0, 1]: %w", common.ErrInvalidConfig)
	}

	var err error
	if c.sourceRe, err = regexp.Compile(c.Accounts.SourceRegex); err != nil {
		return fmt.Errorf("accounts.source_regex: %w", common.ErrInvalidConfig)
	}
	if c.categoryRe, err = regexp.Compile(c.Accounts.CategoryRegex); err != nil {
		return fmt.Errorf("accounts.category_regex: %w", common.ErrInvalidConfig)
	}

	seen := make(map[string]bool)
	for i, source := range c.Sources {
		if source.Name == "" || source.Format == "" || source.Account == "" || source.Currency == "" {
			return fmt.Errorf("sources[%d]: name, format, account and currency are required: %w",
				i, common.ErrInvalidConfig)
		}
		if seen[source.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name %q: %w",
				i, source.Name, common.ErrInvalidConfig)
		}
		seen[source.Name] = true
		if !c.sourceRe.MatchString(source.Account) {
			return fmt.Errorf("sources[%d]: account %q does not match accounts.source_regex: %w",
				i, source.Account, common.ErrInvalidConfig)
		}
	}
	return nil
}

// SourceRe returns the compiled source-account regex. Valid after Validate.
func (c *Config) SourceRe() *regexp.Regexp { return c.sourceRe }

// CategoryRe returns the compiled category-account regex. Valid after
// Validate.
func (c *Config) CategoryRe() *regexp.Regexp { return c.categoryRe }

// FindSource looks up a configured source by name.
func (c *Config) FindSource(name string) (SourceConfig, bool) {
	for _, source := range c.Sources {
		if source.Name == name {
			return source, true
		}
	}
	return SourceConfig{}, false
}
