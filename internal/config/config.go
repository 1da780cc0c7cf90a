// Package config loads and validates the hoover configuration. The rest
// of the program consumes a fully-validated Config; nothing else parses
// files or environment variables.
package config

import (
	"os"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"harbor-hoover/internal/types"
)

type HarborConfig struct {
	URL        string `mapstructure:"url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Project    string `mapstructure:"project"`
	CACertFile string `mapstructure:"ca_cert_file"`
}

type HTTPConfig struct {
	TimeoutSec   int `mapstructure:"timeout_sec"`
	Retries      int `mapstructure:"retries"`
	RetryDelayMs int `mapstructure:"retry_delay_ms"`
}

type RetentionConfig struct {
	DaysToKeep    int              `mapstructure:"days_to_keep"`
	ProtectedTags []string         `mapstructure:"protected_tags"`
	Exclusions    types.Exclusions `mapstructure:"exclusions"`
}

type ReportConfig struct {
	File string `mapstructure:"file"`
}

type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type Config struct {
	Harbor     HarborConfig    `mapstructure:"harbor"`
	Retention  RetentionConfig `mapstructure:"retention"`
	HTTP       HTTPConfig      `mapstructure:"http"`
	MaxWorkers int             `mapstructure:"max_workers"`
	DryRun     bool            `mapstructure:"dry_run"`
	PageSize   int             `mapstructure:"page_size"`
	Report     ReportConfig    `mapstructure:"report"`
	Notify     NotifyConfig    `mapstructure:"notify"`
}

// SetDefaults registers the documented defaults on a viper instance
// before any file or flag is read.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("retention.days_to_keep", 2)
	v.SetDefault("retention.protected_tags", []string{"latest", "stable", "prod"})
	v.SetDefault("max_workers", 10)
	v.SetDefault("dry_run", false)
	v.SetDefault("page_size", 100)
	v.SetDefault("http.timeout_sec", 30)
	v.SetDefault("http.retries", 3)
	v.SetDefault("http.retry_delay_ms", 1000)
	v.SetDefault("report.file", "reports/cleanup_report.html")
}

// Load unmarshals the viper state into a typed Config and normalizes the
// numeric bounds. Callers apply their flag overrides and then run
// Validate once, before any network access.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse configuration").
			WithCause(err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.MaxWorkers < 1 {
		c.MaxWorkers = 1
	}
	if c.PageSize < 1 {
		c.PageSize = 100
	}
	if c.HTTP.TimeoutSec < 1 {
		c.HTTP.TimeoutSec = 30
	}
	if c.HTTP.Retries < 1 {
		c.HTTP.Retries = 3
	}
	if c.HTTP.RetryDelayMs < 1 {
		c.HTTP.RetryDelayMs = 1000
	}
}

// Validate rejects configurations that cannot possibly produce a working
// run. Credentials and the registry URL are required; everything else has
// a usable default.
func (c Config) Validate() error {
	if c.Harbor.URL == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("harbor.url must be set")
	}
	if c.Harbor.Username == "" || c.Harbor.Password == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("harbor.username and harbor.password must be set")
	}
	if c.Harbor.Project == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("harbor.project must be set")
	}
	if c.Retention.DaysToKeep < 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("retention.days_to_keep must not be negative")
	}
	return nil
}

// Policy builds the immutable policy snapshot for one run.
func (c Config) Policy(now time.Time) types.RetentionPolicy {
	return types.RetentionPolicy{
		CutoffTime:    now.AddDate(0, 0, -c.Retention.DaysToKeep),
		ProtectedTags: c.Retention.ProtectedTags,
		Exclusions:    c.Retention.Exclusions,
		DryRun:        c.DryRun,
	}
}

// LoadExclusionsFile merges a standalone YAML exclusions document into
// the retention section. Entries add to, rather than replace, whatever
// the main configuration already lists.
func (c *Config) LoadExclusionsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read exclusions file").
			WithCause(err)
	}
	var exclusions types.Exclusions
	if err := yaml.Unmarshal(data, &exclusions); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse exclusions file").
			WithCause(err)
	}
	c.Retention.Exclusions.Repositories = append(c.Retention.Exclusions.Repositories, exclusions.Repositories...)
	c.Retention.Exclusions.TagPatterns = append(c.Retention.Exclusions.TagPatterns, exclusions.TagPatterns...)
	return nil
}
