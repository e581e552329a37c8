// Package config provides configuration loading and validation for the freelaudit pipeline.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrNoLanguages         = errors.New("at least one tracked language is required")
	ErrInvalidPages        = errors.New("marketplace page limit must be positive")
	ErrInvalidQuota        = errors.New("fetch quota must be positive")
	ErrInvalidMaxAge       = errors.New("fetch max age must be positive")
	ErrInvalidWorkers      = errors.New("sonar workers must be positive")
	ErrInvalidRetry        = errors.New("sonar retry attempts must not be negative")
	ErrInvalidPageSize     = errors.New("sonar page size must be between 1 and 500")
	ErrInvalidCacheSize    = errors.New("github language cache size must be positive")
	ErrIncompleteStorage   = errors.New("storage is enabled but endpoint, bucket or credentials are missing")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrMissingMarketplace  = errors.New("marketplace base url is required")
	ErrMissingSonarBaseURL = errors.New("sonar base url is required")
)

const (
	envPrefix      = "FREELAUDIT"
	configName     = ".freelaudit"
	maxSonarPage   = 500
	redactedSecret = "***"
)

// Config holds every setting the pipeline jobs read. It is loaded once and
// passed to each job at start.
type Config struct {
	Languages   []string          `mapstructure:"languages"   yaml:"languages"`
	Paths       PathsConfig       `mapstructure:"paths"       yaml:"paths"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace" yaml:"marketplace"`
	GitHub      GitHubConfig      `mapstructure:"github"      yaml:"github"`
	Fetch       FetchConfig       `mapstructure:"fetch"       yaml:"fetch"`
	Sonar       SonarConfig       `mapstructure:"sonar"       yaml:"sonar"`
	Storage     StorageConfig     `mapstructure:"storage"     yaml:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"     yaml:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"   yaml:"telemetry"`
}

// PathsConfig locates the on-disk artifacts shared between jobs.
type PathsConfig struct {
	Profiles string `mapstructure:"profiles" yaml:"profiles"`
	Clones   string `mapstructure:"clones"   yaml:"clones"`
}

// MarketplaceConfig drives the profile collector.
type MarketplaceConfig struct {
	BaseURL      string        `mapstructure:"base_url"      yaml:"base_url"`
	UserAgent    string        `mapstructure:"user_agent"    yaml:"user_agent"`
	Languages    []string      `mapstructure:"languages"     yaml:"languages"`
	Technologies []string      `mapstructure:"technologies"  yaml:"technologies"`
	PageDelay    time.Duration `mapstructure:"page_delay"    yaml:"page_delay"`
	DetailsDelay time.Duration `mapstructure:"details_delay" yaml:"details_delay"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	Pages        int           `mapstructure:"pages"         yaml:"pages"`
}

// GitHubConfig configures the GitHub REST client.
type GitHubConfig struct {
	BaseURL           string        `mapstructure:"base_url"            yaml:"base_url"`
	Token             string        `mapstructure:"token"               yaml:"token"`
	Timeout           time.Duration `mapstructure:"timeout"             yaml:"timeout"`
	LanguageCacheSize int           `mapstructure:"language_cache_size" yaml:"language_cache_size"`
}

// FetchConfig drives the repository fetcher.
type FetchConfig struct {
	LogFile     string        `mapstructure:"log_file"     yaml:"log_file"`
	SummaryFile string        `mapstructure:"summary_file" yaml:"summary_file"`
	MaxAge      time.Duration `mapstructure:"max_age"      yaml:"max_age"`
	Quota       int           `mapstructure:"quota"        yaml:"quota"`
}

// SonarConfig drives the quality scanner.
type SonarConfig struct {
	BaseURL        string        `mapstructure:"base_url"        yaml:"base_url"`
	Token          string        `mapstructure:"token"           yaml:"token"`
	Scanner        string        `mapstructure:"scanner"         yaml:"scanner"`
	Inclusions     []string      `mapstructure:"inclusions"      yaml:"inclusions"`
	Exclusions     []string      `mapstructure:"exclusions"      yaml:"exclusions"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"    yaml:"settle_delay"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"   yaml:"retry_backoff"`
	Timeout        time.Duration `mapstructure:"timeout"         yaml:"timeout"`
	Workers        int           `mapstructure:"workers"         yaml:"workers"`
	RetryAttempts  int           `mapstructure:"retry_attempts"  yaml:"retry_attempts"`
	PageSize       int           `mapstructure:"page_size"       yaml:"page_size"`
	SkipRegistered bool          `mapstructure:"skip_registered" yaml:"skip_registered"`
}

// StorageConfig configures optional report publishing to an S3-compatible bucket.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"   yaml:"endpoint"`
	Region    string `mapstructure:"region"     yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket"     yaml:"bucket"`
	Prefix    string `mapstructure:"prefix"     yaml:"prefix"`
	Enabled   bool   `mapstructure:"enabled"    yaml:"enabled"`
	UseSSL    bool   `mapstructure:"use_ssl"    yaml:"use_ssl"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json"  yaml:"json"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"  yaml:"otlp_headers"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for .freelaudit.yaml in the working directory
// and the home directory; a missing file is not an error in that case.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")

		home, homeErr := os.UserHomeDir()
		if homeErr == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	// Well-known token variables are honoured alongside the prefixed ones.
	bindErr := errors.Join(
		viperCfg.BindEnv("github.token", envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"),
		viperCfg.BindEnv("sonar.token", envPrefix+"_SONAR_TOKEN", "SONAR_TOKEN"),
	)
	if bindErr != nil {
		return nil, fmt.Errorf("bind environment: %w", bindErr)
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	viperCfg := viper.New()
	applyDefaults(viperCfg)

	var cfg Config

	// Defaults are static values of the right types; decoding cannot fail.
	_ = viperCfg.Unmarshal(&cfg)

	return &cfg
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("languages", DefaultLanguages)

	viperCfg.SetDefault("paths.profiles", DefaultProfilesPath)
	viperCfg.SetDefault("paths.clones", DefaultClonesRoot)

	viperCfg.SetDefault("marketplace.base_url", DefaultMarketplaceBaseURL)
	viperCfg.SetDefault("marketplace.user_agent", DefaultUserAgent)
	viperCfg.SetDefault("marketplace.languages", DefaultMarketplaceLanguages)
	viperCfg.SetDefault("marketplace.technologies", DefaultMarketplaceTechnologies)
	viperCfg.SetDefault("marketplace.pages", DefaultMarketplacePages)
	viperCfg.SetDefault("marketplace.page_delay", DefaultPageDelay)
	viperCfg.SetDefault("marketplace.details_delay", DefaultDetailsDelay)
	viperCfg.SetDefault("marketplace.timeout", DefaultHTTPTimeout)

	viperCfg.SetDefault("github.base_url", DefaultGitHubBaseURL)
	viperCfg.SetDefault("github.token", "")
	viperCfg.SetDefault("github.timeout", DefaultHTTPTimeout)
	viperCfg.SetDefault("github.language_cache_size", DefaultLanguageCacheSize)

	viperCfg.SetDefault("fetch.quota", DefaultFetchQuota)
	viperCfg.SetDefault("fetch.max_age", DefaultFetchMaxAge)
	viperCfg.SetDefault("fetch.log_file", DefaultFetchLogFile)
	viperCfg.SetDefault("fetch.summary_file", DefaultSummaryFile)

	viperCfg.SetDefault("sonar.base_url", DefaultSonarBaseURL)
	viperCfg.SetDefault("sonar.token", "")
	viperCfg.SetDefault("sonar.scanner", DefaultSonarScanner)
	viperCfg.SetDefault("sonar.inclusions", DefaultSonarInclusions)
	viperCfg.SetDefault("sonar.exclusions", DefaultSonarExclusions)
	viperCfg.SetDefault("sonar.workers", DefaultSonarWorkers)
	viperCfg.SetDefault("sonar.settle_delay", DefaultSonarSettleDelay)
	viperCfg.SetDefault("sonar.retry_attempts", DefaultSonarRetryAttempts)
	viperCfg.SetDefault("sonar.retry_backoff", DefaultSonarRetryBackoff)
	viperCfg.SetDefault("sonar.timeout", DefaultHTTPTimeout)
	viperCfg.SetDefault("sonar.page_size", DefaultSonarPageSize)
	viperCfg.SetDefault("sonar.skip_registered", false)

	viperCfg.SetDefault("storage.enabled", false)
	viperCfg.SetDefault("storage.endpoint", "")
	viperCfg.SetDefault("storage.region", DefaultStorageRegion)
	viperCfg.SetDefault("storage.access_key", "")
	viperCfg.SetDefault("storage.secret_key", "")
	viperCfg.SetDefault("storage.bucket", DefaultStorageBucket)
	viperCfg.SetDefault("storage.prefix", DefaultStoragePrefix)
	viperCfg.SetDefault("storage.use_ssl", true)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", false)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
}

// Validate checks the configuration for values no job can run with.
func (c *Config) Validate() error {
	if len(c.Languages) == 0 {
		return ErrNoLanguages
	}

	if c.Marketplace.BaseURL == "" {
		return ErrMissingMarketplace
	}

	if c.Marketplace.Pages <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPages, c.Marketplace.Pages)
	}

	if c.GitHub.LanguageCacheSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.GitHub.LanguageCacheSize)
	}

	if c.Fetch.Quota <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuota, c.Fetch.Quota)
	}

	if c.Fetch.MaxAge <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidMaxAge, c.Fetch.MaxAge)
	}

	if c.Sonar.BaseURL == "" {
		return ErrMissingSonarBaseURL
	}

	if c.Sonar.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Sonar.Workers)
	}

	if c.Sonar.RetryAttempts < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetry, c.Sonar.RetryAttempts)
	}

	if c.Sonar.PageSize <= 0 || c.Sonar.PageSize > maxSonarPage {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, c.Sonar.PageSize)
	}

	if c.Storage.Enabled && (c.Storage.Endpoint == "" || c.Storage.Bucket == "" ||
		c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return ErrIncompleteStorage
	}

	_, levelErr := c.Logging.SlogLevel()
	if levelErr != nil {
		return levelErr
	}

	return nil
}

// SlogLevel parses the configured level name.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(l.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}

// Redacted returns a copy with every secret replaced, safe to print.
func (c *Config) Redacted() Config {
	out := *c

	out.GitHub.Token = redact(out.GitHub.Token)
	out.Sonar.Token = redact(out.Sonar.Token)
	out.Storage.AccessKey = redact(out.Storage.AccessKey)
	out.Storage.SecretKey = redact(out.Storage.SecretKey)
	out.Telemetry.OTLPHeaders = redact(out.Telemetry.OTLPHeaders)

	return out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}

	return redactedSecret
}
