package config

import "time"

// Tracked language defaults.
var DefaultLanguages = []string{"javascript", "python", "php"}

// Path defaults.
const (
	DefaultProfilesPath = "workana_profiles.csv"
	DefaultClonesRoot   = "repos_v2"
)

// Marketplace defaults.
const (
	DefaultMarketplaceBaseURL = "https://www.workana.com"
	DefaultMarketplacePages   = 17
	DefaultPageDelay          = 3 * time.Second
	DefaultDetailsDelay       = 2 * time.Second
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Marketplace listing defaults.
var (
	DefaultMarketplaceLanguages    = []string{"en", "es", "pt", "fr", "ru", "it", "zc"}
	DefaultMarketplaceTechnologies = []string{"javascript", "python", "php"}
)

// GitHub defaults.
const (
	DefaultGitHubBaseURL     = "https://api.github.com"
	DefaultLanguageCacheSize = 1024
)

// Fetch defaults.
const (
	DefaultFetchQuota   = 5
	DefaultFetchMaxAge  = 5 * 365 * 24 * time.Hour
	DefaultFetchLogFile = "fetch_repos.txt"
	DefaultSummaryFile  = "collected_repos_report.xlsx"
)

// Sonar defaults.
const (
	DefaultSonarBaseURL       = "http://localhost:9001"
	DefaultSonarScanner       = "sonar-scanner"
	DefaultSonarWorkers       = 4
	DefaultSonarSettleDelay   = 10 * time.Second
	DefaultSonarRetryAttempts = 3
	DefaultSonarRetryBackoff  = 20 * time.Second
	DefaultSonarPageSize      = 500
)

// Sonar source filters.
var (
	DefaultSonarInclusions = []string{"**/*.js", "**/*.jsx", "**/*.php", "**/*.py"}
	DefaultSonarExclusions = []string{"**/node_modules/**", "**/vendor/**", "**/dist/**", "**/.git/**"}
)

// Storage defaults.
const (
	DefaultStorageRegion = "us-east-1"
	DefaultStorageBucket = "freelaudit-reports"
	DefaultStoragePrefix = "reports"
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
)
