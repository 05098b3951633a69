// Package config loads the site configuration from a YAML file with
// environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete odindex configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Drive   DriveConfig   `yaml:"drive"`
	Site    SiteConfig    `yaml:"site"`
	KV      KVConfig      `yaml:"kv"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// DriveConfig holds the Microsoft Graph drive endpoint configuration.
type DriveConfig struct {
	// APIEndpoint is the drive root of the Graph API, without trailing slash.
	APIEndpoint string `yaml:"api_endpoint"`

	Timeout time.Duration `yaml:"-"`
	// Raw string value for YAML unmarshaling.
	TimeoutRaw string `yaml:"timeout"`
}

// SiteConfig holds user-facing site behaviour.
type SiteConfig struct {
	// BaseDirectory is the drive subtree served as the index root.
	BaseDirectory string `yaml:"base_directory"`
	// MaxItems is the page size for folder listings and search results.
	MaxItems int `yaml:"max_items"`
	// ProtectedRoutes lists directory prefixes that require a password.
	// Each protected directory holds its shared secret in a .password file.
	ProtectedRoutes []string `yaml:"protected_routes"`
	// CacheControlHeader is the default edge caching policy for content
	// responses. Protected responses always override it with no-cache.
	CacheControlHeader string `yaml:"cache_control_header"`
}

// KVConfig holds the key-value store configuration.
type KVConfig struct {
	// Backend selects the store implementation: "memory" or "bolt".
	Backend string `yaml:"backend"`
	// Path is the database file location for the bolt backend.
	Path string `yaml:"path"`
	// Prefix namespaces every key, so one store instance can serve
	// multiple sites.
	Prefix string `yaml:"prefix"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// SecretKey keys the per-file token MAC and the item id cipher.
	// The SECRET_KEY environment variable takes precedence.
	SecretKey string `yaml:"secret_key"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// defaults are applied to unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Drive.APIEndpoint == "" {
		c.Drive.APIEndpoint = "https://graph.microsoft.com/v1.0/me/drive"
	}
	if c.Drive.Timeout == 0 {
		c.Drive.Timeout = 30 * time.Second
	}
	if c.Site.BaseDirectory == "" {
		c.Site.BaseDirectory = "/"
	}
	if c.Site.MaxItems == 0 {
		c.Site.MaxItems = 100
	}
	if c.Site.CacheControlHeader == "" {
		c.Site.CacheControlHeader = "max-age=600, s-maxage=1800, stale-while-revalidate"
	}
	if c.KV.Backend == "" {
		c.KV.Backend = "memory"
	}
	if env := os.Getenv("SECRET_KEY"); env != "" {
		c.Auth.SecretKey = env
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.KV.Backend != "memory" && c.KV.Backend != "bolt" {
		return fmt.Errorf("kv.backend must be \"memory\" or \"bolt\", got %q", c.KV.Backend)
	}
	if c.KV.Backend == "bolt" && c.KV.Path == "" {
		return fmt.Errorf("kv.path is required for the bolt backend")
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key (or the SECRET_KEY environment variable) is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Drive.TimeoutRaw != "" {
		cfg.Drive.Timeout, err = time.ParseDuration(cfg.Drive.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing drive timeout %q: %w", cfg.Drive.TimeoutRaw, err)
		}
	}

	return nil
}
