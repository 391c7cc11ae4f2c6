package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv overrides yelp.api_key when set
const APIKeyEnv = "YELP_FUSION_API_KEY"

// Config represents the application configuration
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Libraries LibrariesConfig `yaml:"libraries"`
	Yelp      YelpConfig      `yaml:"yelp"`
	Server    ServerConfig    `yaml:"server"`
	Rules     RulesConfig     `yaml:"rules"`
	Log       LogConfig       `yaml:"log"`
}

// CacheConfig contains request cache configuration
type CacheConfig struct {
	Backend string `yaml:"backend"` // "json" or "sqlite"
	File    string `yaml:"file"`
	Delay   string `yaml:"delay"`
}

// LibrariesConfig locates the library directory
type LibrariesConfig struct {
	BaseURL       string   `yaml:"base_url"`
	DirectoryPath string   `yaml:"directory_path"`
	StripAddress  []string `yaml:"strip_address"`
}

// YelpConfig contains business search settings
type YelpConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Term     string `yaml:"term"`
	Radius   int    `yaml:"radius"`
	Limit    int    `yaml:"limit"`
}

// ServerConfig contains caching proxy configuration
type ServerConfig struct {
	Port int `yaml:"port"`
	// CacheFile is the proxy's own cache file, kept apart from cache.file so
	// a running proxy and a menu session never rewrite the same file
	CacheFile string `yaml:"cache_file"`
}

// RulesConfig contains caching rules for the proxy
type RulesConfig struct {
	Mode  string      `yaml:"mode"` // "whitelist" or "blacklist"
	Rules []CacheRule `yaml:"rules"`
}

// CacheRule defines a caching rule
type CacheRule struct {
	BaseURI string   `yaml:"base_uri"`
	Methods []string `yaml:"methods"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.applyDefaults()
	config.applyEnv()
	return &config, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does not exist
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logrus.Debugf("No config file at %s, using defaults", path)
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	if c.Cache.Backend == "" {
		c.Cache.Backend = "json"
	}
	if c.Cache.File == "" {
		switch c.Cache.Backend {
		case "sqlite":
			c.Cache.File = "final_project_cache.db"
		default:
			c.Cache.File = "final_project_cache.json"
		}
	}
	if c.Cache.Delay == "" {
		c.Cache.Delay = "1s"
	}
	if c.Libraries.BaseURL == "" {
		c.Libraries.BaseURL = "https://www.lib.umich.edu"
	}
	if c.Libraries.DirectoryPath == "" {
		c.Libraries.DirectoryPath = "/locations-and-hours"
	}
	if c.Libraries.StripAddress == nil {
		c.Libraries.StripAddress = []string{"Building 18, Room G018"}
	}
	if c.Yelp.Endpoint == "" {
		c.Yelp.Endpoint = "https://api.yelp.com/v3/businesses/search"
	}
	if c.Yelp.Term == "" {
		c.Yelp.Term = "restaurants"
	}
	if c.Yelp.Radius == 0 {
		c.Yelp.Radius = 1000
	}
	if c.Yelp.Limit == 0 {
		c.Yelp.Limit = 10
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CacheFile == "" {
		switch c.Cache.Backend {
		case "sqlite":
			c.Server.CacheFile = "proxy_cache.db"
		default:
			c.Server.CacheFile = "proxy_cache.json"
		}
	}
	if c.Rules.Mode == "" {
		c.Rules.Mode = "blacklist"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if key, ok := os.LookupEnv(APIKeyEnv); ok && key != "" {
		c.Yelp.APIKey = key
	}
}

// GetCacheDelay parses and returns the delay applied before uncached requests
func (c *Config) GetCacheDelay() (time.Duration, error) {
	return time.ParseDuration(c.Cache.Delay)
}

// ProxyConfig returns a copy of the configuration whose cache settings point
// at the proxy's cache file
func (c *Config) ProxyConfig() *Config {
	proxied := *c
	proxied.Cache.File = c.Server.CacheFile
	return &proxied
}

// DirectoryURL returns the full URL of the library directory page
func (c *Config) DirectoryURL() string {
	return c.Libraries.BaseURL + c.Libraries.DirectoryPath
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Cache.Backend != "json" && c.Cache.Backend != "sqlite" {
		return fmt.Errorf("cache backend must be 'json' or 'sqlite', got: %s", c.Cache.Backend)
	}

	if c.Cache.File == "" {
		return fmt.Errorf("cache file is required")
	}

	delay, err := c.GetCacheDelay()
	if err != nil {
		return fmt.Errorf("invalid cache delay format: %w", err)
	}
	if delay < 0 {
		return fmt.Errorf("cache delay must not be negative: %s", c.Cache.Delay)
	}

	if c.Libraries.BaseURL == "" {
		return fmt.Errorf("libraries base URL is required")
	}

	if c.Yelp.Endpoint == "" {
		return fmt.Errorf("yelp endpoint is required")
	}

	if c.Yelp.Radius < 0 || c.Yelp.Radius > 40000 {
		return fmt.Errorf("invalid yelp radius: %d", c.Yelp.Radius)
	}

	if c.Yelp.Limit < 1 || c.Yelp.Limit > 50 {
		return fmt.Errorf("invalid yelp limit: %d", c.Yelp.Limit)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.CacheFile == "" {
		return fmt.Errorf("proxy cache file is required")
	}
	if c.Server.CacheFile == c.Cache.File {
		return fmt.Errorf("proxy cache file must differ from cache file: %s", c.Cache.File)
	}

	if c.Rules.Mode != "whitelist" && c.Rules.Mode != "blacklist" {
		return fmt.Errorf("rules mode must be 'whitelist' or 'blacklist', got: %s", c.Rules.Mode)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}
