package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the lessonkit configuration
type Config struct {
	Site     SiteConfig     `yaml:"site" toml:"site"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Content  ContentConfig  `yaml:"content" toml:"content"`
	Manifest ManifestConfig `yaml:"manifest" toml:"manifest"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache"`
	Features FeaturesConfig `yaml:"features" toml:"features"`
	API      *APIConfig     `yaml:"api,omitempty" toml:"api,omitempty"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// SiteConfig holds site-level configuration
type SiteConfig struct {
	Title string `yaml:"title" toml:"title"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port" toml:"port"`
	Host  string `yaml:"host" toml:"host"`
	Debug bool   `yaml:"debug" toml:"debug"`
}

// ContentConfig says where lesson documents live
type ContentConfig struct {
	Dir        string `yaml:"dir" toml:"dir"`                 // Directory served under /content/
	FallbackID string `yaml:"fallback_id" toml:"fallback_id"` // Lesson tried when the requested one cannot be loaded
}

// ManifestConfig selects the lesson manifest source
type ManifestConfig struct {
	Type  string `yaml:"type" toml:"type"`                     // "dir", "file", "sqlite" or "postgres"
	Path  string `yaml:"path,omitempty" toml:"path,omitempty"` // For file and sqlite: file path
	DSN   string `yaml:"dsn,omitempty" toml:"dsn,omitempty"`   // For postgres: connection string (env vars expanded)
	Table string `yaml:"table,omitempty" toml:"table,omitempty"`
}

// CacheConfig configures the document cache
type CacheConfig struct {
	Type     string `yaml:"type" toml:"type"`                               // "memory" or "redis"
	TTL      string `yaml:"ttl,omitempty" toml:"ttl,omitempty"`             // e.g. "5m". Empty disables caching
	RedisURL string `yaml:"redis_url,omitempty" toml:"redis_url,omitempty"` // redis://host:port/db
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload bool `yaml:"hot_reload" toml:"hot_reload"`
	Editor    bool `yaml:"editor" toml:"editor"`
}

// LogConfig configures logging
type LogConfig struct {
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
	Level  string `yaml:"level,omitempty" toml:"level,omitempty"`
	Format string `yaml:"format,omitempty" toml:"format,omitempty"` // "console" or "json"
}

// APIConfig holds JSON API configuration
type APIConfig struct {
	Enabled     bool             `yaml:"enabled" toml:"enabled"`
	CORSOrigins []string         `yaml:"cors_origins,omitempty" toml:"cors_origins,omitempty"`
	RateLimit   *RateLimitConfig `yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty"`
}

// RateLimitConfig holds rate limiting configuration for the API
type RateLimitConfig struct {
	RPS           float64 `yaml:"rps,omitempty" toml:"rps,omitempty"`                         // Requests per second per client (default: 10)
	Burst         int     `yaml:"burst,omitempty" toml:"burst,omitempty"`                     // Burst size (default: 20)
	MaxTrackedIPs int     `yaml:"max_tracked_ips,omitempty" toml:"max_tracked_ips,omitempty"` // LRU capacity of per-IP limiters (default: 10000)
}

// GetCORSOrigins returns the configured CORS origins, or nil if not configured
func (c *APIConfig) GetCORSOrigins() []string {
	if c == nil {
		return nil
	}
	return c.CORSOrigins
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RPS <= 0 {
		return 10
	}
	return c.RateLimit.RPS
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GetMaxTrackedIPs returns how many client IPs the rate limiter tracks (default: 10000)
func (c *APIConfig) GetMaxTrackedIPs() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.MaxTrackedIPs <= 0 {
		return 10000
	}
	return c.RateLimit.MaxTrackedIPs
}

// IsAPIEnabled returns whether the API is enabled
func (c *Config) IsAPIEnabled() bool {
	return c.API != nil && c.API.Enabled
}

// GetCacheTTL returns the cache TTL (0 if caching is disabled)
func (c CacheConfig) GetCacheTTL() time.Duration {
	if c.TTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetDSN returns the manifest DSN with environment variable expansion
func (c ManifestConfig) GetDSN() string {
	return os.ExpandEnv(c.DSN)
}

// GetTable returns the manifest table name (default: "lessons")
func (c ManifestConfig) GetTable() string {
	if c.Table == "" {
		return "lessons"
	}
	return c.Table
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Title: "Lessons",
		},
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Content: ContentConfig{
			Dir:        "content",
			FallbackID: "lesson-001",
		},
		Manifest: ManifestConfig{
			Type: "dir",
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  "5m",
		},
		Features: FeaturesConfig{
			HotReload: true,
			Editor:    true,
		},
		API: &APIConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, returns the default configuration.
// Environment overrides are applied in both cases.
func Load(configPath string) (*Config, error) {
	config := DefaultConfig() // Start with defaults

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := unmarshal(configPath, data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func unmarshal(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, config)
	default:
		return yaml.Unmarshal(data, config)
	}
}

// configNames are checked in order by LoadFromDir.
var configNames = []string{"lessonkit.yaml", "lessonkit.yml", "lessonkit.toml"}

// LoadFromDir looks for lessonkit.yaml, lessonkit.yml or lessonkit.toml in
// the given directory. If none is found, returns the default configuration.
// A relative content dir is resolved against dir.
func LoadFromDir(dir string) (*Config, error) {
	path := ""
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	config, err := Load(path)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(config.Content.Dir) {
		config.Content.Dir = filepath.Join(dir, config.Content.Dir)
	}
	if config.Manifest.Path != "" && !filepath.IsAbs(config.Manifest.Path) {
		config.Manifest.Path = filepath.Join(dir, config.Manifest.Path)
	}
	return config, nil
}

// ApplyEnv overrides settings from LESSONKIT_PORT, LESSONKIT_HOST,
// DATABASE_URL and REDIS_URL.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LESSONKIT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LESSONKIT_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LESSONKIT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Manifest.DSN == "" {
		c.Manifest.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" && c.Cache.RedisURL == "" {
		c.Cache.RedisURL = v
	}
	return nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Manifest.Type {
	case "dir", "file", "sqlite", "postgres":
	default:
		return fmt.Errorf("manifest.type must be dir, file, sqlite or postgres, got %q", c.Manifest.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.type must be memory or redis, got %q", c.Cache.Type)
	}
	if (c.Manifest.Type == "file" || c.Manifest.Type == "sqlite") && c.Manifest.Path == "" {
		return fmt.Errorf("manifest.path is required for manifest.type %s", c.Manifest.Type)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Save writes the configuration to a YAML or TOML file
func (c *Config) Save(configPath string) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(configPath)) == ".toml" {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
