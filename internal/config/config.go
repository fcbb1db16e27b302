// Package config loads dcsearch settings from flags, environment and an
// optional YAML file through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/donorschoose-client/pkg/logging"
	"github.com/Sternrassler/donorschoose-client/pkg/query"
	"github.com/Sternrassler/donorschoose-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. DCSEARCH_API_KEY.
	EnvPrefix = "DCSEARCH"

	// FileName is the config file base name searched for when no explicit
	// file is given.
	FileName = "dcsearch"

	DefaultUserAgent = "dcsearch/0.1"
	DefaultTimeout   = 30 * time.Second
	DefaultListen    = ":8080"
)

// Keys
const (
	KeyAPIKey    = "api_key"
	KeyBaseURL   = "base_url"
	KeyDelay     = "delay"
	KeyTimeout   = "timeout"
	KeyUserAgent = "user_agent"
	KeyMaxPages  = "max_pages"
	KeyRedisURL  = "redis_url"
	KeyLogLevel  = "log.level"
	KeyLogPretty = "log.pretty"
	KeyListen    = "listen"
)

// Config is the resolved CLI configuration.
type Config struct {
	APIKey    string
	BaseURL   string
	Delay     time.Duration
	Timeout   time.Duration
	UserAgent string
	MaxPages  int
	RedisURL  string
	LogLevel  string
	LogPretty bool
	Listen    string
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIKey, query.DefaultAPIKey)
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyDelay, ratelimit.DefaultDelay)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyUserAgent, DefaultUserAgent)
	v.SetDefault(KeyMaxPages, 0)
	v.SetDefault(KeyRedisURL, "")
	v.SetDefault(KeyLogLevel, string(logging.LevelInfo))
	v.SetDefault(KeyLogPretty, false)
	v.SetDefault(KeyListen, DefaultListen)
}

// ReadFile reads path, or searches ./dcsearch.yaml and
// ~/.config/dcsearch/dcsearch.yaml when path is empty. A missing file is only
// an error when path was given explicitly. It returns the file used, if any.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load resolves the configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		APIKey:    v.GetString(KeyAPIKey),
		BaseURL:   v.GetString(KeyBaseURL),
		Delay:     v.GetDuration(KeyDelay),
		Timeout:   v.GetDuration(KeyTimeout),
		UserAgent: v.GetString(KeyUserAgent),
		MaxPages:  v.GetInt(KeyMaxPages),
		RedisURL:  v.GetString(KeyRedisURL),
		LogLevel:  v.GetString(KeyLogLevel),
		LogPretty: v.GetBool(KeyLogPretty),
		Listen:    v.GetString(KeyListen),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client would reject
// later or misbehave on.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%s must not be empty", KeyAPIKey)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%s must not be negative (got %s)", KeyDelay, c.Delay)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s must not be negative (got %s)", KeyTimeout, c.Timeout)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("%s must not be empty", KeyUserAgent)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("%s must be >= 0 (got %d)", KeyMaxPages, c.MaxPages)
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return fmt.Errorf("%s: %w", KeyRedisURL, err)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.LogLevel))
	cfg.Pretty = c.LogPretty
	return cfg
}

// fileLayout mirrors the config file.
type fileLayout struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Delay     string `yaml:"delay"`
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
	MaxPages  int    `yaml:"max_pages"`
	RedisURL  string `yaml:"redis_url,omitempty"`
	Log       struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Listen string `yaml:"listen"`
}

// MarshalYAML renders the configuration in config file layout.
func (c Config) MarshalYAML() (any, error) {
	f := fileLayout{
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Delay:     c.Delay.String(),
		Timeout:   c.Timeout.String(),
		UserAgent: c.UserAgent,
		MaxPages:  c.MaxPages,
		RedisURL:  c.RedisURL,
		Listen:    c.Listen,
	}
	f.Log.Level = c.LogLevel
	f.Log.Pretty = c.LogPretty
	return f, nil
}

// YAML returns the configuration as a config file.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
