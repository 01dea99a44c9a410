// Package config loads the dashsync CLI configuration from a YAML file and
// DASHSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/unkn0wn-root/dashsync/codec"
)

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Live    LiveConfig    `mapstructure:"live"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
	State   StateConfig   `mapstructure:"state"`
	Logging LoggingConfig `mapstructure:"logging"`

	// MasterKeyHash switches step-up verification to a local bcrypt hash.
	MasterKeyHash string `mapstructure:"master_key_hash"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LiveConfig struct {
	Transport string `mapstructure:"transport"` // "ws", "redis" or "none"
	URL       string `mapstructure:"url"`       // websocket endpoint
	Prefix    string `mapstructure:"prefix"`    // redis channel prefix
}

type CacheConfig struct {
	Provider  string        `mapstructure:"provider"` // "lru", "ristretto", "bigcache" or "redis"
	GenStore  string        `mapstructure:"genstore"` // "local" or "redis"
	Namespace string        `mapstructure:"namespace"`
	Size      int           `mapstructure:"size"` // entries for lru; KB for ristretto; MB for bigcache
	TTL       time.Duration `mapstructure:"ttl"`
	StaleTime time.Duration `mapstructure:"stale_time"`

	// Codec is the payload encoding: "json", "cbor" or "msgpack".
	Codec      string `mapstructure:"codec"`
	MaxPayload int    `mapstructure:"max_payload"` // bytes; 0 => 8 MiB
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StateConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Backend string `mapstructure:"backend"` // "slog", "zap" or "logrus"
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"` // "auto", "text" or "json"
}

func DefaultConfig() *Config {
	return &Config{
		API:  APIConfig{URL: "http://localhost:8080/api", Timeout: 30 * time.Second},
		Live: LiveConfig{Transport: "ws", URL: "ws://localhost:8080/live", Prefix: "dashsync:room:"},
		Cache: CacheConfig{
			Provider:  "lru",
			GenStore:  "local",
			Namespace: "dashsync",
			Size:      1024,
			TTL:       10 * time.Minute,
			Codec:     "json",
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		State:   StateConfig{Path: filepath.Join(defaultDir(), "state.db")},
		Logging: LoggingConfig{Backend: "slog", Level: "info", Format: "auto"},
	}
}

func defaultDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "dashsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dashsync")
}

// Load reads path, or config.yaml from the default locations when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultDir())
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("DASHSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("api.url", c.API.URL)
	v.SetDefault("api.timeout", c.API.Timeout)
	v.SetDefault("live.transport", c.Live.Transport)
	v.SetDefault("live.url", c.Live.URL)
	v.SetDefault("live.prefix", c.Live.Prefix)
	v.SetDefault("cache.provider", c.Cache.Provider)
	v.SetDefault("cache.genstore", c.Cache.GenStore)
	v.SetDefault("cache.namespace", c.Cache.Namespace)
	v.SetDefault("cache.size", c.Cache.Size)
	v.SetDefault("cache.ttl", c.Cache.TTL)
	v.SetDefault("cache.stale_time", c.Cache.StaleTime)
	v.SetDefault("cache.codec", c.Cache.Codec)
	v.SetDefault("cache.max_payload", c.Cache.MaxPayload)
	v.SetDefault("redis.addr", c.Redis.Addr)
	v.SetDefault("redis.password", c.Redis.Password)
	v.SetDefault("redis.db", c.Redis.DB)
	v.SetDefault("state.path", c.State.Path)
	v.SetDefault("logging.backend", c.Logging.Backend)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.format", c.Logging.Format)
	v.SetDefault("master_key_hash", c.MasterKeyHash)
}

func (c *Config) Validate() error {
	var errs []error
	if c.API.URL == "" {
		errs = append(errs, errors.New("api.url is required"))
	}
	if !oneOf(c.Live.Transport, "ws", "redis", "none") {
		errs = append(errs, fmt.Errorf("live.transport %q: want ws, redis or none", c.Live.Transport))
	}
	if !oneOf(c.Cache.Provider, "lru", "ristretto", "bigcache", "redis") {
		errs = append(errs, fmt.Errorf("cache.provider %q: want lru, ristretto, bigcache or redis", c.Cache.Provider))
	}
	if !oneOf(c.Cache.GenStore, "local", "redis") {
		errs = append(errs, fmt.Errorf("cache.genstore %q: want local or redis", c.Cache.GenStore))
	}
	if !oneOf(c.Cache.Codec, codec.Names...) {
		errs = append(errs, fmt.Errorf("cache.codec %q: want json, cbor or msgpack", c.Cache.Codec))
	}
	if c.Cache.MaxPayload < 0 {
		errs = append(errs, errors.New("cache.max_payload must not be negative"))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, errors.New("cache.size must be positive"))
	}
	if !oneOf(c.Logging.Backend, "slog", "zap", "logrus") {
		errs = append(errs, fmt.Errorf("logging.backend %q: want slog, zap or logrus", c.Logging.Backend))
	}
	if !oneOf(c.Logging.Format, "auto", "text", "json") {
		errs = append(errs, fmt.Errorf("logging.format %q: want auto, text or json", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, opts ...string) bool {
	for _, o := range opts {
		if v == o {
			return true
		}
	}
	return false
}
