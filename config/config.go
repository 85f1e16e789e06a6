// Package config loads yoroi's settings from a YAML file and YOROI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Service is a static registration applied at startup.
type Service struct {
	ID        string   `mapstructure:"id"`
	Name      string   `mapstructure:"name"`
	Endpoints []string `mapstructure:"endpoints"`
}

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Gateway struct {
		Address       string        `mapstructure:"address"`
		MissStatus    int           `mapstructure:"miss_status"`
		PreservePath  bool          `mapstructure:"preserve_path"`
		DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
		ShutdownDelay time.Duration `mapstructure:"shutdown_delay"`
		DialTimeout   time.Duration `mapstructure:"dial_timeout"`
		RateLimit     float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
		RateBurst     int           `mapstructure:"rate_burst"`
	} `mapstructure:"gateway"`

	Services []Service `mapstructure:"services"`

	Etcd struct {
		Endpoints   []string      `mapstructure:"endpoints"` // empty disables seeding
		Prefix      string        `mapstructure:"prefix"`
		DialTimeout time.Duration `mapstructure:"dial_timeout"`
	} `mapstructure:"etcd"`

	Admin struct {
		Address string `mapstructure:"address"` // empty disables the admin listener
	} `mapstructure:"admin"`

	Kyc struct {
		Address     string `mapstructure:"address"`
		DatabaseURL string `mapstructure:"database_url"` // empty uses the in-memory store
		RedisURL    string `mapstructure:"redis_url"`    // empty disables registration events
		AnnounceID  string `mapstructure:"announce_id"`  // service id announced in etcd
		AnnounceTTL int64  `mapstructure:"announce_ttl"`
	} `mapstructure:"kyc"`

	Secret struct {
		AESKey string `mapstructure:"aes_key"`
		AESIV  string `mapstructure:"aes_iv"`
	} `mapstructure:"secret"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("gateway.address", "[::1]:8080")
	v.SetDefault("gateway.miss_status", 200)
	v.SetDefault("gateway.preserve_path", false)
	v.SetDefault("gateway.drain_timeout", time.Duration(0))
	v.SetDefault("gateway.shutdown_delay", time.Duration(0))
	v.SetDefault("gateway.dial_timeout", 10*time.Second)
	v.SetDefault("gateway.rate_limit", 0.0)
	v.SetDefault("gateway.rate_burst", 0)

	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("etcd.prefix", "/yoroi")
	v.SetDefault("etcd.dial_timeout", 5*time.Second)

	v.SetDefault("admin.address", "")

	v.SetDefault("kyc.address", "[::1]:50051")
	v.SetDefault("kyc.database_url", "")
	v.SetDefault("kyc.redis_url", "")
	v.SetDefault("kyc.announce_id", "kyc.Kyc")
	v.SetDefault("kyc.announce_ttl", 10)

	v.SetDefault("secret.aes_key", "")
	v.SetDefault("secret.aes_iv", "")
}

// Load reads path (or ./config.yaml, ./config/config.yaml when path is empty). A missing file
// is not an error: defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("YOROI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the gateway cannot run with.
func (c *Config) Validate() error {
	g := c.Gateway
	if g.Address == "" {
		return errors.New("config: gateway.address is required")
	}
	if g.MissStatus < 100 || g.MissStatus > 599 {
		return fmt.Errorf("config: gateway.miss_status %d is not an HTTP status", g.MissStatus)
	}
	for name, d := range map[string]time.Duration{
		"gateway.drain_timeout":  g.DrainTimeout,
		"gateway.shutdown_delay": g.ShutdownDelay,
		"gateway.dial_timeout":   g.DialTimeout,
		"etcd.dial_timeout":      c.Etcd.DialTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	if g.RateLimit < 0 {
		return errors.New("config: gateway.rate_limit must not be negative")
	}
	if g.RateLimit > 0 && g.RateBurst < 1 {
		return errors.New("config: gateway.rate_burst must be at least 1 when rate_limit is set")
	}
	for i, s := range c.Services {
		for _, ep := range s.Endpoints {
			if _, _, err := net.SplitHostPort(ep); err != nil {
				return fmt.Errorf("config: services[%d] (%q) endpoint %q: %w", i, s.ID, ep, err)
			}
		}
	}
	if c.Secret.AESKey != "" && len(c.Secret.AESKey) != 32 {
		return errors.New("config: secret.aes_key must be 32 bytes")
	}
	if c.Secret.AESIV != "" && len(c.Secret.AESIV) != 16 {
		return errors.New("config: secret.aes_iv must be 16 bytes")
	}
	return nil
}
