// Package config loads the service configuration from defaults, an optional
// config file, an optional .env file and STOREFRONT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"go-storefront-sse/internal/infrastructure/logger"
)

const envPrefix = "STOREFRONT"

type Config struct {
	HTTP      HTTPConfig     `mapstructure:"http"`
	Log       LogConfig      `mapstructure:"log"`
	PubSub    PubSubConfig   `mapstructure:"pubsub"`
	Upstream  UpstreamConfig `mapstructure:"upstream"`
	Stream    StreamConfig   `mapstructure:"stream"`
	NATS      NATSConfig     `mapstructure:"nats"`
	StaticDir string         `mapstructure:"static_dir"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PubSubConfig is the channel this service declares to the publisher-side
// registrar: pubsub component name, topic, and the route pushes arrive on.
type PubSubConfig struct {
	Name  string `mapstructure:"name"`
	Topic string `mapstructure:"topic"`
	Route string `mapstructure:"route"`
}

type UpstreamConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	OrdersAppID     string        `mapstructure:"orders_app_id"`
	ProductsAppID   string        `mapstructure:"products_app_id"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
}

type StreamConfig struct {
	BufferSize        int           `mapstructure:"buffer_size"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":3001")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("pubsub.name", "pubsub")
	v.SetDefault("pubsub.topic", "cart-updates")
	v.SetDefault("pubsub.route", "/cart-updates")

	v.SetDefault("upstream.base_url", "http://localhost:3500")
	v.SetDefault("upstream.orders_app_id", "orders")
	v.SetDefault("upstream.products_app_id", "products")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.breaker_failures", 5)
	v.SetDefault("upstream.breaker_open_for", 30*time.Second)

	v.SetDefault("stream.buffer_size", 16)
	v.SetDefault("stream.keepalive_interval", 30*time.Second)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "cart-updates")

	v.SetDefault("static_dir", "")
}

// Load reads the configuration. An empty path looks for config.yaml in the
// working directory and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if !strings.HasPrefix(c.PubSub.Route, "/") {
		return fmt.Errorf("pubsub.route must start with '/': %q", c.PubSub.Route)
	}
	if c.PubSub.Name == "" || c.PubSub.Topic == "" {
		return fmt.Errorf("pubsub.name and pubsub.topic are required")
	}
	if c.Stream.BufferSize <= 0 {
		return fmt.Errorf("stream.buffer_size must be positive, got %d", c.Stream.BufferSize)
	}
	if c.Stream.KeepAliveInterval < 0 {
		return fmt.Errorf("stream.keepalive_interval must not be negative")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL: %q", c.Upstream.BaseURL)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LoggerConfig converts the log section into the logger package's config,
// keeping the environment-derived static fields.
func (c LogConfig) LoggerConfig() *logger.Config {
	lc := logger.NewDefaultConfig()
	lc.Level, _ = logger.ParseLevel(c.Level)
	lc.Format = c.Format
	lc.Output = c.Output
	lc.FilePath = c.FilePath
	lc.MaxSize = c.MaxSize
	lc.MaxBackups = c.MaxBackups
	lc.MaxAge = c.MaxAge
	lc.Compress = c.Compress
	return lc
}
