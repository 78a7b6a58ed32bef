// Package config loads storefront settings from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type PricePolicy string

const (
	PriceFromCatalog PricePolicy = "catalog"
	PriceFromClient  PricePolicy = "client"
)

type Config struct {
	HTTPPort       string        `mapstructure:"http_port"`
	GRPCPort       string        `mapstructure:"grpc_port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	PublicBaseURL  string        `mapstructure:"public_base_url"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	PricePolicy    PricePolicy   `mapstructure:"price_policy"`
	OTLPEndpoint   string        `mapstructure:"otel_exporter_otlp_endpoint"`

	DB    DBConfig    `mapstructure:",squash"`
	Mongo MongoConfig `mapstructure:",squash"`
	Redis RedisConfig `mapstructure:",squash"`

	KafkaBrokers    string        `mapstructure:"kafka_brokers"`
	KafkaTopic      string        `mapstructure:"kafka_topic"`
	OutboxPublisher string        `mapstructure:"outbox_publisher"`
	OutboxTick      time.Duration `mapstructure:"outbox_tick"`
	OutboxTimeout   time.Duration `mapstructure:"outbox_timeout"`

	StripeSecretKey     string        `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string        `mapstructure:"stripe_webhook_secret"`
	StripeAPIURL        string        `mapstructure:"stripe_api_url"`
	ProcessorTimeout    time.Duration `mapstructure:"processor_timeout"`

	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepAge      time.Duration `mapstructure:"sweep_age"`

	CartClient CartClientConfig `mapstructure:",squash"`
}

type DBConfig struct {
	Host           string `mapstructure:"db_host"`
	Port           int    `mapstructure:"db_port"`
	User           string `mapstructure:"db_user"`
	Password       string `mapstructure:"db_password"`
	Name           string `mapstructure:"db_name"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type MongoConfig struct {
	URI    string `mapstructure:"mongo_uri"`
	DBName string `mapstructure:"mongo_db_name"`
}

type RedisConfig struct {
	Addr            string        `mapstructure:"redis_addr"`
	Password        string        `mapstructure:"redis_password"`
	CartCacheTTL    time.Duration `mapstructure:"cart_cache_ttl"`
	CartCachePrefix string        `mapstructure:"cart_cache_prefix"`
}

// CartClientConfig drives the `storefront cart` commands.
type CartClientConfig struct {
	APIURL  string `mapstructure:"cart_api_url"`
	Token   string `mapstructure:"cart_token"`
	Backend string `mapstructure:"cart_backend"`
	Path    string `mapstructure:"cart_path"`
}

var defaults = map[string]any{
	"http_port":        "8080",
	"grpc_port":        "50056",
	"request_timeout":  30 * time.Second,
	"log_level":        "info",
	"log_format":       "json",
	"public_base_url":  "http://localhost:3000",
	"jwt_secret":       "",
	"rate_limit_rps":   20.0,
	"rate_limit_burst": 40,
	"price_policy":     string(PriceFromCatalog),

	"otel_exporter_otlp_endpoint": "",

	"db_host":         "localhost",
	"db_port":         5432,
	"db_user":         "postgres",
	"db_password":     "postgres",
	"db_name":         "ecommerce",
	"migrations_path": "./internal/repository/migrations",

	"mongo_uri":     "mongodb://localhost:27017",
	"mongo_db_name": "cartdb",

	"redis_addr":        "localhost:6379",
	"redis_password":    "",
	"cart_cache_ttl":    15 * time.Minute,
	"cart_cache_prefix": "storefront:cart",

	"kafka_brokers":    "localhost:9092",
	"kafka_topic":      "order-events",
	"outbox_publisher": "direct",
	"outbox_tick":      2 * time.Second,
	"outbox_timeout":   5 * time.Second,

	"stripe_secret_key":     "",
	"stripe_webhook_secret": "",
	"stripe_api_url":        "",
	"processor_timeout":     10 * time.Second,

	"sweep_interval": time.Minute,
	"sweep_age":      10 * time.Minute,

	"cart_api_url": "http://localhost:8080",
	"cart_token":   "",
	"cart_backend": "file",
	"cart_path":    "cart.json",
}

// Load reads defaults, then the YAML file at path when non-empty, then
// environment variables named after the upper-cased keys (HTTP_PORT, DB_HOST, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.PricePolicy {
	case PriceFromCatalog, PriceFromClient:
	default:
		errs = append(errs, fmt.Errorf("price_policy: unknown value %q", c.PricePolicy))
	}
	switch c.OutboxPublisher {
	case "kafka", "direct":
	default:
		errs = append(errs, fmt.Errorf("outbox_publisher: unknown value %q", c.OutboxPublisher))
	}
	switch c.CartClient.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("cart_backend: unknown value %q", c.CartClient.Backend))
	}
	if c.SweepAge <= 0 {
		errs = append(errs, errors.New("sweep_age must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
