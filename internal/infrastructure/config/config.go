package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"` // requests per minute per IP, 0 disables
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// GatewayConfig holds the ClickPesa API credentials and call behavior.
type GatewayConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	ClientID        string        `mapstructure:"client_id"`
	Environment     string        `mapstructure:"environment"` // sandbox or live
	CallbackURL     string        `mapstructure:"callback_url"`
	Currency        string        `mapstructure:"currency"`
	VerifySignature bool          `mapstructure:"verify_signature"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	LoggingEnabled  bool          `mapstructure:"logging_enabled"`
}

// CacheConfig controls the token and preview caches.
type CacheConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Driver         string        `mapstructure:"driver"` // memory or redis
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	PreviewEnabled bool          `mapstructure:"preview_enabled"`
	PreviewTTL     time.Duration `mapstructure:"preview_ttl"`
}

// WebhookConfig controls callback reconciliation behavior.
type WebhookConfig struct {
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
	LockDriver      string        `mapstructure:"lock_driver"` // memory or redis
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	LockRetries     int           `mapstructure:"lock_retries"`
	LockRetryDelay  time.Duration `mapstructure:"lock_retry_delay"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("CLICKPESA")
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/clickpesa")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Gateway.Environment != "sandbox" && c.Gateway.Environment != "live" {
		errs = append(errs, fmt.Errorf("gateway.environment must be sandbox or live, got %q", c.Gateway.Environment))
	}
	if len(c.Gateway.Currency) != 3 {
		errs = append(errs, fmt.Errorf("gateway.currency must be a 3-letter code, got %q", c.Gateway.Currency))
	}
	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		errs = append(errs, fmt.Errorf("cache.driver must be memory or redis, got %q", c.Cache.Driver))
	}
	if c.Webhook.LockDriver != "memory" && c.Webhook.LockDriver != "redis" {
		errs = append(errs, fmt.Errorf("webhook.lock_driver must be memory or redis, got %q", c.Webhook.LockDriver))
	}
	if c.Webhook.DuplicateWindow <= 0 {
		errs = append(errs, fmt.Errorf("webhook.duplicate_window must be positive"))
	}
	if c.Webhook.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("webhook.lock_ttl must be positive"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Gateway.APIKey == "" {
			errs = append(errs, fmt.Errorf("gateway.api_key required in production"))
		}
		if c.Gateway.ClientID == "" {
			errs = append(errs, fmt.Errorf("gateway.client_id required in production"))
		}
		if !c.Gateway.VerifySignature {
			errs = append(errs, fmt.Errorf("gateway.verify_signature must be enabled in production"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit", 300)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "clickpesa")
	v.SetDefault("database.database", "clickpesa")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Gateway defaults
	v.SetDefault("gateway.environment", "sandbox")
	v.SetDefault("gateway.currency", "TZS")
	v.SetDefault("gateway.verify_signature", false)
	v.SetDefault("gateway.request_timeout", "30s")
	v.SetDefault("gateway.logging_enabled", true)

	// Cache defaults: token TTL matches the gateway's 1h token validity,
	// preview TTL follows the gateway's 5 minute preview freshness.
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.token_ttl", "1h")
	v.SetDefault("cache.preview_enabled", true)
	v.SetDefault("cache.preview_ttl", "5m")

	// Webhook defaults
	v.SetDefault("webhook.duplicate_window", "5m")
	v.SetDefault("webhook.lock_driver", "memory")
	v.SetDefault("webhook.lock_ttl", "30s")
	v.SetDefault("webhook.lock_retries", 5)
	v.SetDefault("webhook.lock_retry_delay", "200ms")
	v.SetDefault("webhook.max_body_size", 1<<20)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "clickpesa-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
