package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dsamarin/gatepay/internal/gateway"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig              `mapstructure:"server"`
	Database      DatabaseConfig            `mapstructure:"database"`
	Redis         RedisConfig               `mapstructure:"redis"`
	Payment       PaymentConfig             `mapstructure:"payment"`
	Gateways      map[string]gateway.Config `mapstructure:"gateways"`
	Observability ObservabilityConfig       `mapstructure:"observability"`
	Auth          AuthConfig                `mapstructure:"auth"`
	InstanceID    string                    `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
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

// PaymentConfig holds the workflow settings shared by all gateways.
type PaymentConfig struct {
	// LookupWindow bounds callback payment lookup by id or email.
	LookupWindow time.Duration `mapstructure:"lookup_window"`
	// GatewayTimeout bounds every outbound gateway call.
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`
	// ReconcileLockTTL bounds the advisory per-payment reconcile lock.
	ReconcileLockTTL time.Duration `mapstructure:"reconcile_lock_ttl"`
	// SessionTTL bounds the redis payment session hint.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// AllowGuest permits starting payments for orders without a user.
	AllowGuest bool `mapstructure:"allow_guest"`
	// PaidStatusName is the order status applied when a payment completes.
	PaidStatusName string `mapstructure:"paid_status_name"`
	// DataKeys lists the request field aliases callbacks may carry.
	DataKeys DataKeysConfig `mapstructure:"data_keys"`
}

// DataKeysConfig maps callback payload aliases to lookup keys. Gateways echo
// the payment id and customer email back under gateway-specific names.
type DataKeysConfig struct {
	PaymentID     []string `mapstructure:"payment_id"`
	CustomerEmail []string `mapstructure:"customer_email"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("GATEPAY")
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/gatepay")

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
	if c.Payment.LookupWindow <= 0 {
		errs = append(errs, fmt.Errorf("payment.lookup_window must be positive"))
	}
	if c.Payment.GatewayTimeout <= 0 {
		errs = append(errs, fmt.Errorf("payment.gateway_timeout must be positive"))
	}
	if len(c.Payment.DataKeys.PaymentID) == 0 {
		errs = append(errs, fmt.Errorf("payment.data_keys.payment_id must not be empty"))
	}

	validate := validator.New()
	for name, gw := range c.Gateways {
		if err := validate.Struct(gw.URLs); err != nil {
			errs = append(errs, fmt.Errorf("gateways.%s.urls: %w", name, err))
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
	v.SetDefault("server.rate_limit_per_min", 120)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gatepay")
	v.SetDefault("database.database", "gatepay")
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

	// Payment defaults
	v.SetDefault("payment.lookup_window", "30m")
	v.SetDefault("payment.gateway_timeout", "30s")
	v.SetDefault("payment.reconcile_lock_ttl", "30s")
	v.SetDefault("payment.session_ttl", "1h")
	v.SetDefault("payment.allow_guest", false)
	v.SetDefault("payment.paid_status_name", "paid")
	v.SetDefault("payment.data_keys.payment_id", []string{"transactionId", "invoiceId", "payment_id", "InvId"})
	v.SetDefault("payment.data_keys.customer_email", []string{"email", "customerEmail", "Email"})

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "gatepay-1")
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
