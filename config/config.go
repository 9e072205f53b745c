package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sumandas0/notionmbse/internal/observability"
	"github.com/sumandas0/notionmbse/internal/resilience"
	"github.com/sumandas0/notionmbse/internal/security"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend     BackendConfig               `mapstructure:"backend"`
	Database    DatabaseConfig              `mapstructure:"database"`
	SQLite      SQLiteConfig                `mapstructure:"sqlite"`
	Notion      NotionConfig                `mapstructure:"notion"`
	Cache       CacheConfig                 `mapstructure:"cache"`
	Server      ServerConfig                `mapstructure:"server"`
	Logging     observability.LoggingConfig `mapstructure:"logging"`
	Metrics     observability.MetricsConfig `mapstructure:"metrics"`
	Tracing     observability.TracingConfig `mapstructure:"tracing"`
	Environment string                      `mapstructure:"environment"`
}

// BackendConfig selects the document store behind collection controllers.
type BackendConfig struct {
	Type       string `mapstructure:"type"`
	Collection string `mapstructure:"collection"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type NotionConfig struct {
	Token          string                          `mapstructure:"token"`
	DatabaseID     string                          `mapstructure:"database_id"`
	BaseURL        string                          `mapstructure:"base_url"`
	Version        string                          `mapstructure:"version"`
	Timeout        time.Duration                   `mapstructure:"timeout"`
	RateLimit      float64                         `mapstructure:"rate_limit"`
	Burst          int                             `mapstructure:"burst"`
	CircuitBreaker resilience.CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type ServerConfig struct {
	Host              string                   `mapstructure:"host"`
	Port              int                      `mapstructure:"port"`
	ReadTimeout       time.Duration            `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration            `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration            `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration            `mapstructure:"shutdown_timeout"`
	RequestsPerMinute int                      `mapstructure:"requests_per_minute"`
	AllowedOrigins    []string                 `mapstructure:"allowed_origins"`
	Sanitizer         security.SanitizerConfig `mapstructure:"sanitizer"`
}

// LoadConfig reads configPath when given, otherwise looks for mbse.yaml in
// the usual places. A missing default file is not an error. Environment
// variables use the MBSE prefix, so MBSE_NOTION_DATABASE_ID sets
// notion.database_id.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mbse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mbse/")
		v.AddConfigPath("$HOME/.mbse/")
	}

	v.SetEnvPrefix("MBSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("notion.token", "MBSE_NOTION_TOKEN", "NOTION_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind notion token: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.type", BackendMemory)
	v.SetDefault("backend.collection", "elements")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "mbse")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("sqlite.path", "mbse.db")

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("notion.base_url", "https://api.notion.com/v1")
	v.SetDefault("notion.version", "2022-06-28")
	v.SetDefault("notion.timeout", "30s")
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("notion.burst", 3)
	v.SetDefault("notion.circuit_breaker.enabled", true)
	v.SetDefault("notion.circuit_breaker.max_requests", 1)
	v.SetDefault("notion.circuit_breaker.interval", "60s")
	v.SetDefault("notion.circuit_breaker.timeout", "30s")
	v.SetDefault("notion.circuit_breaker.failure_threshold", 5)

	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.cleanup_interval", "1m")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.requests_per_minute", 100)
	v.SetDefault("server.allowed_origins", []string{"https://*", "http://*"})
	sanitizer := security.DefaultSanitizerConfig()
	v.SetDefault("server.sanitizer.enabled", sanitizer.Enabled)
	v.SetDefault("server.sanitizer.max_string_length", sanitizer.MaxStringLength)
	v.SetDefault("server.sanitizer.max_array_length", sanitizer.MaxArrayLength)
	v.SetDefault("server.sanitizer.max_object_depth", sanitizer.MaxObjectDepth)
	v.SetDefault("server.sanitizer.strict_mode", sanitizer.StrictMode)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "mbse")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "notionmbse")
	v.SetDefault("tracing.jaeger_url", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("environment", "development")
}

func (c *Config) Validate() error {
	backends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(backends, c.Backend.Type) {
		return fmt.Errorf("invalid backend type: %s", c.Backend.Type)
	}
	if c.Backend.Collection == "" {
		return fmt.Errorf("backend collection is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Backend.Type == BackendPostgres {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
	}
	if c.Backend.Type == BackendSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}

	if c.Notion.RateLimit <= 0 {
		return fmt.Errorf("notion rate limit must be positive: %v", c.Notion.RateLimit)
	}

	validLevels := []observability.LogLevel{
		observability.LogLevelTrace, observability.LogLevelDebug, observability.LogLevelInfo,
		observability.LogLevelWarn, observability.LogLevelError,
	}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Logging.Format != observability.LogFormatJSON && c.Logging.Format != observability.LogFormatConsole {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
