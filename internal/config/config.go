package config

import (
	"errors"
	"time"
)

// Config represents the control plane service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Schemas  SchemaConfig   `mapstructure:"schemas"`
	Features FeatureConfig  `mapstructure:"features"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents the admin command HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig represents the coordinator PostgreSQL connection
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig represents the catalog cache configuration
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// SchemaConfig names the database schemas the control plane operates on
type SchemaConfig struct {
	Data        string `mapstructure:"data"`
	Catalog     string `mapstructure:"catalog"`
	Distributed string `mapstructure:"distributed"`
	Internal    string `mapstructure:"internal"`
	// ExtensionName is the installed extension whose version gates upgrades
	ExtensionName string `mapstructure:"extension_name"`
}

// FeatureConfig gates operator-facing operations
type FeatureConfig struct {
	EnableMoveCollection bool `mapstructure:"enable_move_collection"`
	EnableRebalancer     bool `mapstructure:"enable_rebalancer"`
}

// CacheConfig represents catalog cache configuration
type CacheConfig struct {
	CollectionTTL time.Duration `mapstructure:"collection_ttl"`
	VersionTTL    time.Duration `mapstructure:"version_ttl"`
	MaxSize       int           `mapstructure:"max_size"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig represents the health probe server configuration
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.Schemas.Data == "" || c.Schemas.Catalog == "" ||
		c.Schemas.Distributed == "" || c.Schemas.Internal == "" {
		return errors.New("schemas.data, schemas.catalog, schemas.distributed and schemas.internal are required")
	}
	if c.Schemas.ExtensionName == "" {
		return errors.New("schemas.extension_name is required")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8900,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "papyrus",
			User:            "controlplane",
			Password:        "",
			MaxConnections:  20,
			MinConnections:  4,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			Password:     "",
			DB:           0,
			MaxRetries:   3,
			PoolSize:     50,
			MinIdleConns: 5,
		},
		Schemas: SchemaConfig{
			Data:          "papyrus_data",
			Catalog:       "papyrus_api_catalog",
			Distributed:   "papyrus_api_distributed",
			Internal:      "papyrus_api_internal",
			ExtensionName: "papyrus_distributed",
		},
		Features: FeatureConfig{
			EnableMoveCollection: false,
			EnableRebalancer:     false,
		},
		Cache: CacheConfig{
			CollectionTTL: 1 * time.Minute,
			VersionTTL:    5 * time.Minute,
			MaxSize:       10000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
