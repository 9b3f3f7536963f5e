package config

import (
	"errors"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the lmsync service configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Directory   DirectoryConfig   `mapstructure:"directory" yaml:"directory"`
	Remote      RemoteConfig      `mapstructure:"remote" yaml:"remote"`
	Mirror      MirrorConfig      `mapstructure:"mirror" yaml:"mirror"`
	Resolver    ResolverConfig    `mapstructure:"resolver" yaml:"resolver"`
	Backup      BackupConfig      `mapstructure:"backup" yaml:"backup"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter" yaml:"rate_limiter"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AdminToken      string        `mapstructure:"admin_token" yaml:"admin_token"`
}

// DirectoryConfig represents the shared PostgreSQL tenant directory
type DirectoryConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Database        string        `mapstructure:"database" yaml:"database"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections" yaml:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// RemoteConfig represents the per-tenant remote document store defaults.
// The connection descriptor itself arrives inside the resolved TenantConfig;
// these values only bound how the engine talks to it.
type RemoteConfig struct {
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// MirrorConfig represents the durable local mirror
type MirrorConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ResolverConfig represents tenant resolution configuration
type ResolverConfig struct {
	WaitBound time.Duration `mapstructure:"wait_bound" yaml:"wait_bound"`
}

// BackupConfig represents backup archive storage
type BackupConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"` // filesystem, s3, memory
	Root      string `mapstructure:"root" yaml:"root"`
	S3Bucket  string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Region  string `mapstructure:"s3_region" yaml:"s3_region"`
	S3Prefix  string `mapstructure:"s3_prefix" yaml:"s3_prefix"`
}

// RateLimiterConfig represents admin-surface rate limiting
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
}

// CacheConfig represents resolved-config cache configuration
type CacheConfig struct {
	TenantConfigTTL time.Duration `mapstructure:"tenant_config_ttl" yaml:"tenant_config_ttl"`
	MaxSize         int           `mapstructure:"max_size" yaml:"max_size"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Directory.Host == "" {
		return errors.New("directory.host is required")
	}
	if c.Directory.Database == "" {
		return errors.New("directory.database is required")
	}
	if c.Directory.User == "" {
		return errors.New("directory.user is required")
	}
	if c.Mirror.Path == "" {
		return errors.New("mirror.path is required")
	}
	if c.Resolver.WaitBound <= 0 {
		return errors.New("resolver.wait_bound must be positive")
	}
	if !isValidBackupDriver(c.Backup.Driver) {
		return errors.New("backup.driver must be one of: filesystem, s3, memory")
	}
	if c.Backup.Driver == "s3" && c.Backup.S3Bucket == "" {
		return errors.New("backup.s3_bucket is required for the s3 driver")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// isValidBackupDriver checks if the backup driver is valid
func isValidBackupDriver(driver string) bool {
	switch driver {
	case "filesystem", "s3", "memory":
		return true
	default:
		return false
	}
}

// Dump renders the configuration as YAML, for --dump-config.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Directory: DirectoryConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "lms_directory",
			User:            "lmsync",
			Password:        "",
			MaxConnections:  10,
			MinConnections:  2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Remote: RemoteConfig{
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Mirror: MirrorConfig{
			Path: "./lmsync-mirror.db",
		},
		Resolver: ResolverConfig{
			WaitBound: 8 * time.Second,
		},
		Backup: BackupConfig{
			Driver: "filesystem",
			Root:   "./backups",
		},
		RateLimiter: RateLimiterConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			BurstSize:         40,
		},
		Cache: CacheConfig{
			TenantConfigTTL: 5 * time.Minute,
			MaxSize:         1000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
