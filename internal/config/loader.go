package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	cfg := DefaultConfig()

	// Set up viper
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Read config file (optional - if file doesn't exist, continue with defaults)
	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional if environment variables are set
		fmt.Printf("Warning: Could not read config file %s: %v. Using defaults and environment variables.\n", configPath, err)
	} else {
		// Unmarshal file contents
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Override with environment variables (these take precedence)
	applyEnvironmentOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(cfg *Config) {
	// Server configuration
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		cfg.Server.AdminToken = token
	}

	// Directory configuration
	if dirHost := os.Getenv("DIRECTORY_HOST"); dirHost != "" {
		cfg.Directory.Host = dirHost
	}
	if dirPort := os.Getenv("DIRECTORY_PORT"); dirPort != "" {
		if p, err := strconv.Atoi(dirPort); err == nil {
			cfg.Directory.Port = p
		}
	}
	if dirName := os.Getenv("DIRECTORY_NAME"); dirName != "" {
		cfg.Directory.Database = dirName
	}
	if dirUser := os.Getenv("DIRECTORY_USER"); dirUser != "" {
		cfg.Directory.User = dirUser
	}
	if dirPassword := os.Getenv("DIRECTORY_PASSWORD"); dirPassword != "" {
		cfg.Directory.Password = dirPassword
	}

	// Mirror configuration
	if mirrorPath := os.Getenv("MIRROR_PATH"); mirrorPath != "" {
		cfg.Mirror.Path = mirrorPath
	}

	// Backup configuration
	if driver := os.Getenv("BACKUP_DRIVER"); driver != "" {
		cfg.Backup.Driver = driver
	}
	if bucket := os.Getenv("BACKUP_S3_BUCKET"); bucket != "" {
		cfg.Backup.S3Bucket = bucket
	}

	// Logging configuration
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
