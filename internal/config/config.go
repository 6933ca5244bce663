package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the relay
type Config struct {
	Server  ServerConfig
	Broker  BrokerConfig
	Remote  RemoteConfig
	Storage StorageConfig
	Ingest  IngestConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type BrokerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	Topic             string        `mapstructure:"topic"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

type RemoteConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	UploadInterval time.Duration `mapstructure:"upload_interval"`
}

type StorageConfig struct {
	Root                string        `mapstructure:"root"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	RetentionDays       int           `mapstructure:"retention_days"`
}

type IngestConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// Addr returns the broker address in host:port form
func (c BrokerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("RELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Required keys get empty defaults so env-only configuration reaches
	// Unmarshal; validateConfig rejects the empties.
	viper.SetDefault("broker.host", "")
	viper.SetDefault("broker.password", "")
	viper.SetDefault("remote.base_url", "")
	viper.SetDefault("storage.root", "")

	// Broker defaults
	viper.SetDefault("broker.port", 6379)
	viper.SetDefault("broker.db", 0)
	viper.SetDefault("broker.topic", "sensors/readings")
	viper.SetDefault("broker.reconnect_interval", "5s")

	// Remote defaults
	viper.SetDefault("remote.timeout", "15s")
	viper.SetDefault("remote.upload_interval", "5m")

	// Storage defaults
	viper.SetDefault("storage.health_check_interval", "60s")
	viper.SetDefault("storage.retention_days", 0) // 0 disables the sweep

	// Ingest defaults
	viper.SetDefault("ingest.queue_size", 256)
}

func validateConfig(config *Config) error {
	if config.Storage.Root == "" {
		return fmt.Errorf("storage root is required")
	}
	if config.Broker.Host == "" {
		return fmt.Errorf("broker host is required")
	}
	if config.Remote.BaseURL == "" {
		return fmt.Errorf("remote base URL is required")
	}
	return nil
}
