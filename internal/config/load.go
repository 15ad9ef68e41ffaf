package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "ASYNQQ"

// ErrValidation is returned when the loaded configuration fails validation.
var ErrValidation = errors.New("validation failed")

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from config files.
func Load() (*Config, error) {
	return load("")
}

// LoadFile loads configuration from the given YAML file, with environment
// variables taking precedence.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config file path is empty")
	}
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	defaults := Default()
	v.SetDefault("engine.max_workers", defaults.Engine.MaxWorkers)
	v.SetDefault("engine.queue_size", defaults.Engine.QueueSize)
	v.SetDefault("engine.admission_backoff", defaults.Engine.AdmissionBackoff)
	v.SetDefault("engine.id_format", defaults.Engine.IDFormat)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.log_level", defaults.Server.LogLevel)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Configure environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
