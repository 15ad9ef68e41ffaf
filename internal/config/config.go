package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Engine EngineConfig `mapstructure:"engine" validate:"required"`
	Server ServerConfig `mapstructure:"server" validate:"required"`
}

// EngineConfig contains the task engine settings.
type EngineConfig struct {
	// MaxWorkers caps concurrently running tasks; 0 means unbounded
	MaxWorkers int `mapstructure:"max_workers" validate:"gte=0"`
	// QueueSize caps pending tasks; 0 means unbounded
	QueueSize int `mapstructure:"queue_size" validate:"gte=0"`
	// AdmissionBackoff is the pause between capacity checks when saturated
	AdmissionBackoff time.Duration `mapstructure:"admission_backoff" validate:"gt=0"`
	// IDFormat selects the generator for task ids that are not supplied
	IDFormat string `mapstructure:"id_format" validate:"required,oneof=short ulid"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			MaxWorkers:       0,
			QueueSize:        0,
			AdmissionBackoff: 10 * time.Millisecond,
			IDFormat:         "short",
		},
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
	}
}
