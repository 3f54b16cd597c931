package app

import (
	"io"

	"gosgi/internal/config"
	"gosgi/internal/framework"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of log.level.
	Debug bool

	// Silent discards all log output.
	Silent bool

	// Console runs the interactive console on stdin.
	Console bool

	// Custom configuration directory (optional).
	// Defaults to ~/.config/gosgi.
	ConfigPath string

	// FrameworkConfig skips loading from ConfigPath when set.
	FrameworkConfig *config.FrameworkConfig

	// Activators are registered with the framework before it starts.
	Activators map[string]framework.ActivatorFactory

	// ConsoleOutput receives console output. Defaults to stdout.
	ConsoleOutput io.Writer
}

// NewConfig creates a new application configuration
func NewConfig(debug, console bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		Console:    console,
		ConfigPath: configPath,
	}
}
