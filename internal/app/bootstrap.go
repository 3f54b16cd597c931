package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"gosgi/internal/config"
	"gosgi/internal/framework"
	"gosgi/pkg/logging"
)

// Application bootstraps and runs one framework instance.
//
// Initialization happens in two phases:
//  1. NewApplication configures logging, loads the configuration and creates
//     the services.
//  2. Run starts the framework and blocks until shutdown.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication performs the bootstrap sequence. Configuration is read from
// cfg.ConfigPath, or from ~/.config/gosgi when no path is given, unless
// cfg.FrameworkConfig is already populated.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.InitForCLI(appLogLevel, logOutput(cfg))

	if cfg.FrameworkConfig == nil {
		configPath := cfg.ConfigPath
		if configPath == "" {
			configPath = config.GetDefaultConfigPathOrPanic()
		}
		frameworkCfg, err := config.LoadConfig(configPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load gosgi configuration from path: %s\n%s", configPath, config.DescribeError(err))
			return nil, fmt.Errorf("failed to load gosgi configuration from path %s: %w", configPath, err)
		}
		cfg.FrameworkConfig = &frameworkCfg
	}

	// The configured log settings apply once the file has been read.
	// --debug still wins over log.level.
	level := logging.ParseLevel(cfg.FrameworkConfig.Log.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(logging.Format(cfg.FrameworkConfig.Log.Format), level, logOutput(cfg))

	services, err := InitializeServices(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Run starts the framework and blocks until it has been shut down.
func (a *Application) Run(ctx context.Context) error {
	return runFramework(ctx, a.config, a.services)
}

// Framework returns the framework instance managed by the application.
func (a *Application) Framework() *framework.Framework {
	return a.services.Framework
}

// Services returns the initialized application services.
func (a *Application) Services() *Services {
	return a.services
}

func logOutput(cfg *Config) io.Writer {
	if cfg.Silent {
		return io.Discard
	}
	// The console owns stdout.
	if cfg.Console {
		return os.Stderr
	}
	return os.Stdout
}
