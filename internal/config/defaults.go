package config

import "time"

const (
	// DefaultMetricsAddress is where /metrics is served when enabled.
	DefaultMetricsAddress = "localhost:9464"

	// DefaultDeployDebounce coalesces bursts of file events in the deploy directory.
	DefaultDeployDebounce = 500 * time.Millisecond

	// DefaultShutdownTimeout bounds a graceful framework stop.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultCommitRetries is how many times a stale resolution is recomputed.
	DefaultCommitRetries = 5
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() FrameworkConfig {
	return FrameworkConfig{
		Storage: StorageConfig{
			Dir: "bundles-cache",
		},
		Deploy: DeployConfig{
			Dir:       "deploy",
			Debounce:  DefaultDeployDebounce,
			AutoStart: true,
		},
		StartLevel: StartLevelConfig{
			Enabled:       false,
			Beginning:     1,
			InitialBundle: 1,
		},
		Resolver: ResolverConfig{
			SelfWiring:    true,
			CommitRetries: DefaultCommitRetries,
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		SystemPackages: []SystemPackage{
			{Name: "org.osgi.framework", Version: "1.5.0"},
			{Name: "org.osgi.service.packageadmin", Version: "1.2.0"},
			{Name: "org.osgi.service.startlevel", Version: "1.1.0"},
		},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}
