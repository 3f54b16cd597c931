package config

import "time"

// FrameworkConfig is the top-level configuration structure for gosgi.
type FrameworkConfig struct {
	Storage    StorageConfig    `yaml:"storage"`
	Deploy     DeployConfig     `yaml:"deploy"`
	StartLevel StartLevelConfig `yaml:"startLevel"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`

	// SystemPackages are exported by the system bundle.
	SystemPackages []SystemPackage `yaml:"systemPackages,omitempty"`

	// ShutdownTimeout bounds how long `run` waits for the framework to stop.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`

	// Properties are framework properties visible to bundles through their context.
	Properties map[string]string `yaml:"properties,omitempty"`
}

// SystemPackage is a package exported by the system bundle.
type SystemPackage struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// StorageConfig controls where installed bundle revisions are persisted.
type StorageConfig struct {
	Dir string `yaml:"dir,omitempty"`
	// Clean wipes the storage directory when the framework initializes.
	Clean bool `yaml:"clean,omitempty"`
}

// DeployConfig controls the hot deploy directory watcher.
type DeployConfig struct {
	Enabled   bool          `yaml:"enabled,omitempty"`
	Dir       string        `yaml:"dir,omitempty"`
	Debounce  time.Duration `yaml:"debounce,omitempty"`
	AutoStart bool          `yaml:"autoStart,omitempty"`
}

// StartLevelConfig controls start level handling.
type StartLevelConfig struct {
	Enabled       bool `yaml:"enabled,omitempty"`
	Beginning     int  `yaml:"beginning,omitempty"`
	InitialBundle int  `yaml:"initialBundle,omitempty"`
}

// ResolverConfig tunes the resolver.
type ResolverConfig struct {
	// SelfWiring lets a module import a package it exports itself. On by
	// default; set it to false to require another exporter.
	SelfWiring bool `yaml:"selfWiring,omitempty"`
	// CommitRetries bounds how often a resolution is recomputed after the
	// module graph changed underneath it.
	CommitRetries int `yaml:"commitRetries,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Address string `yaml:"address,omitempty"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}
