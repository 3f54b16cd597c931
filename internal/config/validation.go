package config

import (
	"fmt"
	"net"
	"strings"

	"gosgi/internal/version"
	"gosgi/pkg/logging"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{string(logging.FormatText), string(logging.FormatJSON)}
)

// Validate checks the configuration and returns a *ConfigurationErrorCollection
// listing every problem, or nil.
func (c FrameworkConfig) Validate() error {
	errs := NewConfigurationErrorCollection()

	if strings.TrimSpace(c.Storage.Dir) == "" {
		errs.AddValidation("storage.dir", "is required")
	}
	if c.Deploy.Enabled && strings.TrimSpace(c.Deploy.Dir) == "" {
		errs.AddValidation("deploy.dir", "is required when deploy is enabled")
	}
	if c.Deploy.Debounce < 0 {
		errs.AddValidation("deploy.debounce", "must not be negative")
	}

	if c.StartLevel.Beginning < 1 {
		errs.AddValidation("startLevel.beginning", "must be at least 1")
	}
	if c.StartLevel.InitialBundle < 1 {
		errs.AddValidation("startLevel.initialBundle", "must be at least 1")
	}
	if c.Resolver.CommitRetries < 1 {
		errs.AddValidation("resolver.commitRetries", "must be at least 1")
	}
	if c.ShutdownTimeout <= 0 {
		errs.AddValidation("shutdownTimeout", "must be positive", "use a duration such as 30s")
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			errs.AddValidation("metrics.address", fmt.Sprintf("invalid listen address %q", c.Metrics.Address), "use host:port, e.g. localhost:9464")
		}
	}

	if err := validateOneOf(c.Log.Level, validLogLevels); err != nil {
		errs.AddValidation("log.level", err.Error())
	}
	if err := validateOneOf(c.Log.Format, validLogFormats); err != nil {
		errs.AddValidation("log.format", err.Error())
	}

	seen := make(map[string]bool)
	for i, p := range c.SystemPackages {
		field := fmt.Sprintf("systemPackages[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			errs.AddValidation(field, "name is required")
			continue
		}
		if seen[p.Name] {
			errs.AddValidation(field, fmt.Sprintf("package %s listed twice", p.Name))
		}
		seen[p.Name] = true
		if _, err := version.Parse(p.Version); err != nil {
			errs.AddValidation(field, err.Error())
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateOneOf(value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
}
