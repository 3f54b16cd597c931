package app

import (
	"fmt"

	"gosgi/internal/deploy"
	"gosgi/internal/framework"
	"gosgi/internal/metrics"
	"gosgi/pkg/logging"
)

// Services holds the components a running application is made of.
// MetricsServer and Deployer are nil when disabled in the configuration.
type Services struct {
	Framework     *framework.Framework
	Metrics       *metrics.Recorder
	MetricsServer *metrics.Server
	Deployer      *deploy.Watcher
}

// InitializeServices creates the framework and its supporting components.
// Nothing is started here; see Application.Run.
func InitializeServices(cfg *Config) (*Services, error) {
	fwCfg := *cfg.FrameworkConfig

	recorder := metrics.NewRecorder()
	fw, err := framework.New(framework.Options{
		Config:     fwCfg,
		Metrics:    recorder,
		Activators: cfg.Activators,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create framework: %w", err)
	}
	recorder.SetStateSource(fw)

	services := &Services{
		Framework: fw,
		Metrics:   recorder,
	}

	if fwCfg.Metrics.Enabled {
		services.MetricsServer = metrics.NewServer(fwCfg.Metrics.Address, recorder.Registry())
		logging.Debug("Services", "Metrics endpoint configured on %s", fwCfg.Metrics.Address)
	}

	if fwCfg.Deploy.Enabled {
		target := deploy.NewFrameworkTarget(fw, fwCfg.Deploy.AutoStart)
		watcher, err := deploy.NewWatcher(fwCfg.Deploy.Dir, fwCfg.Deploy.Debounce, target)
		if err != nil {
			return nil, fmt.Errorf("failed to create deploy watcher: %w", err)
		}
		services.Deployer = watcher
		logging.Debug("Services", "Deploy directory configured at %s", watcher.Dir())
	}

	return services, nil
}
