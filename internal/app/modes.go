package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gosgi/internal/console"
	"gosgi/internal/events"
	"gosgi/internal/formatting"
	"gosgi/pkg/logging"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
)

var (
	errFrameworkStopped = errors.New("framework stopped")
	errConsoleClosed    = errors.New("console closed")
)

// runFramework starts the framework and its components and blocks until a
// signal arrives, ctx is cancelled, the framework stops on its own or the
// console is closed.
func runFramework(ctx context.Context, cfg *Config, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fw := services.Framework
	if err := fw.Start(); err != nil {
		logging.Error("Run", err, "Failed to start framework")
		return fmt.Errorf("failed to start framework: %w", err)
	}

	if services.MetricsServer != nil {
		if err := services.MetricsServer.Start(ctx); err != nil {
			shutdown(cfg, services)
			return err
		}
	}
	if services.Deployer != nil {
		if err := services.Deployer.Start(ctx); err != nil {
			shutdown(cfg, services)
			return err
		}
	}

	notifySystemd(daemon.SdNotifyReady)
	logging.Info("Run", "Framework %s running. Press Ctrl+C to stop.", fw.UUID())

	stopped := make(chan struct{})
	go func() {
		fw.WaitForStop(0)
		close(stopped)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-stopped:
			return errFrameworkStopped
		case <-gctx.Done():
			return nil
		}
	})
	if cfg.Console {
		g.Go(func() error {
			out := cfg.ConsoleOutput
			if out == nil {
				out = os.Stdout
			}
			c := console.New(fw, out, formatting.Options{Format: formatting.FormatTable, Color: true})
			if err := c.Run(gctx); err != nil {
				return err
			}
			return errConsoleClosed
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(cfg, services)
	})

	err := g.Wait()
	if errors.Is(err, errFrameworkStopped) || errors.Is(err, errConsoleClosed) {
		return nil
	}
	return err
}

// shutdown stops the deploy watcher, the framework and the metrics endpoint
// in that order.
func shutdown(cfg *Config, services *Services) error {
	logging.Info("Run", "--- Shutting down framework ---")
	notifySystemd(daemon.SdNotifyStopping)

	if services.Deployer != nil {
		if err := services.Deployer.Stop(); err != nil {
			logging.Warn("Run", "Failed to stop deploy watcher: %v", err)
		}
	}

	var result error
	fw := services.Framework
	if err := fw.Stop(); err != nil {
		result = fmt.Errorf("failed to stop framework: %w", err)
	} else if ev := fw.WaitForStop(cfg.FrameworkConfig.ShutdownTimeout); ev.Reason == events.ReasonWaitTimedOut {
		result = fmt.Errorf("framework did not stop within %s", cfg.FrameworkConfig.ShutdownTimeout)
		logging.Error("Run", result, "Shutdown timed out")
	}

	if services.MetricsServer != nil {
		if err := services.MetricsServer.Stop(); err != nil {
			logging.Warn("Run", "Failed to stop metrics server: %v", err)
		}
	}
	return result
}

func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		logging.Warn("Run", "Failed to notify systemd (%s): %v", state, err)
	case sent:
		logging.Debug("Run", "Notified systemd: %s", state)
	}
}
