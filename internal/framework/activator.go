package framework

import (
	"fmt"
)

// Activator is the hook a bundle uses to take part in its own lifecycle.
// Start and Stop run while the bundle's lifecycle lock is held, so they
// must not start or stop their own bundle.
type Activator interface {
	Start(ctx *BundleContext) error
	Stop(ctx *BundleContext) error
}

// ActivatorFactory creates a fresh activator for each start of a bundle.
type ActivatorFactory func() Activator

// ActivatorFuncs adapts a pair of functions to Activator. Either may be nil.
type ActivatorFuncs struct {
	OnStart func(ctx *BundleContext) error
	OnStop  func(ctx *BundleContext) error
}

func (a ActivatorFuncs) Start(ctx *BundleContext) error {
	if a.OnStart == nil {
		return nil
	}
	return a.OnStart(ctx)
}

func (a ActivatorFuncs) Stop(ctx *BundleContext) error {
	if a.OnStop == nil {
		return nil
	}
	return a.OnStop(ctx)
}

// RegisterActivator makes a factory available to bundles whose descriptor
// names it.
func (f *Framework) RegisterActivator(name string, factory ActivatorFactory) error {
	if name == "" {
		return fmt.Errorf("activator name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("activator %s has nil factory", name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.activators[name]; exists {
		return fmt.Errorf("activator %s already registered", name)
	}
	f.activators[name] = factory
	return nil
}

// Activators returns the names of all registered activators.
func (f *Framework) Activators() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.activators))
	for n := range f.activators {
		names = append(names, n)
	}
	return names
}

func (f *Framework) activatorFactory(name string) (ActivatorFactory, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	factory, ok := f.activators[name]
	return factory, ok
}
