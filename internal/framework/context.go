package framework

import (
	"io"
	"sync/atomic"

	"gosgi/internal/api"
	"gosgi/internal/events"
	"gosgi/internal/module"
	"gosgi/internal/services"
)

// BundleContext is a bundle's handle on the framework. It is valid from
// the moment the bundle starts until it stops; afterwards every method
// returns an IllegalStateError or a zero value.
type BundleContext struct {
	fw     *Framework
	bundle *Bundle
	valid  atomic.Bool
}

func newBundleContext(fw *Framework, b *Bundle) *BundleContext {
	ctx := &BundleContext{fw: fw, bundle: b}
	ctx.valid.Store(true)
	return ctx
}

func (c *BundleContext) invalidate() {
	c.valid.Store(false)
}

func (c *BundleContext) check(op string) error {
	if !c.valid.Load() {
		return api.NewIllegalStateError(op, "bundle context of "+c.bundle.String(), "invalid")
	}
	return nil
}

// Valid reports whether the context can still be used.
func (c *BundleContext) Valid() bool {
	return c.valid.Load()
}

// Bundle returns the bundle that owns the context.
func (c *BundleContext) Bundle() *Bundle {
	return c.bundle
}

// Property returns a framework property.
func (c *BundleContext) Property(key string) string {
	return c.fw.Property(key)
}

// InstallBundle installs another bundle.
func (c *BundleContext) InstallBundle(location string, r io.Reader) (*Bundle, error) {
	if err := c.check("install bundle through"); err != nil {
		return nil, err
	}
	return c.fw.Install(location, r)
}

// LookupBundle returns an installed bundle by id.
func (c *BundleContext) LookupBundle(id module.BundleID) (*Bundle, error) {
	return c.fw.Bundle(id)
}

// Bundles returns every installed bundle.
func (c *BundleContext) Bundles() []*Bundle {
	return c.fw.Bundles()
}

// RegisterService publishes svc under the given contract names. The
// registration is withdrawn automatically when the bundle stops.
func (c *BundleContext) RegisterService(contracts []string, svc interface{}, props services.Properties) (*services.Registration, error) {
	if err := c.check("register service through"); err != nil {
		return nil, err
	}
	return c.fw.services.Register(c.bundle.id, contracts, svc, props)
}

// ServiceReferences returns the services registered under contract whose
// properties match filter, best ranked first.
func (c *BundleContext) ServiceReferences(contract string, filter services.Properties) []services.Reference {
	if c.check("query services through") != nil {
		return nil
	}
	return c.fw.services.References(contract, filter)
}

// ServiceReference returns the best ranked service registered under contract.
func (c *BundleContext) ServiceReference(contract string) (services.Reference, bool) {
	if c.check("query services through") != nil {
		return services.Reference{}, false
	}
	return c.fw.services.Reference(contract)
}

// GetService returns the service object and records the use.
func (c *BundleContext) GetService(ref services.Reference) (interface{}, error) {
	if err := c.check("get service through"); err != nil {
		return nil, err
	}
	return c.fw.services.Get(c.bundle.id, ref)
}

// UngetService releases one use of the service.
func (c *BundleContext) UngetService(ref services.Reference) bool {
	if c.check("unget service through") != nil {
		return false
	}
	return c.fw.services.Unget(c.bundle.id, ref)
}

// AddBundleListener subscribes fn to bundle events until the bundle stops.
func (c *BundleContext) AddBundleListener(fn events.ListenerFunc) (events.ListenerID, error) {
	return c.addListener(events.CategoryBundle, fn)
}

// AddServiceListener subscribes fn to service events until the bundle stops.
func (c *BundleContext) AddServiceListener(fn events.ListenerFunc) (events.ListenerID, error) {
	return c.addListener(events.CategoryService, fn)
}

// AddFrameworkListener subscribes fn to framework events until the bundle stops.
func (c *BundleContext) AddFrameworkListener(fn events.ListenerFunc) (events.ListenerID, error) {
	return c.addListener(events.CategoryFramework, fn)
}

func (c *BundleContext) addListener(category events.Category, fn events.ListenerFunc) (events.ListenerID, error) {
	if err := c.check("add " + category.String() + " listener through"); err != nil {
		return 0, err
	}
	return c.fw.events.AddListener(c.bundle.id, category, fn), nil
}

// RemoveListener removes a listener added through this context.
func (c *BundleContext) RemoveListener(id events.ListenerID) {
	c.fw.events.RemoveListener(id)
}

// DataFile returns the path of a file in the bundle's private data area.
func (c *BundleContext) DataFile(name string) (string, error) {
	if err := c.check("get data file through"); err != nil {
		return "", err
	}
	return c.fw.storage.DataFile(c.bundle.id, name)
}
