package framework

import (
	"io"
	"sync"
	"time"

	"gosgi/internal/metadata"
	"gosgi/internal/module"
	"gosgi/internal/version"
)

// Bundle is an installed bundle. All methods are safe for concurrent use.
type Bundle struct {
	fw       *Framework
	id       module.BundleID
	location string

	// lifecycle serializes start, stop, update and uninstall.
	lifecycle sync.Mutex

	mu           sync.RWMutex
	state        BundleState
	md           *metadata.Metadata
	revision     int
	startLevel   int
	autoStart    bool
	activator    Activator
	context      *BundleContext
	lastModified time.Time
}

// ID returns the bundle id.
func (b *Bundle) ID() module.BundleID { return b.id }

// Location returns the location the bundle was installed from.
func (b *Bundle) Location() string { return b.location }

func (b *Bundle) State() BundleState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Bundle) SymbolicName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.md.SymbolicName
}

func (b *Bundle) Version() version.Version {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.md.Version
}

// Metadata returns the parsed descriptor of the current revision.
func (b *Bundle) Metadata() *metadata.Metadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.md
}

// Revision returns the revision counter of the current module.
func (b *Bundle) Revision() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}

func (b *Bundle) StartLevel() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.startLevel
}

// AutoStart reports whether the bundle is persistently marked for start.
func (b *Bundle) AutoStart() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.autoStart
}

func (b *Bundle) LastModified() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastModified
}

// Context returns the bundle context while the bundle is starting, active
// or stopping, nil otherwise.
func (b *Bundle) Context() *BundleContext {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.context
}

// Module returns the current module of the bundle.
func (b *Bundle) Module() (*module.Module, bool) {
	return b.fw.graph.Current(b.id)
}

func (b *Bundle) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.md.SymbolicName + ":" + b.md.Version.String()
}

// Start persistently marks the bundle for start and starts it when the
// framework start level allows.
func (b *Bundle) Start() error {
	return b.fw.startBundle(b)
}

// Stop persistently clears the start mark and stops the bundle.
func (b *Bundle) Stop() error {
	return b.fw.stopBundle(b)
}

// Update replaces the bundle content with a new revision.
func (b *Bundle) Update(r io.Reader) error {
	return b.fw.updateBundle(b, r)
}

// Uninstall removes the bundle. Operations on an uninstalled bundle fail
// with an illegal state error.
func (b *Bundle) Uninstall() error {
	return b.fw.uninstallBundle(b)
}

func (b *Bundle) setState(s BundleState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// transition moves the bundle from one state to another and reports
// whether it was in the expected state.
func (b *Bundle) transition(from, to BundleState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != from {
		return false
	}
	b.state = to
	return true
}

// transitionIf is transition with an extra condition evaluated while the
// bundle state is locked.
func (b *Bundle) transitionIf(from, to BundleState, cond func() bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != from || !cond() {
		return false
	}
	b.state = to
	return true
}

func (b *Bundle) effectiveStartLevel(enabled bool) int {
	if !enabled {
		return 1
	}
	return b.StartLevel()
}
