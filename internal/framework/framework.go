package framework

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gosgi/internal/api"
	"gosgi/internal/config"
	"gosgi/internal/events"
	"gosgi/internal/metadata"
	"gosgi/internal/module"
	"gosgi/internal/orchestrator"
	"gosgi/internal/resolver"
	"gosgi/internal/services"
	"gosgi/internal/storage"
	"gosgi/pkg/logging"
)

const (
	// SystemBundleSymbolicName is the symbolic name of bundle 0.
	SystemBundleSymbolicName = "system.bundle"
	// SystemBundleLocation is the location reported by bundle 0.
	SystemBundleLocation = "System Bundle"
	// APIVersion is the framework API version exported by the system bundle.
	APIVersion = "1.5.0"
)

// Framework property keys that are always defined.
const (
	PropFrameworkVersion = "org.osgi.framework.version"
	PropFrameworkVendor  = "org.osgi.framework.vendor"
	PropFrameworkUUID    = "org.osgi.framework.uuid"
	PropFrameworkStorage = "org.osgi.framework.storage"
)

// Storage persists bundle content and install records.
type Storage interface {
	Init(clean bool) error
	Store(bundle module.BundleID, revision int, r io.Reader) error
	Load(bundle module.BundleID, revision int) ([]byte, error)
	Prune(bundle module.BundleID, keep int) error
	Remove(bundle module.BundleID) error
	DataFile(bundle module.BundleID, name string) (string, error)
	SaveRecord(rec storage.Record) error
	Records() ([]storage.Record, error)
}

// Metrics receives framework measurements. See internal/metrics.
type Metrics interface {
	LifecycleOperation(op string, err error)
	ResolveCompleted(d time.Duration, resolved, failed int)
	RefreshCompleted(d time.Duration, refreshed int)
}

type noopMetrics struct{}

func (noopMetrics) LifecycleOperation(string, error)         {}
func (noopMetrics) ResolveCompleted(time.Duration, int, int) {}
func (noopMetrics) RefreshCompleted(time.Duration, int)      {}

// Options configure a Framework. Only Config is required.
type Options struct {
	Config config.FrameworkConfig
	// Storage defaults to a FileStorage at Config.Storage.Dir.
	Storage Storage
	// Events defaults to a new dispatcher.
	Events  *events.Dispatcher
	Metrics Metrics
	// Activators are registered before the framework is returned.
	Activators map[string]ActivatorFactory
}

// Framework owns the installed bundles, the module graph and the service
// registry.
type Framework struct {
	cfg      config.FrameworkConfig
	graph    *module.Graph
	resolver *resolver.Resolver
	events   *events.Dispatcher
	services *services.Registry
	storage  Storage
	metrics  Metrics
	refresh  *orchestrator.Orchestrator
	system   *Bundle

	mu           sync.RWMutex
	bundles      map[module.BundleID]*Bundle
	byLocation   map[string]*Bundle
	nextBundleID module.BundleID
	activators   map[string]ActivatorFactory
	uuid         string
	initialized  bool
	stopped      chan struct{}
	cancel       context.CancelFunc

	// startLevelMu serializes start level changes.
	startLevelMu       sync.Mutex
	startLevel         int
	initialBundleLevel int
}

// New creates a framework in the INSTALLED state. Call Init or Start next.
func New(opts Options) (*Framework, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	f := &Framework{
		cfg:                opts.Config,
		graph:              module.NewGraph(),
		resolver:           resolver.New(resolver.Options{SelfWiring: opts.Config.Resolver.SelfWiring}),
		events:             opts.Events,
		storage:            opts.Storage,
		metrics:            opts.Metrics,
		bundles:            make(map[module.BundleID]*Bundle),
		byLocation:         make(map[string]*Bundle),
		nextBundleID:       1,
		activators:         make(map[string]ActivatorFactory),
		initialBundleLevel: opts.Config.StartLevel.InitialBundle,
	}
	if f.events == nil {
		f.events = events.NewDispatcher()
	}
	if f.storage == nil {
		f.storage = storage.NewFileStorage(opts.Config.Storage.Dir)
	}
	if f.metrics == nil {
		f.metrics = noopMetrics{}
	}
	f.services = services.NewRegistry(f.events)
	f.refresh = orchestrator.New(orchestrator.Config{
		Host:        &refreshHost{fw: f},
		StartLevels: opts.Config.StartLevel.Enabled,
		Metrics:     f.metrics,
	})

	for name, factory := range opts.Activators {
		if err := f.RegisterActivator(name, factory); err != nil {
			return nil, err
		}
	}

	system, err := f.newSystemBundle()
	if err != nil {
		return nil, err
	}
	f.system = system
	f.bundles[module.SystemBundleID] = system
	f.byLocation[SystemBundleLocation] = system
	return f, nil
}

func (f *Framework) newSystemBundle() (*Bundle, error) {
	d := metadata.Descriptor{
		SymbolicName: SystemBundleSymbolicName,
		Version:      APIVersion,
		Name:         "System Bundle",
	}
	for _, p := range f.cfg.SystemPackages {
		d.Exports = append(d.Exports, metadata.Export{Name: p.Name, Version: p.Version})
	}
	md, err := metadata.FromDescriptor(d)
	if err != nil {
		return nil, fmt.Errorf("invalid system packages: %w", err)
	}
	b := &Bundle{
		fw:       f,
		id:       module.SystemBundleID,
		location: SystemBundleLocation,
		state:    StateInstalled,
		md:       md,
		revision: 1,
	}
	f.graph.Add(md.Module(module.SystemBundleID, 1))
	return b, nil
}

// Init prepares storage, resolves the system bundle and reinstalls the
// bundles persisted by a previous run. The framework enters STARTING.
func (f *Framework) Init() error {
	f.system.lifecycle.Lock()
	defer f.system.lifecycle.Unlock()
	return f.initLocked()
}

func (f *Framework) initLocked() error {
	switch f.system.State() {
	case StateStarting, StateActive:
		return nil
	case StateStopping:
		return api.NewIllegalStateError("init", "framework", StateStopping.String())
	}

	f.mu.Lock()
	firstInit := !f.initialized
	f.mu.Unlock()

	if firstInit {
		if err := f.storage.Init(f.cfg.Storage.Clean); err != nil {
			return err
		}
	}

	if _, err := f.resolve([]module.ID{f.currentModuleID(f.system)}); err != nil {
		return err
	}

	if firstInit {
		f.reload()
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.refresh.Start(ctx); err != nil {
		cancel()
		return err
	}

	f.mu.Lock()
	f.initialized = true
	if f.uuid == "" {
		f.uuid = uuid.New().String()
	}
	f.stopped = make(chan struct{})
	f.cancel = cancel
	f.mu.Unlock()

	f.system.setState(StateStarting)
	f.system.mu.Lock()
	f.system.context = newBundleContext(f, f.system)
	f.system.mu.Unlock()

	logging.Info("Framework", "Framework initialized (uuid %s)", f.UUID())
	return nil
}

// reload reinstalls the bundles recorded in storage.
func (f *Framework) reload() {
	records, err := f.storage.Records()
	if err != nil {
		logging.Error("Framework", err, "Failed to read persisted bundles")
		return
	}
	for _, rec := range records {
		if rec.ID == module.SystemBundleID {
			continue
		}
		data, err := f.storage.Load(rec.ID, rec.Revision)
		if err != nil {
			logging.Error("Framework", err, "Failed to reload bundle %d from %s", rec.ID, rec.Location)
			continue
		}
		md, err := metadata.Parse(bytes.NewReader(data))
		if err != nil {
			logging.Error("Framework", err, "Failed to reload bundle %d from %s", rec.ID, rec.Location)
			continue
		}
		b := &Bundle{
			fw:           f,
			id:           rec.ID,
			location:     rec.Location,
			state:        StateInstalled,
			md:           md,
			revision:     rec.Revision,
			startLevel:   rec.StartLevel,
			autoStart:    rec.AutoStart,
			lastModified: time.Now(),
		}
		if b.startLevel < 1 {
			b.startLevel = f.initialBundleLevel
		}
		f.graph.Add(md.Module(b.id, b.revision))

		f.mu.Lock()
		f.bundles[b.id] = b
		f.byLocation[b.location] = b
		if b.id >= f.nextBundleID {
			f.nextBundleID = b.id + 1
		}
		f.mu.Unlock()
		logging.Info("Framework", "Reloaded bundle %s [%d] from %s", md.SymbolicName, b.id, b.location)
	}
}

// Start initializes the framework if needed, raises the start level to the
// configured beginning level and fires STARTED.
func (f *Framework) Start() error {
	f.system.lifecycle.Lock()
	if err := f.initLocked(); err != nil {
		f.system.lifecycle.Unlock()
		return err
	}
	if f.system.State() == StateActive {
		f.system.lifecycle.Unlock()
		return nil
	}
	f.system.lifecycle.Unlock()

	target := 1
	if f.cfg.StartLevel.Enabled {
		target = f.cfg.StartLevel.Beginning
	}
	f.setStartLevel(target, false)

	f.system.setState(StateActive)
	f.metrics.LifecycleOperation("framework_start", nil)
	logging.Info("Framework", "Framework started at start level %d", f.StartLevel())
	f.events.FireFramework(events.ReasonFrameworkStarted, module.SystemBundleID, SystemBundleSymbolicName, nil)
	return nil
}

// Stop shuts the framework down asynchronously: bundles are stopped in
// reverse start level order, the system bundle returns to RESOLVED and a
// STOPPED event is fired. Use WaitForStop to wait for completion.
func (f *Framework) Stop() error {
	f.system.lifecycle.Lock()
	state := f.system.State()
	if state != StateStarting && state != StateActive {
		f.system.lifecycle.Unlock()
		return nil
	}
	f.system.setState(StateStopping)
	f.system.lifecycle.Unlock()

	go f.shutdown()
	return nil
}

func (f *Framework) shutdown() {
	logging.Info("Framework", "Framework stopping")
	f.setStartLevel(0, false)

	f.services.UnregisterAll(module.SystemBundleID)
	f.services.ReleaseAll(module.SystemBundleID)
	f.events.RemoveListeners(module.SystemBundleID)

	if err := f.refresh.Stop(); err != nil {
		logging.Error("Framework", err, "Failed to stop refresh worker")
	}

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	stopped := f.stopped
	f.mu.Unlock()

	f.system.mu.Lock()
	if f.system.context != nil {
		f.system.context.invalidate()
		f.system.context = nil
	}
	f.system.state = StateResolved
	f.system.mu.Unlock()

	f.metrics.LifecycleOperation("framework_stop", nil)
	logging.Info("Framework", "Framework stopped")
	f.events.FireFramework(events.ReasonFrameworkStopped, module.SystemBundleID, SystemBundleSymbolicName, nil)
	if stopped != nil {
		close(stopped)
	}
}

// WaitForStop blocks until the framework has stopped or timeout elapsed.
// A timeout of zero or less waits indefinitely. The returned event has
// reason STOPPED or WAIT_TIMEDOUT.
func (f *Framework) WaitForStop(timeout time.Duration) events.Event {
	f.mu.RLock()
	stopped := f.stopped
	f.mu.RUnlock()

	result := func(reason events.EventReason) events.Event {
		return events.Event{
			Reason:       reason,
			Bundle:       module.SystemBundleID,
			SymbolicName: SystemBundleSymbolicName,
			Timestamp:    time.Now(),
		}
	}

	state := f.system.State()
	if stopped == nil || state == StateInstalled || state == StateResolved {
		return result(events.ReasonFrameworkStopped)
	}

	if timeout <= 0 {
		<-stopped
		return result(events.ReasonFrameworkStopped)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-stopped:
		return result(events.ReasonFrameworkStopped)
	case <-timer.C:
		return result(events.ReasonWaitTimedOut)
	}
}

// State returns the state of the system bundle.
func (f *Framework) State() BundleState {
	return f.system.State()
}

// UUID returns the id generated for this framework instance at first Init.
func (f *Framework) UUID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.uuid
}

// Property returns a framework property. Configured properties win over the
// built-in ones.
func (f *Framework) Property(key string) string {
	if v, ok := f.cfg.Properties[key]; ok {
		return v
	}
	switch key {
	case PropFrameworkVersion:
		return APIVersion
	case PropFrameworkVendor:
		return "gosgi"
	case PropFrameworkUUID:
		return f.UUID()
	case PropFrameworkStorage:
		return f.cfg.Storage.Dir
	}
	return ""
}

// Events returns the event dispatcher.
func (f *Framework) Events() *events.Dispatcher { return f.events }

// Services returns the service registry.
func (f *Framework) Services() *services.Registry { return f.services }

// Graph returns the module graph. Callers must treat it as read-only.
func (f *Framework) Graph() *module.Graph { return f.graph }

// SystemBundle returns bundle 0.
func (f *Framework) SystemBundle() *Bundle { return f.system }

// Bundle returns the bundle with the given id. Uninstalled bundles are not found.
func (f *Framework) Bundle(id module.BundleID) (*Bundle, error) {
	f.mu.RLock()
	b, ok := f.bundles[id]
	f.mu.RUnlock()
	if !ok || b.State() == StateUninstalled {
		return nil, api.NewBundleNotFoundError(int64(id))
	}
	return b, nil
}

// BundleByLocation returns the bundle installed from location.
func (f *Framework) BundleByLocation(location string) (*Bundle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.byLocation[location]
	return b, ok
}

// Bundles returns every installed bundle ordered by id, the system bundle first.
func (f *Framework) Bundles() []*Bundle {
	f.mu.RLock()
	res := make([]*Bundle, 0, len(f.bundles))
	for _, b := range f.bundles {
		res = append(res, b)
	}
	f.mu.RUnlock()

	out := res[:0]
	for _, b := range res {
		if b.State() != StateUninstalled {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// BundleStateCounts returns how many bundles are in each state.
func (f *Framework) BundleStateCounts() map[string]int {
	counts := make(map[string]int, len(AllStates))
	for _, s := range AllStates {
		counts[s.String()] = 0
	}
	for _, b := range f.Bundles() {
		counts[b.State().String()]++
	}
	return counts
}

func (f *Framework) lookup(id module.BundleID) (*Bundle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.bundles[id]
	return b, ok
}

func (f *Framework) currentModuleID(b *Bundle) module.ID {
	if m, ok := f.graph.Current(b.id); ok {
		return m.ID
	}
	return 0
}

func (f *Framework) fireBundle(reason events.EventReason, b *Bundle) {
	b.mu.RLock()
	e := events.Event{
		Reason:       reason,
		Bundle:       b.id,
		SymbolicName: b.md.SymbolicName,
		Location:     b.location,
	}
	b.mu.RUnlock()
	f.events.Fire(e)
}

func (f *Framework) fireError(b *Bundle, err error) {
	name := SystemBundleSymbolicName
	id := module.SystemBundleID
	if b != nil {
		id = b.id
		name = b.SymbolicName()
	}
	f.events.FireFramework(events.ReasonFrameworkError, id, name, err)
}

func (f *Framework) checkActive(op string) error {
	switch f.system.State() {
	case StateStarting, StateActive:
		return nil
	default:
		return api.NewIllegalStateError(op, "bundle", "framework "+f.system.State().String())
	}
}
