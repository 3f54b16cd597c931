package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gosgi/pkg/logging"
)

// LocationPrefix starts every location the watcher deploys.
const LocationPrefix = "file:"

// Operation is the kind of change seen for a file.
type Operation string

const (
	OperationDeploy   Operation = "deploy"
	OperationUndeploy Operation = "undeploy"
)

// Change is a debounced change of one descriptor file.
type Change struct {
	Operation Operation
	Path      string
	Location  string
}

// Target applies changes to a framework.
type Target interface {
	// Deploy installs or updates the bundle at location from data.
	Deploy(location string, data []byte) error
	// Undeploy uninstalls the bundle at location.
	Undeploy(location string) error
	// Locations lists the installed locations starting with prefix.
	Locations(prefix string) []string
	// Settle is called after each batch of changes.
	Settle()
}

// Watcher follows a deploy directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	target   Target

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]*pendingChange
	changes chan Change
	stopCh  chan struct{}
	done    chan struct{}
	running bool
}

type pendingChange struct {
	change Change
	timer  *time.Timer
}

// NewWatcher creates a watcher for dir. A zero debounce uses 500ms.
func NewWatcher(dir string, debounce time.Duration, target Target) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deploy directory %s: %w", dir, err)
	}
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      abs,
		debounce: debounce,
		target:   target,
		pending:  make(map[string]*pendingChange),
	}, nil
}

// Dir returns the absolute deploy directory.
func (w *Watcher) Dir() string { return w.dir }

// Location returns the bundle location of the file at path.
func Location(path string) string {
	return LocationPrefix + path
}

// Start scans the directory once and then watches it until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to create deploy directory %s: %w", w.dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.watcher = watcher
	w.changes = make(chan Change, 64)
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	w.Scan()

	go w.processEvents(ctx, watcher)
	logging.Info("Deploy", "Watching %s for bundle descriptors", w.dir)
	return nil
}

// Scan deploys every descriptor in the directory and undeploys bundles
// whose file has gone.
func (w *Watcher) Scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logging.Error("Deploy", err, "Failed to read deploy directory %s", w.dir)
		return
	}

	present := make(map[string]bool)
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isDescriptor(e.Name()) {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		files = append(files, path)
		present[Location(path)] = true
	}
	sort.Strings(files)

	for _, loc := range w.target.Locations(Location(w.dir + string(filepath.Separator))) {
		if !present[loc] {
			w.apply(Change{Operation: OperationUndeploy, Path: strings.TrimPrefix(loc, LocationPrefix), Location: loc})
		}
	}
	for _, path := range files {
		w.apply(Change{Operation: OperationDeploy, Path: path, Location: Location(path)})
	}
	w.target.Settle()
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.cleanupPending()
			return
		case <-w.stopCh:
			w.cleanupPending()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Deploy", err, "Filesystem watcher error")

		case change := <-w.changes:
			w.apply(change)
			w.target.Settle()
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	if !isDescriptor(event.Name) || filepath.Dir(event.Name) != w.dir {
		return
	}

	var op Operation
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		op = OperationDeploy
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename shows up again as a create under the new name.
		op = OperationUndeploy
	default:
		return
	}
	w.debounceChange(Change{Operation: op, Path: event.Name, Location: Location(event.Name)})
}

// debounceChange delays a change until its file has been quiet for the
// debounce interval. The latest operation wins.
func (w *Watcher) debounceChange(c Change) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if entry, ok := w.pending[c.Path]; ok {
		entry.timer.Stop()
	}
	changes := w.changes
	key := c.Path
	timer := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		entry, ok := w.pending[key]
		if ok {
			delete(w.pending, key)
		}
		w.mu.Unlock()
		if !ok {
			return
		}
		select {
		case changes <- entry.change:
		default:
			logging.Warn("Deploy", "Change queue full, dropping %s of %s", entry.change.Operation, entry.change.Path)
		}
	})
	w.pending[key] = &pendingChange{change: c, timer: timer}
}

func (w *Watcher) apply(c Change) {
	switch c.Operation {
	case OperationDeploy:
		data, err := os.ReadFile(c.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			logging.Error("Deploy", err, "Failed to read %s", c.Path)
			return
		}
		if err := w.target.Deploy(c.Location, data); err != nil {
			logging.Error("Deploy", err, "Failed to deploy %s", c.Path)
		}
	case OperationUndeploy:
		if _, err := os.Stat(c.Path); err == nil {
			// The file came back before the change was applied.
			return
		}
		if err := w.target.Undeploy(c.Location); err != nil {
			logging.Error("Deploy", err, "Failed to undeploy %s", c.Path)
		}
	}
}

func (w *Watcher) cleanupPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, entry := range w.pending {
		entry.timer.Stop()
	}
	w.pending = make(map[string]*pendingChange)
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	watcher, done := w.watcher, w.done
	w.watcher = nil
	w.mu.Unlock()

	<-done
	if err := watcher.Close(); err != nil {
		logging.Error("Deploy", err, "Error closing filesystem watcher")
	}
	logging.Info("Deploy", "Stopped watching %s", w.dir)
	return nil
}

func isDescriptor(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
