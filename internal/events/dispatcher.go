package events

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gosgi/internal/module"
	"gosgi/pkg/logging"
)

// ListenerID identifies a registered listener.
type ListenerID int64

// ListenerFunc receives events of one category.
type ListenerFunc func(Event)

type listener struct {
	id       ListenerID
	owner    module.BundleID
	category Category
	fn       ListenerFunc
}

// Dispatcher fans events out to listeners and subscribers.
type Dispatcher struct {
	mu          sync.RWMutex
	nextID      ListenerID
	listeners   map[ListenerID]*listener
	subscribers []chan<- Event
	templates   *MessageTemplateEngine
	now         func() time.Time
}

// NewDispatcher returns a dispatcher using the default message templates.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		nextID:    1,
		listeners: make(map[ListenerID]*listener),
		templates: NewMessageTemplateEngine(),
		now:       time.Now,
	}
}

// Templates exposes the template engine so callers can override messages.
func (d *Dispatcher) Templates() *MessageTemplateEngine {
	return d.templates
}

// AddListener registers fn for every event of the given category. The
// listener belongs to owner and is removed by RemoveListeners(owner).
func (d *Dispatcher) AddListener(owner module.BundleID, category Category, fn ListenerFunc) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = &listener{id: id, owner: owner, category: category, fn: fn}
	return id
}

// RemoveListener unregisters a single listener. Unknown ids are ignored.
func (d *Dispatcher) RemoveListener(id ListenerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, id)
}

// RemoveListeners unregisters every listener owned by the bundle and
// returns how many were removed.
func (d *Dispatcher) RemoveListeners(owner module.BundleID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id, l := range d.listeners {
		if l.owner == owner {
			delete(d.listeners, id)
			n++
		}
	}
	return n
}

// ListenerCount returns the number of listeners owned by the bundle.
func (d *Dispatcher) ListenerCount(owner module.BundleID) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, l := range d.listeners {
		if l.owner == owner {
			n++
		}
	}
	return n
}

// Subscribe registers a channel that receives every event. Sends never
// block; events are dropped when the channel is full.
func (d *Dispatcher) Subscribe(ch chan<- Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, ch)
}

// Unsubscribe removes a channel registered with Subscribe.
func (d *Dispatcher) Unsubscribe(ch chan<- Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subscribers {
		if s == ch {
			d.subscribers = append(d.subscribers[:i], d.subscribers[i+1:]...)
			return
		}
	}
}

// Fire delivers the event. It fills in the type, timestamp and message when
// they are empty. Fire must not be called while holding framework locks.
func (d *Dispatcher) Fire(e Event) {
	if e.Type == "" {
		e.Type = getEventType(e.Reason)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now()
	}
	if e.Message == "" {
		e.Message = d.templates.Render(e.Reason, dataFor(e))
	}

	if e.Type == EventTypeWarning {
		logging.Warn("Events", "%s", e.Message)
	} else {
		logging.Debug("Events", "%s", e.Message)
	}

	category := e.Category()
	d.mu.RLock()
	targets := make([]*listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		if l.category == category {
			targets = append(targets, l)
		}
	}
	subs := append([]chan<- Event(nil), d.subscribers...)
	d.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	for _, l := range targets {
		d.deliver(l, e)
	}

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			logging.Warn("Events", "Subscriber channel full, dropping %s event", e.Reason)
		}
	}
}

func (d *Dispatcher) deliver(l *listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Events", fmt.Errorf("%v", r), "Listener %d of bundle %d panicked handling %s", l.id, l.owner, e.Reason)
		}
	}()
	l.fn(e)
}

// FireFramework is a shorthand for framework events.
func (d *Dispatcher) FireFramework(reason EventReason, bundle module.BundleID, symbolicName string, err error) {
	d.Fire(Event{Reason: reason, Bundle: bundle, SymbolicName: symbolicName, Err: err})
}
