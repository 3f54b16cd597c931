package services

import (
	"fmt"
	"sort"
	"sync"

	"gosgi/internal/api"
	"gosgi/internal/events"
	"gosgi/internal/module"
	"gosgi/pkg/logging"
)

// Standard service property keys. They are set by the registry and cannot
// be overridden by callers.
const (
	PropServiceID      = "service.id"
	PropObjectClass    = "objectClass"
	PropServiceRanking = "service.ranking"
)

// ServiceID identifies a registration. IDs are never reused.
type ServiceID int64

// Properties are the key/value pairs attached to a registration.
type Properties map[string]interface{}

func (p Properties) clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Reference is an immutable view of a registration.
type Reference struct {
	ID         ServiceID
	Bundle     module.BundleID
	Contracts  []string
	Ranking    int
	Properties Properties
}

// Provides reports whether the reference is registered under contract.
func (r Reference) Provides(contract string) bool {
	for _, c := range r.Contracts {
		if c == contract {
			return true
		}
	}
	return false
}

type registration struct {
	id        ServiceID
	owner     module.BundleID
	contracts []string
	service   interface{}
	props     Properties
	ranking   int
	users     map[module.BundleID]int
}

func (r *registration) reference() Reference {
	return Reference{
		ID:         r.id,
		Bundle:     r.owner,
		Contracts:  append([]string(nil), r.contracts...),
		Ranking:    r.ranking,
		Properties: r.props.clone(),
	}
}

// Registry is the framework service registry. It is safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	nextID        ServiceID
	registrations map[ServiceID]*registration
	events        *events.Dispatcher
}

// NewRegistry creates a registry that reports changes to d. d may be nil.
func NewRegistry(d *events.Dispatcher) *Registry {
	return &Registry{
		nextID:        1,
		registrations: make(map[ServiceID]*registration),
		events:        d,
	}
}

// Register publishes svc under the given contract names on behalf of owner.
func (r *Registry) Register(owner module.BundleID, contracts []string, svc interface{}, props Properties) (*Registration, error) {
	if svc == nil {
		return nil, fmt.Errorf("cannot register nil service")
	}
	if len(contracts) == 0 {
		return nil, fmt.Errorf("service has no contract names")
	}
	for _, c := range contracts {
		if c == "" {
			return nil, fmt.Errorf("service has empty contract name")
		}
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	reg := &registration{
		id:        id,
		owner:     owner,
		contracts: append([]string(nil), contracts...),
		service:   svc,
		users:     make(map[module.BundleID]int),
	}
	reg.props, reg.ranking = normalize(id, reg.contracts, props)
	r.registrations[id] = reg
	ref := reg.reference()
	r.mu.Unlock()

	logging.Debug("Services", "Bundle %d registered service %d %v", owner, id, contracts)
	r.fire(events.ReasonServiceRegistered, ref)
	return &Registration{registry: r, id: id}, nil
}

func normalize(id ServiceID, contracts []string, props Properties) (Properties, int) {
	out := make(Properties, len(props)+2)
	for k, v := range props {
		out[k] = v
	}
	out[PropServiceID] = int64(id)
	out[PropObjectClass] = append([]string(nil), contracts...)

	ranking := 0
	if v, ok := out[PropServiceRanking].(int); ok {
		ranking = v
	} else {
		delete(out, PropServiceRanking)
	}
	return out, ranking
}

// SetProperties replaces the properties of a registration.
func (r *Registry) SetProperties(id ServiceID, props Properties) error {
	r.mu.Lock()
	reg, ok := r.registrations[id]
	if !ok {
		r.mu.Unlock()
		return api.NewServiceNotFoundError(int64(id))
	}
	reg.props, reg.ranking = normalize(id, reg.contracts, props)
	ref := reg.reference()
	r.mu.Unlock()

	r.fire(events.ReasonServiceModified, ref)
	return nil
}

// Unregister removes a registration.
func (r *Registry) Unregister(id ServiceID) error {
	r.mu.RLock()
	reg, ok := r.registrations[id]
	var ref Reference
	if ok {
		ref = reg.reference()
	}
	r.mu.RUnlock()
	if !ok {
		return api.NewServiceNotFoundError(int64(id))
	}

	// Listeners see the service while it is still registered.
	r.fire(events.ReasonServiceUnregistering, ref)

	r.mu.Lock()
	delete(r.registrations, id)
	r.mu.Unlock()
	logging.Debug("Services", "Service %d unregistered", id)
	return nil
}

// UnregisterAll removes every registration owned by the bundle and returns
// how many were removed.
func (r *Registry) UnregisterAll(owner module.BundleID) int {
	refs := r.RegisteredBy(owner)
	n := 0
	for _, ref := range refs {
		if err := r.Unregister(ref.ID); err == nil {
			n++
		}
	}
	return n
}

// ReleaseAll drops every use the bundle holds on other services.
func (r *Registry) ReleaseAll(user module.BundleID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		delete(reg.users, user)
	}
}

// References returns the registrations providing contract whose properties
// contain every key/value in filter, best first: highest ranking, then
// lowest id. An empty contract matches every registration.
func (r *Registry) References(contract string, filter Properties) []Reference {
	r.mu.RLock()
	var out []Reference
	for _, reg := range r.registrations {
		ref := reg.reference()
		if contract != "" && !ref.Provides(contract) {
			continue
		}
		if !matchesFilter(ref.Properties, filter) {
			continue
		}
		out = append(out, ref)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Ranking != out[j].Ranking {
			return out[i].Ranking > out[j].Ranking
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Reference returns the best registration for contract.
func (r *Registry) Reference(contract string) (Reference, bool) {
	refs := r.References(contract, nil)
	if len(refs) == 0 {
		return Reference{}, false
	}
	return refs[0], true
}

// RegisteredBy returns the registrations owned by the bundle, by id.
func (r *Registry) RegisteredBy(owner module.BundleID) []Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Reference
	for _, reg := range r.registrations {
		if reg.owner == owner {
			out = append(out, reg.reference())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InUseBy returns the registrations the bundle currently holds, by id.
func (r *Registry) InUseBy(user module.BundleID) []Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Reference
	for _, reg := range r.registrations {
		if reg.users[user] > 0 {
			out = append(out, reg.reference())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the service object behind ref and records the use.
func (r *Registry) Get(user module.BundleID, ref Reference) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[ref.ID]
	if !ok {
		return nil, api.NewServiceNotFoundError(int64(ref.ID))
	}
	reg.users[user]++
	return reg.service, nil
}

// Unget releases one use of ref. It reports false when the bundle held no use.
func (r *Registry) Unget(user module.BundleID, ref Reference) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[ref.ID]
	if !ok || reg.users[user] == 0 {
		return false
	}
	reg.users[user]--
	if reg.users[user] == 0 {
		delete(reg.users, user)
	}
	return true
}

// Count returns the number of live registrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.registrations)
}

func (r *Registry) fire(reason events.EventReason, ref Reference) {
	if r.events == nil {
		return
	}
	r.events.Fire(events.Event{
		Reason:    reason,
		Bundle:    ref.Bundle,
		ServiceID: int64(ref.ID),
		Contracts: ref.Contracts,
	})
}

func matchesFilter(props, filter Properties) bool {
	for k, want := range filter {
		got, ok := props[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Registration is the handle returned to the registering bundle.
type Registration struct {
	registry *Registry
	id       ServiceID
}

// ID returns the service id.
func (r *Registration) ID() ServiceID {
	return r.id
}

// Reference returns the current view of the registration.
func (r *Registration) Reference() (Reference, error) {
	r.registry.mu.RLock()
	defer r.registry.mu.RUnlock()
	reg, ok := r.registry.registrations[r.id]
	if !ok {
		return Reference{}, api.NewServiceNotFoundError(int64(r.id))
	}
	return reg.reference(), nil
}

// SetProperties replaces the registration's properties.
func (r *Registration) SetProperties(props Properties) error {
	return r.registry.SetProperties(r.id, props)
}

// Unregister withdraws the service.
func (r *Registration) Unregister() error {
	return r.registry.Unregister(r.id)
}
