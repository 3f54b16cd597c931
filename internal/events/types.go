package events

import (
	"time"

	"gosgi/internal/module"
)

// EventType represents the severity of an event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// Category groups reasons by the kind of listener that receives them.
type Category int

const (
	CategoryFramework Category = iota
	CategoryBundle
	CategoryService
)

func (c Category) String() string {
	switch c {
	case CategoryFramework:
		return "framework"
	case CategoryBundle:
		return "bundle"
	case CategoryService:
		return "service"
	default:
		return "unknown"
	}
}

// EventReason represents the reason code for an event.
type EventReason string

// Framework event reasons
const (
	ReasonFrameworkStarted  EventReason = "STARTED"
	ReasonFrameworkError    EventReason = "ERROR"
	ReasonPackagesRefreshed EventReason = "PACKAGES_REFRESHED"
	ReasonStartLevelChanged EventReason = "STARTLEVEL_CHANGED"
	ReasonFrameworkStopped  EventReason = "STOPPED"
	ReasonWaitTimedOut      EventReason = "WAIT_TIMEDOUT"
)

// Bundle event reasons
const (
	ReasonBundleInstalled   EventReason = "BUNDLE_INSTALLED"
	ReasonBundleResolved    EventReason = "BUNDLE_RESOLVED"
	ReasonBundleStarting    EventReason = "BUNDLE_STARTING"
	ReasonBundleStarted     EventReason = "BUNDLE_STARTED"
	ReasonBundleStopping    EventReason = "BUNDLE_STOPPING"
	ReasonBundleStopped     EventReason = "BUNDLE_STOPPED"
	ReasonBundleUpdated     EventReason = "BUNDLE_UPDATED"
	ReasonBundleUnresolved  EventReason = "BUNDLE_UNRESOLVED"
	ReasonBundleUninstalled EventReason = "BUNDLE_UNINSTALLED"
)

// Service event reasons
const (
	ReasonServiceRegistered    EventReason = "SERVICE_REGISTERED"
	ReasonServiceModified      EventReason = "SERVICE_MODIFIED"
	ReasonServiceUnregistering EventReason = "SERVICE_UNREGISTERING"
)

// Event is a single notification.
type Event struct {
	Reason EventReason
	Type   EventType

	// Bundle is the bundle the event is about. Framework events use the
	// system bundle unless an individual bundle caused them.
	Bundle       module.BundleID
	SymbolicName string
	Location     string

	// ServiceID and Contracts are set for service events.
	ServiceID int64
	Contracts []string

	// StartLevel is set for STARTLEVEL_CHANGED.
	StartLevel int

	Err       error
	Message   string
	Timestamp time.Time
}

// Category returns the listener category the event belongs to.
func (e Event) Category() Category {
	return categoryOf(e.Reason)
}

// EventData holds contextual information for event message templating.
type EventData struct {
	// Name is the symbolic name of the bundle involved in the event.
	Name string

	// Bundle is the numeric bundle id.
	Bundle int64

	// Location is the install location of the bundle.
	Location string

	// Contracts lists the service contract names for service events.
	Contracts []string

	// ServiceID is the id of the service registration.
	ServiceID int64

	// StartLevel is the new framework start level.
	StartLevel int

	// Error contains error information for failure events.
	Error string
}

func dataFor(e Event) EventData {
	d := EventData{
		Name:       e.SymbolicName,
		Bundle:     int64(e.Bundle),
		Location:   e.Location,
		Contracts:  e.Contracts,
		ServiceID:  e.ServiceID,
		StartLevel: e.StartLevel,
	}
	if e.Err != nil {
		d.Error = e.Err.Error()
	}
	return d
}

func categoryOf(reason EventReason) Category {
	switch reason {
	case ReasonFrameworkStarted, ReasonFrameworkError, ReasonPackagesRefreshed,
		ReasonStartLevelChanged, ReasonFrameworkStopped, ReasonWaitTimedOut:
		return CategoryFramework
	case ReasonServiceRegistered, ReasonServiceModified, ReasonServiceUnregistering:
		return CategoryService
	default:
		return CategoryBundle
	}
}

// getEventType returns the appropriate EventType for a given EventReason.
func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonFrameworkError,
		ReasonWaitTimedOut,
		ReasonBundleUnresolved:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
