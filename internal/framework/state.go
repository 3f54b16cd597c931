package framework

// BundleState is the lifecycle state of a bundle.
type BundleState int

const (
	StateInstalled BundleState = iota
	StateResolved
	StateStarting
	StateActive
	StateStopping
	StateUninstalled
)

// AllStates lists every state in lifecycle order.
var AllStates = []BundleState{
	StateInstalled, StateResolved, StateStarting, StateActive, StateStopping, StateUninstalled,
}

func (s BundleState) String() string {
	switch s {
	case StateInstalled:
		return "INSTALLED"
	case StateResolved:
		return "RESOLVED"
	case StateStarting:
		return "STARTING"
	case StateActive:
		return "ACTIVE"
	case StateStopping:
		return "STOPPING"
	case StateUninstalled:
		return "UNINSTALLED"
	default:
		return "UNKNOWN"
	}
}

// running reports whether an activator may currently be executing.
func (s BundleState) running() bool {
	return s == StateStarting || s == StateActive || s == StateStopping
}
