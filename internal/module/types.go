package module

import (
	"fmt"
	"time"

	"gosgi/internal/version"
)

// ID identifies a module inside a Graph. IDs are never reused.
type ID int64

// BundleID identifies the bundle that owns a module. Bundle 0 is the system bundle.
type BundleID int64

// SystemBundleID is the id of the framework's own bundle.
const SystemBundleID BundleID = 0

// CapabilityKind is the closed set of capability variants.
type CapabilityKind int

const (
	CapabilityPackage CapabilityKind = iota
	CapabilityBundle
)

func (k CapabilityKind) String() string {
	switch k {
	case CapabilityPackage:
		return "package"
	case CapabilityBundle:
		return "bundle"
	default:
		return "unknown"
	}
}

// RequirementKind is the closed set of requirement variants.
type RequirementKind int

const (
	RequirementImportPackage RequirementKind = iota
	RequirementRequireBundle
	RequirementDynamicImport
)

func (k RequirementKind) String() string {
	switch k {
	case RequirementImportPackage:
		return "import-package"
	case RequirementRequireBundle:
		return "require-bundle"
	case RequirementDynamicImport:
		return "dynamic-import"
	default:
		return "unknown"
	}
}

// Satisfies reports whether a capability of kind c can satisfy a requirement of kind k.
func (k RequirementKind) Satisfies(c CapabilityKind) bool {
	switch k {
	case RequirementImportPackage, RequirementDynamicImport:
		return c == CapabilityPackage
	case RequirementRequireBundle:
		return c == CapabilityBundle
	default:
		return false
	}
}

// Resolution is the resolution directive of a requirement.
type Resolution int

const (
	ResolutionMandatory Resolution = iota
	ResolutionOptional
)

func (r Resolution) String() string {
	if r == ResolutionOptional {
		return "optional"
	}
	return "mandatory"
}

// Well-known attribute names matched against the exporting module's identity.
const (
	AttrBundleSymbolicName = "bundle-symbolic-name"
	AttrBundleVersion      = "bundle-version"
	AttrVersion            = "version"
)

// Capability is something a module offers.
type Capability struct {
	Kind       CapabilityKind
	Name       string
	Version    version.Version
	Attributes map[string]string
	// Mandatory lists attribute names an importer must specify to match.
	Mandatory []string
	Module    ID
}

func (c Capability) String() string {
	return fmt.Sprintf("%s %s;version=%s", c.Kind, c.Name, c.Version)
}

// Requirement is something a module needs.
type Requirement struct {
	Kind       RequirementKind
	Name       string
	Range      version.Range
	Attributes map[string]string
	Resolution Resolution

	// BundleSymbolicName and BundleVersion restrict candidates to a
	// specific exporting bundle.
	BundleSymbolicName string
	BundleVersion      *version.Range

	// Reexport makes a required bundle's packages visible to the
	// requirer's own requirers.
	Reexport bool

	Module ID
}

// Optional reports whether the requirement may stay unwired.
func (r Requirement) Optional() bool {
	return r.Resolution == ResolutionOptional
}

// Specifies reports whether the requirement names the given attribute,
// which is what a capability's mandatory directive checks.
func (r Requirement) Specifies(attr string) bool {
	switch attr {
	case AttrBundleSymbolicName:
		if r.BundleSymbolicName != "" {
			return true
		}
	case AttrBundleVersion:
		if r.BundleVersion != nil {
			return true
		}
	case AttrVersion:
		if r.Range != version.Any {
			return true
		}
	}
	_, ok := r.Attributes[attr]
	return ok
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s %s;version=%q;resolution=%s", r.Kind, r.Name, r.Range, r.Resolution)
}

// Wire is a committed binding from a requirement to a capability.
type Wire struct {
	Requirement Requirement
	Capability  Capability
	Importer    ID
	Exporter    ID
	CreatedAt   time.Time
}

func (w Wire) String() string {
	return fmt.Sprintf("%d:%s -> %d:%s", w.Importer, w.Requirement.Name, w.Exporter, w.Capability)
}

// Module is one revision of a bundle. It is immutable once added to a Graph.
type Module struct {
	ID           ID
	Bundle       BundleID
	SymbolicName string
	Version      version.Version
	Revision     int
	Capabilities []Capability
	Requirements []Requirement
	// Content maps package names to the class names the revision carries.
	Content map[string][]string
}

func (m *Module) String() string {
	return fmt.Sprintf("%s:%s[%d.%d]", m.SymbolicName, m.Version, m.Bundle, m.Revision)
}

// Exports returns the module's package capabilities.
func (m *Module) Exports() []Capability {
	var out []Capability
	for _, c := range m.Capabilities {
		if c.Kind == CapabilityPackage {
			out = append(out, c)
		}
	}
	return out
}

// HasClass reports whether the module's own content holds the class.
func (m *Module) HasClass(pkg, class string) bool {
	for _, c := range m.Content[pkg] {
		if c == class {
			return true
		}
	}
	return false
}

// ResolutionState is the resolution state of a module.
type ResolutionState int

const (
	Unresolved ResolutionState = iota
	Resolved
)

func (s ResolutionState) String() string {
	if s == Resolved {
		return "RESOLVED"
	}
	return "UNRESOLVED"
}
