// Package metadata parses bundle descriptors.
//
// A bundle is distributed as a single YAML document that names the bundle,
// declares its exported and imported packages and lists the classes each
// package carries:
//
//	symbolicName: org.acme.greeter
//	version: 1.0.0
//	activator: greeter
//	startLevel: 2
//	exports:
//	  - name: org.acme.greeter
//	    version: 1.0.0
//	imports:
//	  - name: org.acme.log
//	    version: "[1.0,2.0)"
//	    resolution: optional
//	requireBundles:
//	  - name: org.acme.lib
//	    visibility: reexport
//	dynamicImports: ["org.acme.spi.*"]
//	packages:
//	  org.acme.greeter: [Greeter, DefaultGreeter]
//
// Unknown keys are rejected so that typos do not silently change wiring.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gosgi/internal/module"
	"gosgi/internal/version"
)

// Export describes one exported package.
type Export struct {
	Name       string            `yaml:"name"`
	Version    string            `yaml:"version,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Mandatory  []string          `yaml:"mandatory,omitempty"`
}

// Import describes one imported package.
type Import struct {
	Name               string            `yaml:"name"`
	Version            string            `yaml:"version,omitempty"`
	Resolution         string            `yaml:"resolution,omitempty"`
	Attributes         map[string]string `yaml:"attributes,omitempty"`
	BundleSymbolicName string            `yaml:"bundleSymbolicName,omitempty"`
	BundleVersion      string            `yaml:"bundleVersion,omitempty"`
}

// RequireBundle describes one required bundle.
type RequireBundle struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version,omitempty"`
	Resolution string `yaml:"resolution,omitempty"`
	Visibility string `yaml:"visibility,omitempty"`
}

// Descriptor is the raw YAML form of a bundle.
type Descriptor struct {
	SymbolicName   string              `yaml:"symbolicName"`
	Version        string              `yaml:"version,omitempty"`
	Name           string              `yaml:"name,omitempty"`
	Activator      string              `yaml:"activator,omitempty"`
	StartLevel     int                 `yaml:"startLevel,omitempty"`
	Exports        []Export            `yaml:"exports,omitempty"`
	Imports        []Import            `yaml:"imports,omitempty"`
	RequireBundles []RequireBundle     `yaml:"requireBundles,omitempty"`
	DynamicImports []string            `yaml:"dynamicImports,omitempty"`
	Packages       map[string][]string `yaml:"packages,omitempty"`
}

// Metadata is a validated descriptor converted to the resolver model.
type Metadata struct {
	Descriptor   Descriptor
	SymbolicName string
	Version      version.Version
	Activator    string
	StartLevel   int
	Capabilities []module.Capability
	Requirements []module.Requirement
	Content      map[string][]string
	// Raw holds the bytes the metadata was parsed from.
	Raw []byte
}

// Parse reads a descriptor and validates it.
func Parse(r io.Reader) (*Metadata, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle content: %w", err)
	}

	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Reason: "empty descriptor"}
		}
		return nil, &ParseError{Reason: "malformed YAML", Err: err}
	}

	md, err := FromDescriptor(d)
	if err != nil {
		return nil, err
	}
	md.Raw = raw
	return md, nil
}

// FromDescriptor validates d and converts it.
func FromDescriptor(d Descriptor) (*Metadata, error) {
	name := strings.TrimSpace(d.SymbolicName)
	if name == "" {
		return nil, &ParseError{Field: "symbolicName", Reason: "is required"}
	}
	v, err := version.Parse(d.Version)
	if err != nil {
		return nil, &ParseError{Field: "version", Reason: "invalid bundle version", Err: err}
	}
	if d.StartLevel < 0 {
		return nil, &ParseError{Field: "startLevel", Reason: "must not be negative"}
	}

	md := &Metadata{
		Descriptor:   d,
		SymbolicName: name,
		Version:      v,
		Activator:    strings.TrimSpace(d.Activator),
		StartLevel:   d.StartLevel,
		Content:      make(map[string][]string, len(d.Packages)),
	}

	// Every bundle offers its own identity for require-bundle.
	md.Capabilities = append(md.Capabilities, module.Capability{
		Kind:    module.CapabilityBundle,
		Name:    name,
		Version: v,
	})

	seen := make(map[string]bool)
	for i, e := range d.Exports {
		field := fmt.Sprintf("exports[%d]", i)
		if strings.TrimSpace(e.Name) == "" {
			return nil, &ParseError{Field: field, Reason: "package name is required"}
		}
		if seen[e.Name] {
			return nil, &ParseError{Field: field, Reason: fmt.Sprintf("package %s exported twice", e.Name)}
		}
		seen[e.Name] = true
		ev, err := version.Parse(e.Version)
		if err != nil {
			return nil, &ParseError{Field: field, Reason: "invalid export version", Err: err}
		}
		for _, m := range e.Mandatory {
			if _, ok := e.Attributes[m]; !ok && m != module.AttrBundleSymbolicName && m != module.AttrBundleVersion {
				return nil, &ParseError{Field: field, Reason: fmt.Sprintf("mandatory attribute %s is not declared", m)}
			}
		}
		md.Capabilities = append(md.Capabilities, module.Capability{
			Kind:       module.CapabilityPackage,
			Name:       e.Name,
			Version:    ev,
			Attributes: copyMap(e.Attributes),
			Mandatory:  append([]string(nil), e.Mandatory...),
		})
	}

	for i, imp := range d.Imports {
		field := fmt.Sprintf("imports[%d]", i)
		if strings.TrimSpace(imp.Name) == "" {
			return nil, &ParseError{Field: field, Reason: "package name is required"}
		}
		req, err := importRequirement(imp)
		if err != nil {
			return nil, &ParseError{Field: field, Reason: err.Error(), Err: err}
		}
		md.Requirements = append(md.Requirements, req)
	}

	for i, rb := range d.RequireBundles {
		field := fmt.Sprintf("requireBundles[%d]", i)
		if strings.TrimSpace(rb.Name) == "" {
			return nil, &ParseError{Field: field, Reason: "bundle name is required"}
		}
		rng, err := version.ParseRange(rb.Version)
		if err != nil {
			return nil, &ParseError{Field: field, Reason: "invalid version range", Err: err}
		}
		res, err := parseResolution(rb.Resolution)
		if err != nil {
			return nil, &ParseError{Field: field, Reason: err.Error()}
		}
		var reexport bool
		switch rb.Visibility {
		case "", "private":
		case "reexport":
			reexport = true
		default:
			return nil, &ParseError{Field: field, Reason: fmt.Sprintf("unknown visibility %q", rb.Visibility)}
		}
		md.Requirements = append(md.Requirements, module.Requirement{
			Kind:       module.RequirementRequireBundle,
			Name:       rb.Name,
			Range:      rng,
			Resolution: res,
			Reexport:   reexport,
		})
	}

	for i, pattern := range d.DynamicImports {
		p := strings.TrimSpace(pattern)
		if p == "" || (strings.Contains(p, "*") && p != "*" && !strings.HasSuffix(p, ".*")) {
			return nil, &ParseError{Field: fmt.Sprintf("dynamicImports[%d]", i), Reason: fmt.Sprintf("invalid pattern %q", pattern)}
		}
		md.Requirements = append(md.Requirements, module.Requirement{
			Kind:       module.RequirementDynamicImport,
			Name:       p,
			Range:      version.Any,
			Resolution: module.ResolutionOptional,
		})
	}

	pkgs := make([]string, 0, len(d.Packages))
	for pkg := range d.Packages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	for _, pkg := range pkgs {
		md.Content[pkg] = append([]string(nil), d.Packages[pkg]...)
	}
	return md, nil
}

func importRequirement(imp Import) (module.Requirement, error) {
	rng, err := version.ParseRange(imp.Version)
	if err != nil {
		return module.Requirement{}, err
	}
	res, err := parseResolution(imp.Resolution)
	if err != nil {
		return module.Requirement{}, err
	}
	req := module.Requirement{
		Kind:               module.RequirementImportPackage,
		Name:               imp.Name,
		Range:              rng,
		Attributes:         copyMap(imp.Attributes),
		Resolution:         res,
		BundleSymbolicName: imp.BundleSymbolicName,
	}
	if imp.BundleVersion != "" {
		bv, err := version.ParseRange(imp.BundleVersion)
		if err != nil {
			return module.Requirement{}, err
		}
		req.BundleVersion = &bv
	}
	return req, nil
}

func parseResolution(s string) (module.Resolution, error) {
	switch s {
	case "", "mandatory":
		return module.ResolutionMandatory, nil
	case "optional":
		return module.ResolutionOptional, nil
	default:
		return module.ResolutionMandatory, fmt.Errorf("unknown resolution %q", s)
	}
}

func copyMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Module builds the module for one revision of a bundle.
func (md *Metadata) Module(bundle module.BundleID, revision int) *module.Module {
	return &module.Module{
		Bundle:       bundle,
		SymbolicName: md.SymbolicName,
		Version:      md.Version,
		Revision:     revision,
		Capabilities: append([]module.Capability(nil), md.Capabilities...),
		Requirements: append([]module.Requirement(nil), md.Requirements...),
		Content:      md.Content,
	}
}

// Marshal renders a descriptor back to YAML.
func Marshal(d Descriptor) ([]byte, error) {
	return yaml.Marshal(d)
}
