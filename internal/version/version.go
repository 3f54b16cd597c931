// Package version implements bundle versions and version ranges.
//
// A version has the form major[.minor[.micro[.qualifier]]]. The numeric core
// is parsed and ordered with github.com/Masterminds/semver/v3; the qualifier
// is kept as a string and compared after the numeric core.
package version

import (
	"fmt"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a bundle or package version. The zero value is 0.0.0.
type Version struct {
	Major     uint64
	Minor     uint64
	Micro     uint64
	Qualifier string
}

// Empty is the 0.0.0 version used when metadata omits a version.
var Empty = Version{}

// Parse parses a version string. An empty string yields Empty.
func Parse(raw string) (Version, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Empty, nil
	}

	parts := strings.SplitN(s, ".", 4)
	core := make([]string, 3)
	for i := range core {
		core[i] = "0"
	}
	for i := 0; i < len(parts) && i < 3; i++ {
		if !isDigits(parts[i]) {
			return Empty, &ParseError{Input: raw, Reason: fmt.Sprintf("non-numeric segment %q", parts[i])}
		}
		core[i] = parts[i]
	}

	v, err := mm.NewVersion(strings.Join(core, "."))
	if err != nil {
		return Empty, &ParseError{Input: raw, Reason: err.Error()}
	}

	out := Version{Major: v.Major(), Minor: v.Minor(), Micro: v.Patch()}
	if len(parts) == 4 {
		if !isQualifier(parts[3]) {
			return Empty, &ParseError{Input: raw, Reason: fmt.Sprintf("invalid qualifier %q", parts[3])}
		}
		out.Qualifier = parts[3]
	}
	return out, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int {
	if c := a.core().Compare(b.core()); c != 0 {
		return c
	}
	return compareQualifier(a.Qualifier, b.Qualifier)
}

// core is the numeric part of v. Qualifiers never become semver
// pre-releases: 1.0.0.beta sorts after 1.0.0.
func (v Version) core() *mm.Version {
	return mm.New(v.Major, v.Minor, v.Micro, "", "")
}

// Compare is a method form of Compare.
func (v Version) Compare(o Version) int {
	return Compare(v, o)
}

func (v Version) String() string {
	if v.Qualifier == "" {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
	}
	return fmt.Sprintf("%d.%d.%d.%s", v.Major, v.Minor, v.Micro, v.Qualifier)
}

// MarshalYAML renders the version as its canonical string.
func (v Version) MarshalYAML() (interface{}, error) {
	return v.String(), nil
}

func compareQualifier(a, b string) int {
	if a == b {
		return 0
	}
	an, aerr := strconv.ParseUint(a, 10, 64)
	bn, berr := strconv.ParseUint(b, 10, 64)
	if aerr == nil && berr == nil {
		return cmpUint(an, bn)
	}
	return strings.Compare(a, b)
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isQualifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
