package version

import (
	"fmt"
	"strings"
)

// Range is a version interval. A nil Ceiling means the range is unbounded
// above, which is what a bare version string produces.
type Range struct {
	Floor            Version
	FloorInclusive   bool
	Ceiling          *Version
	CeilingInclusive bool
}

// Any matches every version.
var Any = Range{Floor: Empty, FloorInclusive: true}

// AtLeast returns the unbounded range [v, infinity).
func AtLeast(v Version) Range {
	return Range{Floor: v, FloorInclusive: true}
}

// Exact returns the range [v, v].
func Exact(v Version) Range {
	c := v
	return Range{Floor: v, FloorInclusive: true, Ceiling: &c, CeilingInclusive: true}
}

// ParseRange parses "v", "[a,b]", "[a,b)", "(a,b]" or "(a,b)".
// An empty string yields Any.
func ParseRange(raw string) (Range, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Any, nil
	}

	first := s[0]
	if first != '[' && first != '(' {
		if strings.ContainsAny(s, "[](),") {
			return Range{}, &ParseError{Input: raw, Reason: "unexpected interval characters in bare version"}
		}
		v, err := Parse(s)
		if err != nil {
			return Range{}, err
		}
		return AtLeast(v), nil
	}

	last := s[len(s)-1]
	if last != ']' && last != ')' {
		return Range{}, &ParseError{Input: raw, Reason: "missing closing bracket"}
	}

	body := s[1 : len(s)-1]
	bounds := strings.Split(body, ",")
	if len(bounds) != 2 {
		return Range{}, &ParseError{Input: raw, Reason: "interval must have exactly two bounds"}
	}

	floor, err := Parse(bounds[0])
	if err != nil {
		return Range{}, &ParseError{Input: raw, Reason: fmt.Sprintf("floor: %v", err)}
	}
	ceiling, err := Parse(bounds[1])
	if err != nil {
		return Range{}, &ParseError{Input: raw, Reason: fmt.Sprintf("ceiling: %v", err)}
	}
	if strings.TrimSpace(bounds[0]) == "" || strings.TrimSpace(bounds[1]) == "" {
		return Range{}, &ParseError{Input: raw, Reason: "empty bound"}
	}

	r := Range{
		Floor:            floor,
		FloorInclusive:   first == '[',
		Ceiling:          &ceiling,
		CeilingInclusive: last == ']',
	}
	if c := Compare(floor, ceiling); c > 0 || (c == 0 && !(r.FloorInclusive && r.CeilingInclusive)) {
		return Range{}, &ParseError{Input: raw, Reason: "floor is above ceiling"}
	}
	return r, nil
}

// MustParseRange is like ParseRange but panics on malformed input.
func MustParseRange(raw string) Range {
	r, err := ParseRange(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// Includes reports whether v lies inside the range.
func (r Range) Includes(v Version) bool {
	c := Compare(v, r.Floor)
	if c < 0 || (c == 0 && !r.FloorInclusive) {
		return false
	}
	if r.Ceiling == nil {
		return true
	}
	c = Compare(v, *r.Ceiling)
	return c < 0 || (c == 0 && r.CeilingInclusive)
}

// IsUnbounded reports whether the range has no ceiling.
func (r Range) IsUnbounded() bool {
	return r.Ceiling == nil
}

func (r Range) String() string {
	if r.Ceiling == nil {
		return r.Floor.String()
	}
	open, closing := "(", ")"
	if r.FloorInclusive {
		open = "["
	}
	if r.CeilingInclusive {
		closing = "]"
	}
	return fmt.Sprintf("%s%s,%s%s", open, r.Floor, r.Ceiling, closing)
}
