package metadata

import (
	"errors"
	"fmt"
)

// ParseError reports a descriptor that cannot become a module.
type ParseError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Err != nil && e.Err.Error() != e.Reason {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "invalid bundle descriptor: " + msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError checks whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
