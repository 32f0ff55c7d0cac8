package loader

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat is the kind of every parse error.
var ErrInvalidFormat = errors.New("invalid pipeline format")

// ParseError reports a malformed pipeline file. Line is 1-based, 0 when the
// problem is not tied to a line.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrInvalidFormat }
