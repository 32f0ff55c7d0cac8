package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclicDependency is the kind of every cycle error returned by the orderer.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CyclicDependencyError reports a dependency cycle inside a group. Cycle
// starts and ends with the same task.
type CyclicDependencyError struct {
	Group string
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	path := strings.Join(e.Cycle, " -> ")
	if e.Group == "" {
		return fmt.Sprintf("%s: %s", ErrCyclicDependency, path)
	}
	return fmt.Sprintf("%s in group %q: %s", ErrCyclicDependency, e.Group, path)
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }
