package graph

import "github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"

// Graph is the dependency graph over a set of tasks. Edges run from a
// dependency to the task that needs it; dependencies outside the set are not
// edges.
type Graph struct {
	Tasks  map[string]*pipeline.Task
	Order  []string            // input order
	Adj    map[string][]string // task -> tasks that depend on it, input order
	RevAdj map[string][]string // task -> its dependencies inside the set
	Roots  []string            // tasks with no dependency inside the set
	Leaves []string            // tasks nothing in the set depends on
}

type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)
