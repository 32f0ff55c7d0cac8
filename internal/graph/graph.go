// Package graph orders tasks by their dependencies.
package graph

import (
	"errors"
	"fmt"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
)

// Build constructs the dependency graph of tasks. Task names must be unique.
func Build(tasks []pipeline.Task) (*Graph, error) {
	g := &Graph{
		Tasks:  make(map[string]*pipeline.Task, len(tasks)),
		Order:  make([]string, 0, len(tasks)),
		Adj:    make(map[string][]string),
		RevAdj: make(map[string][]string),
	}

	for i := range tasks {
		t := &tasks[i]
		if _, ok := g.Tasks[t.Name]; ok {
			return nil, fmt.Errorf("duplicate task %q: %w", t.Name, pipeline.ErrInvalidPipeline)
		}
		g.Tasks[t.Name] = t
		g.Order = append(g.Order, t.Name)
	}

	edgeSet := make(map[[2]string]bool)
	for _, id := range g.Order {
		for _, dep := range g.Tasks[id].Dependencies {
			if _, ok := g.Tasks[dep]; !ok {
				continue
			}
			key := [2]string{dep, id}
			if edgeSet[key] {
				continue
			}
			edgeSet[key] = true
			g.Adj[dep] = append(g.Adj[dep], id)
			g.RevAdj[id] = append(g.RevAdj[id], dep)
		}
	}

	for _, id := range g.Order {
		if len(g.RevAdj[id]) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(g.Adj[id]) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}

	return g, nil
}

// TopoOrder returns the task names in dependency order: every task comes
// after all of its dependencies in the set.
//
// It is a reverse post-order depth-first traversal driven by an explicit
// stack. Roots and successors are walked in reverse input order so tasks with
// no constraint between them keep their input order, and ordering an already
// ordered list returns it unchanged.
func (g *Graph) TopoOrder() ([]string, error) {
	type frame struct {
		node string
		next int // successors still to visit, walked from the back
	}

	state := make(map[string]visitState, len(g.Order))
	out := make([]string, len(g.Order))
	pos := len(out)

	for r := len(g.Order) - 1; r >= 0; r-- {
		root := g.Order[r]
		if state[root] != unvisited {
			continue
		}

		state[root] = inProgress
		stack := []frame{{node: root, next: len(g.Adj[root])}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == 0 {
				state[top.node] = done
				pos--
				out[pos] = top.node
				stack = stack[:len(stack)-1]
				continue
			}

			top.next--
			succ := g.Adj[top.node][top.next]
			switch state[succ] {
			case unvisited:
				state[succ] = inProgress
				stack = append(stack, frame{node: succ, next: len(g.Adj[succ])})
			case inProgress:
				cycle := []string{}
				for i := range stack {
					if stack[i].node == succ {
						for _, f := range stack[i:] {
							cycle = append(cycle, f.node)
						}
						break
					}
				}
				cycle = append(cycle, succ)
				return nil, &CyclicDependencyError{Cycle: cycle}
			}
		}
	}

	return out, nil
}

// DetectCycle returns a cycle path if one exists, or nil if the graph is acyclic.
func (g *Graph) DetectCycle() []string {
	if _, err := g.TopoOrder(); err != nil {
		var ce *CyclicDependencyError
		if errors.As(err, &ce) {
			return ce.Cycle
		}
	}
	return nil
}

// TaskCount returns the number of tasks in the graph.
func (g *Graph) TaskCount() int {
	return len(g.Tasks)
}
