// Package pipeline holds the Task, Group and Pipeline model shared by the
// orderer, the simulator and the loaders.
package pipeline

import (
	"errors"
	"fmt"
)

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// AddTask appends t to the named group, creating the group the first time it
// is seen. An empty group name means NoGroup.
func (p *Pipeline) AddTask(group string, t Task) {
	if group == "" {
		group = NoGroup
	}
	g := p.Group(group)
	if g == nil {
		g = &Group{Name: group}
		p.Groups = append(p.Groups, g)
	}
	t.Dependencies = dedupe(t.Dependencies)
	g.Tasks = append(g.Tasks, t)
}

// Group returns the first group with the given name, or nil.
func (p *Pipeline) Group(name string) *Group {
	for _, g := range p.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// OrderedGroups returns every group except the pool, in pipeline order.
func (p *Pipeline) OrderedGroups() []*Group {
	var out []*Group
	for _, g := range p.Groups {
		if !g.IsPool() {
			out = append(out, g)
		}
	}
	return out
}

// Pool returns the no_group pool, or nil if the pipeline has none.
func (p *Pipeline) Pool() *Group {
	return p.Group(NoGroup)
}

// TaskCount returns the number of tasks across all groups.
func (p *Pipeline) TaskCount() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Tasks)
	}
	return n
}

// TotalWork returns the sum of all task durations.
func (p *Pipeline) TotalWork() int {
	total := 0
	for _, g := range p.Groups {
		for _, t := range g.Tasks {
			total += t.Duration
		}
	}
	return total
}

// Lookup finds a task by name anywhere in the pipeline.
func (p *Pipeline) Lookup(name string) (*Task, *Group, bool) {
	for _, g := range p.Groups {
		for i := range g.Tasks {
			if g.Tasks[i].Name == name {
				return &g.Tasks[i], g, true
			}
		}
	}
	return nil, nil, false
}

// Clone returns a deep copy of the pipeline.
func (p *Pipeline) Clone() *Pipeline {
	out := &Pipeline{Groups: make([]*Group, 0, len(p.Groups))}
	for _, g := range p.Groups {
		ng := &Group{Name: g.Name, Tasks: make([]Task, len(g.Tasks))}
		for i, t := range g.Tasks {
			ng.Tasks[i] = Task{
				Name:         t.Name,
				Duration:     t.Duration,
				Dependencies: append([]string(nil), t.Dependencies...),
			}
		}
		out.Groups = append(out.Groups, ng)
	}
	return out
}

// Validate checks the pipeline invariants and reports every violation found.
func (p *Pipeline) Validate() error {
	var errs []error

	seen := make(map[string]string) // task -> group
	pools := 0
	for _, g := range p.Groups {
		if g.Name == "" {
			errs = append(errs, fmt.Errorf("group with empty name: %w", ErrInvalidPipeline))
		}
		if g.IsPool() {
			pools++
		}
		for _, t := range g.Tasks {
			if t.Name == "" {
				errs = append(errs, fmt.Errorf("task with empty name in group %q: %w", g.Name, ErrInvalidPipeline))
				continue
			}
			if prev, ok := seen[t.Name]; ok {
				errs = append(errs, fmt.Errorf("duplicate task %q in groups %q and %q: %w", t.Name, prev, g.Name, ErrInvalidPipeline))
				continue
			}
			seen[t.Name] = g.Name
			if t.Duration < 1 {
				errs = append(errs, fmt.Errorf("task %q has duration %d, must be at least 1: %w", t.Name, t.Duration, ErrInvalidPipeline))
			}
		}
	}
	if pools > 1 {
		errs = append(errs, fmt.Errorf("%d %s groups, at most one allowed: %w", pools, NoGroup, ErrInvalidPipeline))
	}

	for _, g := range p.Groups {
		for _, t := range g.Tasks {
			for _, dep := range t.Dependencies {
				if _, ok := seen[dep]; !ok {
					errs = append(errs, &UnknownDependencyError{Task: t.Name, Dependency: dep})
				}
			}
		}
	}

	return errors.Join(errs...)
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
