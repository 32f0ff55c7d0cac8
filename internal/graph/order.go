package graph

import (
	"errors"
	"fmt"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
)

// Order reorders the group's tasks in place so every task follows its
// intra-group dependencies. Dependencies on tasks outside the group are left
// for the simulator. On error the group is not modified.
func Order(grp *pipeline.Group) error {
	g, err := Build(grp.Tasks)
	if err != nil {
		return fmt.Errorf("group %q: %w", grp.Name, err)
	}

	order, err := g.TopoOrder()
	if err != nil {
		var ce *CyclicDependencyError
		if errors.As(err, &ce) {
			ce.Group = grp.Name
		}
		return err
	}

	sorted := make([]pipeline.Task, 0, len(order))
	for _, name := range order {
		sorted = append(sorted, *g.Tasks[name])
	}
	copy(grp.Tasks, sorted)
	return nil
}

// OrderPipeline orders every group of the pipeline, the pool included. It
// stops at the first group that cannot be ordered.
func OrderPipeline(p *pipeline.Pipeline) error {
	for _, grp := range p.Groups {
		if err := Order(grp); err != nil {
			return err
		}
	}
	return nil
}
