// Package cpm computes the critical path of a pipeline's dependency graph.
package cpm

import (
	"fmt"
	"sort"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/graph"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
)

// Analyze performs critical path analysis over every task of the pipeline.
// Dependencies on unknown tasks are ignored.
func Analyze(p *pipeline.Pipeline) (*Result, error) {
	var tasks []pipeline.Task
	for _, grp := range p.Groups {
		tasks = append(tasks, grp.Tasks...)
	}

	g, err := graph.Build(tasks)
	if err != nil {
		return nil, err
	}

	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Tasks:     make(map[string]*TaskSchedule, len(order)),
		TopoOrder: order,
	}
	for _, id := range order {
		result.Tasks[id] = &TaskSchedule{Name: id, Duration: g.Tasks[id].Duration}
	}

	// Forward pass
	for _, id := range order {
		ts := result.Tasks[id]
		es := 0
		for _, pred := range g.RevAdj[id] {
			es = max(es, result.Tasks[pred].EF)
		}
		ts.ES = es
		ts.EF = es + ts.Duration
		result.TotalDuration = max(result.TotalDuration, ts.EF)
	}

	// Backward pass
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Tasks[id]

		lf := result.TotalDuration
		for _, succ := range g.Adj[id] {
			lf = min(lf, result.Tasks[succ].LS)
		}
		ts.LF = lf
		ts.LS = lf - ts.Duration
		ts.Slack = ts.LS - ts.ES
		ts.IsCritical = ts.Slack == 0
	}

	for _, id := range order {
		if result.Tasks[id].IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	result.Waves = computeWaves(result)

	return result, nil
}

// LowerBound returns the best makespan any schedule on cores slots could
// reach: the longer of the critical path and the total work spread evenly.
func LowerBound(r *Result, totalWork, cores int) int {
	if cores < 1 {
		return r.TotalDuration
	}
	return max(r.TotalDuration, (totalWork+cores-1)/cores)
}

// topoSort performs Kahn's algorithm. Ready tasks are taken in pipeline order.
func topoSort(g *graph.Graph) ([]string, error) {
	index := make(map[string]int, len(g.Order))
	inDegree := make(map[string]int, len(g.Order))
	for i, id := range g.Order {
		index[id] = i
		inDegree[id] = len(g.RevAdj[id])
	}

	queue := append([]string(nil), g.Roots...)

	order := make([]string, 0, len(g.Order))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for _, succ := range g.Adj[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newReady = append(newReady, succ)
			}
		}
		sort.Slice(newReady, func(a, b int) bool { return index[newReady[a]] < index[newReady[b]] })
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.Order) {
		if cycle := g.DetectCycle(); cycle != nil {
			return nil, &graph.CyclicDependencyError{Cycle: cycle}
		}
		return nil, fmt.Errorf("topological sort failed: %d of %d tasks sorted: %w", len(order), len(g.Order), graph.ErrCyclicDependency)
	}

	return order, nil
}

// computeWaves groups tasks by earliest start, critical tasks first in each wave.
func computeWaves(result *Result) []Wave {
	esGroups := make(map[int][]string)
	for _, id := range result.TopoOrder {
		es := result.Tasks[id].ES
		esGroups[es] = append(esGroups[es], id)
	}

	starts := make([]int, 0, len(esGroups))
	for es := range esGroups {
		starts = append(starts, es)
	}
	sort.Ints(starts)

	waves := make([]Wave, len(starts))
	for i, es := range starts {
		names := esGroups[es]

		hasCritical := false
		for _, id := range names {
			result.Tasks[id].Wave = i
			if result.Tasks[id].IsCritical {
				hasCritical = true
			}
		}

		sort.SliceStable(names, func(a, b int) bool {
			return result.Tasks[names[a]].IsCritical && !result.Tasks[names[b]].IsCritical
		})

		waves[i] = Wave{Index: i, Start: es, Tasks: names, IsCritical: hasCritical}
	}

	return waves
}
