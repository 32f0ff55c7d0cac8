// Package sim simulates a pipeline on a fixed number of execution slots.
//
// The simulation is a single-threaded discrete clock. Each unit fills up to
// Cores slots from the active ordered group, in group order, then offers
// spare slots to the no_group pool. A group must complete before the next one
// starts. A dependency finished in a unit is only visible from the next unit.
package sim

import (
	"fmt"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
)

type simulation struct {
	cfg       Config
	groups    []*pipeline.Group
	active    int
	pool      []pipeline.Task // unfinished pool tasks, FIFO
	remaining map[string]int
	completed map[string]bool
	clock     int
	result    *Result
}

// Run simulates the pipeline. The pipeline is not modified.
//
// When the schedule stalls the partial result is returned together with a
// *StalledScheduleError.
func Run(p *pipeline.Pipeline, cfg Config) (*Result, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s, err := newSimulation(p, cfg)
	if err != nil {
		return nil, err
	}
	return s.run()
}

func newSimulation(p *pipeline.Pipeline, cfg Config) (*simulation, error) {
	s := &simulation{
		cfg:       cfg,
		groups:    p.OrderedGroups(),
		remaining: make(map[string]int, p.TaskCount()),
		completed: make(map[string]bool, p.TaskCount()),
		result: &Result{
			Cores:    cfg.Cores,
			Policy:   cfg.Pool,
			Started:  make(map[string]int),
			Finished: make(map[string]int),
		},
	}

	for _, g := range p.Groups {
		for _, t := range g.Tasks {
			if t.Duration < 1 {
				return nil, fmt.Errorf("task %q has duration %d: %w", t.Name, t.Duration, pipeline.ErrInvalidPipeline)
			}
			if _, dup := s.remaining[t.Name]; dup {
				return nil, fmt.Errorf("duplicate task %q: %w", t.Name, pipeline.ErrInvalidPipeline)
			}
			s.remaining[t.Name] = t.Duration
		}
	}
	if pool := p.Pool(); pool != nil {
		s.pool = append(s.pool, pool.Tasks...)
	}

	s.advance()
	return s, nil
}

func (s *simulation) run() (*Result, error) {
	for s.active < len(s.groups) || len(s.pool) > 0 {
		step, ok := s.step()
		if !ok {
			pending := s.pending()
			s.result.Stalled = true
			s.result.Pending = pending
			s.result.Makespan = s.clock
			s.cfg.Logger.Debugf("stalled at time %d with %d pending tasks", s.clock+1, len(pending))
			return s.result, &StalledScheduleError{Time: s.clock + 1, Pending: pending}
		}
		s.result.Trace = append(s.result.Trace, step)
	}

	s.result.Makespan = s.clock
	s.cfg.Logger.Debugf("simulation finished, makespan %d", s.clock)
	return s.result, nil
}

// step simulates one time unit. It returns false, leaving the clock
// untouched, when nothing could be scheduled.
func (s *simulation) step() (Step, bool) {
	free := s.cfg.Cores
	var scheduled []string

	label := pipeline.NoGroup
	if s.active < len(s.groups) {
		g := s.groups[s.active]
		label = g.Name
		for _, t := range g.Tasks {
			if free == 0 {
				break
			}
			if s.completed[t.Name] || !s.ready(t) {
				continue
			}
			scheduled = append(scheduled, t.Name)
			free--
		}
	}

	if free > 0 {
		scheduled = append(scheduled, s.admitPool(free)...)
	}

	if len(scheduled) == 0 {
		return Step{}, false
	}

	s.clock++
	var finished []string
	for _, name := range scheduled {
		if _, ok := s.result.Started[name]; !ok {
			s.result.Started[name] = s.clock
		}
		s.remaining[name]--
		if s.remaining[name] == 0 {
			finished = append(finished, name)
		}
	}

	// Completion is recorded only after selection so it becomes visible
	// from the next unit.
	for _, name := range finished {
		s.completed[name] = true
		s.result.Finished[name] = s.clock
	}
	s.dropFinishedFromPool()
	s.advance()

	s.cfg.Logger.Debugf("time %d group %s: %v", s.clock, label, scheduled)
	return Step{Time: s.clock, Tasks: scheduled, Group: label}, true
}

// admitPool picks pool tasks for up to free slots according to the policy.
func (s *simulation) admitPool(free int) []string {
	if len(s.pool) == 0 {
		return nil
	}

	if s.cfg.Pool == PoolSingle {
		if head := s.pool[0]; s.ready(head) {
			return []string{head.Name}
		}
		return nil
	}

	var picked []string
	for _, t := range s.pool {
		if free == 0 {
			break
		}
		if s.ready(t) {
			picked = append(picked, t.Name)
			free--
		}
	}
	return picked
}

func (s *simulation) ready(t pipeline.Task) bool {
	for _, dep := range t.Dependencies {
		if !s.completed[dep] {
			return false
		}
	}
	return true
}

func (s *simulation) dropFinishedFromPool() {
	kept := s.pool[:0]
	for _, t := range s.pool {
		if !s.completed[t.Name] {
			kept = append(kept, t)
		}
	}
	s.pool = kept
}

// advance moves past every ordered group whose tasks are all complete.
func (s *simulation) advance() {
	for s.active < len(s.groups) {
		for _, t := range s.groups[s.active].Tasks {
			if !s.completed[t.Name] {
				return
			}
		}
		s.active++
	}
}

func (s *simulation) pending() []string {
	var out []string
	for _, g := range s.groups[s.active:] {
		for _, t := range g.Tasks {
			if !s.completed[t.Name] {
				out = append(out, t.Name)
			}
		}
	}
	for _, t := range s.pool {
		out = append(out, t.Name)
	}
	return out
}
