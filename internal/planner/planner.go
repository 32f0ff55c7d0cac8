// Package planner turns a loaded pipeline into an execution plan: it
// validates, orders, simulates and analyzes it.
package planner

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/cpm"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/graph"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/log"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/sim"
)

// Generate creates an ExecutionPlan for p. The input pipeline is not modified.
//
// When the simulation stalls the plan is still returned, marked Stalled,
// together with the *sim.StalledScheduleError.
func Generate(p *pipeline.Pipeline, config PlanConfig) (*ExecutionPlan, error) {
	logger := config.Logger
	if logger == nil {
		logger = log.Noop
	}
	logger = logger.WithValues(log.Kv{"svc": "planner.Generate"})

	if config.Pool == "" {
		config.Pool = sim.PoolSingle
	}

	ordered, err := prepare(p, config)
	if err != nil {
		return nil, err
	}

	res, simErr := sim.Run(ordered, sim.Config{Cores: config.Cores, Pool: config.Pool, Logger: logger})
	if simErr != nil && !errors.Is(simErr, sim.ErrStalledSchedule) {
		return nil, simErr
	}

	now := time.Now().UTC()
	plan := &ExecutionPlan{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		CreatedAt:   now,
		Source:      config.Source,
		Config:      config,
		Trace:       res.Trace,
		Makespan:    res.Makespan,
		Stalled:     res.Stalled,
		Pending:     res.Pending,
		Utilization: res.Utilization(),
		TotalTasks:  ordered.TaskCount(),
		TotalWork:   ordered.TotalWork(),
	}
	for _, g := range ordered.Groups {
		pg := PlannedGroup{Name: g.Name, Pool: g.IsPool()}
		for _, t := range g.Tasks {
			pg.Tasks = append(pg.Tasks, t.Name)
		}
		plan.Groups = append(plan.Groups, pg)
	}

	// Dependencies across groups may still form a cycle the per group
	// orderer cannot see; such a pipeline always stalls.
	analysis, err := cpm.Analyze(ordered)
	if err != nil {
		logger.Warningf("critical path analysis failed: %s", err)
		if simErr == nil {
			return nil, err
		}
	} else {
		plan.CriticalPath = analysis.CriticalPath
		plan.Waves = analysis.Waves
		plan.LowerBound = cpm.LowerBound(analysis, plan.TotalWork, config.Cores)
	}

	logger.Infof("plan %s: %d tasks, makespan %d on %d cores", plan.ID, plan.TotalTasks, plan.Makespan, config.Cores)
	return plan, simErr
}

// Sweep simulates p once per core count in [from, to], concurrently. Points
// are returned ordered by cores. A stalled simulation is recorded in its
// point; any other failure aborts the sweep.
func Sweep(ctx context.Context, p *pipeline.Pipeline, config PlanConfig, from, to int) ([]SweepPoint, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("invalid core range %d..%d: %w", from, to, sim.ErrInvalidCores)
	}
	if config.Pool == "" {
		config.Pool = sim.PoolSingle
	}

	ordered, err := prepare(p, config)
	if err != nil {
		return nil, err
	}

	var lowerBound func(int) int
	if analysis, err := cpm.Analyze(ordered); err == nil {
		lowerBound = func(cores int) int { return cpm.LowerBound(analysis, ordered.TotalWork(), cores) }
	} else {
		lowerBound = func(int) int { return 0 }
	}

	points := make([]SweepPoint, to-from+1)
	eg, ctx := errgroup.WithContext(ctx)
	for i := range points {
		i := i
		cores := from + i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := sim.Run(ordered, sim.Config{Cores: cores, Pool: config.Pool})
			if err != nil && !errors.Is(err, sim.ErrStalledSchedule) {
				return fmt.Errorf("simulation with %d cores: %w", cores, err)
			}
			points[i] = SweepPoint{
				Cores:      cores,
				Makespan:   res.Makespan,
				LowerBound: lowerBound(cores),
				Stalled:    res.Stalled,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return points, nil
}

// prepare validates p unless allowed otherwise and returns an ordered copy.
func prepare(p *pipeline.Pipeline, config PlanConfig) (*pipeline.Pipeline, error) {
	if err := p.Validate(); err != nil {
		if !config.AllowUnknownDeps || !onlyUnknownDeps(err) {
			return nil, fmt.Errorf("invalid pipeline: %w", err)
		}
	}

	ordered := p.Clone()
	if err := graph.OrderPipeline(ordered); err != nil {
		return nil, err
	}
	return ordered, nil
}

// onlyUnknownDeps reports whether every validation problem in err is an
// unknown dependency.
func onlyUnknownDeps(err error) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return errors.Is(err, pipeline.ErrUnknownDependency)
	}
	for _, e := range joined.Unwrap() {
		if !errors.Is(e, pipeline.ErrUnknownDependency) {
			return false
		}
	}
	return true
}
