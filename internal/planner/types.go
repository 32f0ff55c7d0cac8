package planner

import (
	"time"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/cpm"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/log"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/sim"
)

// ExecutionPlan is the outcome of simulating one pipeline.
type ExecutionPlan struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	Source       string         `json:"source,omitempty"`
	Config       PlanConfig     `json:"config"`
	Groups       []PlannedGroup `json:"groups"`
	Trace        []sim.Step     `json:"trace"`
	Makespan     int            `json:"makespan"`
	Stalled      bool           `json:"stalled"`
	Pending      []string       `json:"pending,omitempty"`
	CriticalPath []string       `json:"critical_path"`
	Waves        []cpm.Wave     `json:"waves,omitempty"`
	LowerBound   int            `json:"lower_bound"`
	Utilization  float64        `json:"utilization"`
	TotalTasks   int            `json:"total_tasks"`
	TotalWork    int            `json:"total_work"`
}

// PlannedGroup is a group with its tasks in execution order.
type PlannedGroup struct {
	Name  string   `json:"name"`
	Pool  bool     `json:"pool,omitempty"`
	Tasks []string `json:"tasks"`
}

// PlanConfig holds configuration for plan generation.
type PlanConfig struct {
	Cores            int            `json:"cores"`
	Pool             sim.PoolPolicy `json:"pool"`
	AllowUnknownDeps bool           `json:"allow_unknown_deps,omitempty"`
	Source           string         `json:"-"`
	Logger           log.Logger     `json:"-"`
}

// SweepPoint is the simulation outcome for one core count.
type SweepPoint struct {
	Cores      int  `json:"cores"`
	Makespan   int  `json:"makespan"`
	LowerBound int  `json:"lower_bound"`
	Stalled    bool `json:"stalled"`
}
