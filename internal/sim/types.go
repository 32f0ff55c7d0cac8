package sim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/log"
)

// PoolPolicy controls how the no_group pool fills spare slots.
type PoolPolicy string

const (
	// PoolSingle admits at most one pool task per time unit and only ever
	// tries the head of the pool. This is the default.
	PoolSingle PoolPolicy = "single"
	// PoolFill fills every spare slot from the pool, in pool order, skipping
	// tasks whose dependencies are not complete yet.
	PoolFill PoolPolicy = "fill"
)

// ParsePoolPolicy parses a policy name. Empty means PoolSingle.
func ParsePoolPolicy(s string) (PoolPolicy, error) {
	switch PoolPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PoolSingle:
		return PoolSingle, nil
	case PoolFill:
		return PoolFill, nil
	}
	return "", fmt.Errorf("unknown pool policy %q (use %s or %s)", s, PoolSingle, PoolFill)
}

var (
	// ErrInvalidCores is returned when the slot count is below one.
	ErrInvalidCores = errors.New("cores must be at least 1")
	// ErrStalledSchedule is the kind of every stall error.
	ErrStalledSchedule = errors.New("stalled schedule")
)

// StalledScheduleError is returned, together with the partial result, when a
// time unit could not schedule any task while work remained.
type StalledScheduleError struct {
	Time    int      // the unit that could not be filled
	Pending []string // unfinished tasks, pipeline order
}

func (e *StalledScheduleError) Error() string {
	return fmt.Sprintf("%s at time %d: no task can start, %d pending (%s)",
		ErrStalledSchedule, e.Time, len(e.Pending), strings.Join(e.Pending, ", "))
}

func (e *StalledScheduleError) Unwrap() error { return ErrStalledSchedule }

// Config is the simulator configuration.
type Config struct {
	Cores  int
	Pool   PoolPolicy
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Cores < 1 {
		return fmt.Errorf("%d: %w", c.Cores, ErrInvalidCores)
	}
	if c.Pool == "" {
		c.Pool = PoolSingle
	}
	if _, err := ParsePoolPolicy(string(c.Pool)); err != nil {
		return err
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sim.Simulator"})
	return nil
}

// Step is one simulated time unit.
type Step struct {
	Time  int      `json:"time"`
	Tasks []string `json:"tasks"`
	Group string   `json:"group"` // active ordered group, or no_group once all are done
}

// Result is the outcome of a simulation.
type Result struct {
	Trace    []Step         `json:"trace"`
	Makespan int            `json:"makespan"`
	Cores    int            `json:"cores"`
	Policy   PoolPolicy     `json:"policy"`
	Started  map[string]int `json:"started"`  // task -> first unit it ran
	Finished map[string]int `json:"finished"` // task -> unit it completed in
	Stalled  bool           `json:"stalled"`
	Pending  []string       `json:"pending,omitempty"`
}

// Busy returns the number of occupied slot-units over the whole trace.
func (r *Result) Busy() int {
	n := 0
	for _, s := range r.Trace {
		n += len(s.Tasks)
	}
	return n
}

// Utilization returns the share of available slot-units that were used.
func (r *Result) Utilization() float64 {
	if r.Makespan == 0 || r.Cores == 0 {
		return 0
	}
	return float64(r.Busy()) / float64(r.Makespan*r.Cores)
}
