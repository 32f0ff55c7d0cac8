package sim_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/graph"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/sim"
)

type taskDef struct {
	group string
	name  string
	dur   int
	deps  []string
}

func buildPipeline(defs ...taskDef) *pipeline.Pipeline {
	p := pipeline.New()
	for _, d := range defs {
		p.AddTask(d.group, pipeline.Task{Name: d.name, Duration: d.dur, Dependencies: d.deps})
	}
	return p
}

func trace(steps ...[]string) [][]string {
	if steps == nil {
		return [][]string{}
	}
	return steps
}

func traceTasks(r *sim.Result) [][]string {
	out := make([][]string, len(r.Trace))
	for i, s := range r.Trace {
		out[i] = s.Tasks
	}
	return out
}

func traceGroups(r *sim.Result) []string {
	out := make([]string, len(r.Trace))
	for i, s := range r.Trace {
		out[i] = s.Group
	}
	return out
}

func TestRun(t *testing.T) {
	tests := map[string]struct {
		pipeline    *pipeline.Pipeline
		cores       int
		pool        sim.PoolPolicy
		expTrace    [][]string
		expGroups   []string
		expMakespan int
	}{
		"A dependency inside a group runs after its dependency completes (scenario A).": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 2, nil},
				taskDef{"G1", "B", 1, []string{"A"}},
			),
			cores:       2,
			expTrace:    trace([]string{"A"}, []string{"A"}, []string{"B"}),
			expGroups:   []string{"G1", "G1", "G1"},
			expMakespan: 3,
		},
		"A later group waits for the previous group even with free slots (scenario B).": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 1, nil},
				taskDef{"G2", "B", 1, nil},
			),
			cores:       2,
			expTrace:    trace([]string{"A"}, []string{"B"}),
			expGroups:   []string{"G1", "G2"},
			expMakespan: 2,
		},
		"A pool task fills a spare slot (scenario C).": {
			pipeline: buildPipeline(
				taskDef{"", "X", 1, nil},
				taskDef{"G1", "A", 3, nil},
			),
			cores:       2,
			expTrace:    trace([]string{"A", "X"}, []string{"A"}, []string{"A"}),
			expGroups:   []string{"G1", "G1", "G1"},
			expMakespan: 3,
		},
		"The single policy admits one pool task per unit.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 1, nil},
				taskDef{"", "X", 1, nil},
				taskDef{"", "Y", 1, nil},
				taskDef{"", "Z", 1, nil},
			),
			cores:       4,
			pool:        sim.PoolSingle,
			expTrace:    trace([]string{"A", "X"}, []string{"Y"}, []string{"Z"}),
			expGroups:   []string{"G1", pipeline.NoGroup, pipeline.NoGroup},
			expMakespan: 3,
		},
		"The fill policy uses every spare slot.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 1, nil},
				taskDef{"", "X", 1, nil},
				taskDef{"", "Y", 1, nil},
				taskDef{"", "Z", 1, nil},
			),
			cores:       4,
			pool:        sim.PoolFill,
			expTrace:    trace([]string{"A", "X", "Y", "Z"}),
			expGroups:   []string{"G1"},
			expMakespan: 1,
		},
		"The single policy only tries the pool head.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 2, nil},
				taskDef{"", "X", 1, []string{"A"}},
				taskDef{"", "Y", 1, nil},
			),
			cores:       2,
			pool:        sim.PoolSingle,
			expTrace:    trace([]string{"A"}, []string{"A"}, []string{"X"}, []string{"Y"}),
			expGroups:   []string{"G1", "G1", pipeline.NoGroup, pipeline.NoGroup},
			expMakespan: 4,
		},
		"The fill policy skips a blocked pool task.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 2, nil},
				taskDef{"", "X", 1, []string{"A"}},
				taskDef{"", "Y", 1, nil},
			),
			cores:       2,
			pool:        sim.PoolFill,
			expTrace:    trace([]string{"A", "Y"}, []string{"A"}, []string{"X"}),
			expGroups:   []string{"G1", "G1", pipeline.NoGroup},
			expMakespan: 3,
		},
		"A multi unit pool task keeps running after groups finish.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 1, nil},
				taskDef{"", "X", 2, nil},
			),
			cores:       2,
			expTrace:    trace([]string{"A", "X"}, []string{"X"}),
			expGroups:   []string{"G1", pipeline.NoGroup},
			expMakespan: 2,
		},
		"The first listed tasks win the slots.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 2, nil},
				taskDef{"G1", "B", 2, nil},
				taskDef{"G1", "C", 1, nil},
			),
			cores:       2,
			expTrace:    trace([]string{"A", "B"}, []string{"A", "B"}, []string{"C"}),
			expGroups:   []string{"G1", "G1", "G1"},
			expMakespan: 3,
		},
		"A group task can wait on a pool task.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 1, []string{"X"}},
				taskDef{"", "X", 2, nil},
			),
			cores:       2,
			expTrace:    trace([]string{"X"}, []string{"X"}, []string{"A"}),
			expGroups:   []string{"G1", "G1", "G1"},
			expMakespan: 3,
		},
		"One core runs one group sequentially.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 2, nil},
				taskDef{"G1", "B", 3, []string{"A"}},
				taskDef{"G1", "C", 1, nil},
			),
			cores:       1,
			expTrace:    trace([]string{"A"}, []string{"A"}, []string{"B"}, []string{"B"}, []string{"B"}, []string{"C"}),
			expGroups:   []string{"G1", "G1", "G1", "G1", "G1", "G1"},
			expMakespan: 6,
		},
		"An empty pipeline has no trace.": {
			pipeline:    pipeline.New(),
			cores:       3,
			expTrace:    trace(),
			expGroups:   []string{},
			expMakespan: 0,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, graph.OrderPipeline(test.pipeline))

			res, err := sim.Run(test.pipeline, sim.Config{Cores: test.cores, Pool: test.pool})
			require.NoError(t, err)

			assert.Equal(t, test.expTrace, traceTasks(res))
			assert.Equal(t, test.expGroups, traceGroups(res))
			assert.Equal(t, test.expMakespan, res.Makespan)
			assert.False(t, res.Stalled)
			for i, s := range res.Trace {
				assert.Equal(t, i+1, s.Time)
			}
		})
	}
}

func TestRunStalls(t *testing.T) {
	tests := map[string]struct {
		pipeline   *pipeline.Pipeline
		expTrace   [][]string
		expPending []string
		expTime    int
	}{
		"A dependency on a later group can never be met.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 1, []string{"B"}},
				taskDef{"G2", "B", 1, nil},
			),
			expTrace:   trace(),
			expPending: []string{"A", "B"},
			expTime:    1,
		},
		"A dependency on an unknown task can never be met.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 1, nil},
				taskDef{"G1", "B", 1, []string{"ghost"}},
			),
			expTrace:   trace([]string{"A"}),
			expPending: []string{"B"},
			expTime:    2,
		},
		"A blocked pool head stalls once the groups are done.": {
			pipeline: buildPipeline(
				taskDef{"G1", "A", 1, nil},
				taskDef{"", "X", 1, []string{"ghost"}},
				taskDef{"", "Y", 1, nil},
			),
			expTrace:   trace([]string{"A"}),
			expPending: []string{"X", "Y"},
			expTime:    2,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := sim.Run(test.pipeline, sim.Config{Cores: 2})
			require.Error(t, err)
			assert.ErrorIs(t, err, sim.ErrStalledSchedule)

			var stall *sim.StalledScheduleError
			require.True(t, errors.As(err, &stall))
			assert.Equal(t, test.expTime, stall.Time)
			assert.Equal(t, test.expPending, stall.Pending)

			require.NotNil(t, res)
			assert.True(t, res.Stalled)
			assert.Equal(t, test.expPending, res.Pending)
			assert.Equal(t, test.expTrace, traceTasks(res))
			assert.Equal(t, len(test.expTrace), res.Makespan)
		})
	}
}

func TestRunInvalidConfig(t *testing.T) {
	p := buildPipeline(taskDef{"G1", "A", 1, nil})

	_, err := sim.Run(p, sim.Config{Cores: 0})
	assert.ErrorIs(t, err, sim.ErrInvalidCores)

	_, err = sim.Run(p, sim.Config{Cores: 1, Pool: "greedy"})
	assert.Error(t, err)
}

func TestRunInvalidPipeline(t *testing.T) {
	_, err := sim.Run(buildPipeline(taskDef{"G1", "A", 0, nil}), sim.Config{Cores: 1})
	assert.ErrorIs(t, err, pipeline.ErrInvalidPipeline)
}

func TestRunDoesNotModifyInput(t *testing.T) {
	p := buildPipeline(
		taskDef{"G1", "A", 2, nil},
		taskDef{"", "X", 3, nil},
	)
	before := p.Clone()

	_, err := sim.Run(p, sim.Config{Cores: 2})
	require.NoError(t, err)
	assert.Equal(t, before, p)
}

func TestRunIsDeterministic(t *testing.T) {
	p := randomPipeline(rand.New(rand.NewSource(7)))
	require.NoError(t, graph.OrderPipeline(p))

	a, err := sim.Run(p, sim.Config{Cores: 3})
	require.NoError(t, err)
	b, err := sim.Run(p, sim.Config{Cores: 3})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestResultUtilization(t *testing.T) {
	p := buildPipeline(taskDef{"G1", "A", 2, nil}, taskDef{"G1", "B", 1, nil})

	res, err := sim.Run(p, sim.Config{Cores: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Busy())
	assert.InDelta(t, 0.75, res.Utilization(), 1e-9)
}

func TestParsePoolPolicy(t *testing.T) {
	tests := map[string]struct {
		in     string
		exp    sim.PoolPolicy
		expErr bool
	}{
		"Empty should default to single.": {in: "", exp: sim.PoolSingle},
		"Single should parse.":            {in: "single", exp: sim.PoolSingle},
		"Fill should parse ignoring case.": {in: " FILL ", exp: sim.PoolFill},
		"Unknown should fail.":            {in: "all", expErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := sim.ParsePoolPolicy(test.in)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.exp, got)
		})
	}
}

func TestRunMakespanOneCoreIsTotalWork(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for round := 0; round < 50; round++ {
		p := pipeline.New()
		n := 1 + r.Intn(8)
		for i := 0; i < n; i++ {
			var deps []string
			for j := 0; j < i; j++ {
				if r.Intn(3) == 0 {
					deps = append(deps, fmt.Sprintf("t%d", j))
				}
			}
			p.AddTask("G1", pipeline.Task{Name: fmt.Sprintf("t%d", i), Duration: 1 + r.Intn(4), Dependencies: deps})
		}
		require.NoError(t, graph.OrderPipeline(p))

		res, err := sim.Run(p, sim.Config{Cores: 1})
		require.NoError(t, err)
		assert.Equal(t, p.TotalWork(), res.Makespan)
	}
}

func TestRunMakespanMonotonicInCores(t *testing.T) {
	p := buildPipeline(
		taskDef{"G1", "A", 3, nil},
		taskDef{"G1", "B", 2, nil},
		taskDef{"G1", "C", 2, []string{"A"}},
		taskDef{"G1", "D", 1, nil},
		taskDef{"G2", "E", 2, nil},
		taskDef{"G2", "F", 2, nil},
		taskDef{"", "X", 2, nil},
		taskDef{"", "Y", 1, nil},
	)
	require.NoError(t, graph.OrderPipeline(p))

	prev := -1
	for cores := 1; cores <= 6; cores++ {
		res, err := sim.Run(p, sim.Config{Cores: cores})
		require.NoError(t, err)
		if prev >= 0 {
			assert.LessOrEqual(t, res.Makespan, prev, "cores %d", cores)
		}
		prev = res.Makespan
	}
}

func TestRunMakespanMonotonicInCoresRandom(t *testing.T) {
	for _, policy := range []sim.PoolPolicy{sim.PoolSingle, sim.PoolFill} {
		t.Run(string(policy), func(t *testing.T) {
			r := rand.New(rand.NewSource(23))

			for round := 0; round < 300; round++ {
				p := randomPipeline(r)
				require.NoError(t, graph.OrderPipeline(p))

				prev := -1
				for cores := 1; cores <= 6; cores++ {
					res, err := sim.Run(p, sim.Config{Cores: cores, Pool: policy})
					require.NoError(t, err, "round %d cores %d", round, cores)
					if prev >= 0 {
						assert.LessOrEqual(t, res.Makespan, prev, "round %d cores %d", round, cores)
					}
					prev = res.Makespan
				}
			}
		})
	}
}

// randomPipeline builds a pipeline that can always finish: group tasks only
// depend on earlier tasks of their group or on earlier groups, pool tasks only
// on group tasks or earlier pool tasks.
func randomPipeline(r *rand.Rand) *pipeline.Pipeline {
	p := pipeline.New()
	var previous []string
	groups := 1 + r.Intn(4)
	for g := 0; g < groups; g++ {
		var current []string
		for i, n := 0, 1+r.Intn(5); i < n; i++ {
			name := fmt.Sprintf("g%dt%d", g, i)
			var deps []string
			for _, c := range append(append([]string{}, previous...), current...) {
				if r.Intn(4) == 0 {
					deps = append(deps, c)
				}
			}
			p.AddTask(fmt.Sprintf("G%d", g), pipeline.Task{Name: name, Duration: 1 + r.Intn(3), Dependencies: deps})
			current = append(current, name)
		}
		previous = append(previous, current...)
	}

	var pool []string
	for i, n := 0, r.Intn(4); i < n; i++ {
		name := fmt.Sprintf("p%d", i)
		var deps []string
		for _, c := range append(append([]string{}, previous...), pool...) {
			if r.Intn(6) == 0 {
				deps = append(deps, c)
			}
		}
		p.AddTask("", pipeline.Task{Name: name, Duration: 1 + r.Intn(3), Dependencies: deps})
		pool = append(pool, name)
	}
	return p
}

func TestRunProperties(t *testing.T) {
	r := rand.New(rand.NewSource(11))

	for round := 0; round < 300; round++ {
		p := randomPipeline(r)
		require.NoError(t, graph.OrderPipeline(p))
		cores := 1 + r.Intn(4)
		policy := sim.PoolSingle
		if r.Intn(2) == 0 {
			policy = sim.PoolFill
		}

		res, err := sim.Run(p, sim.Config{Cores: cores, Pool: policy})
		require.NoError(t, err, "round %d", round)
		assert.Equal(t, len(res.Trace), res.Makespan)

		units := make(map[string]int)
		for _, s := range res.Trace {
			assert.LessOrEqual(t, len(s.Tasks), cores, "round %d time %d", round, s.Time)
			for _, name := range s.Tasks {
				units[name]++
			}
		}

		for _, g := range p.Groups {
			for _, tk := range g.Tasks {
				assert.Equal(t, tk.Duration, units[tk.Name], "round %d task %s", round, tk.Name)
				for _, dep := range tk.Dependencies {
					assert.Less(t, res.Finished[dep], res.Started[tk.Name],
						"round %d: %s started before %s finished", round, tk.Name, dep)
				}
			}
		}

		ordered := p.OrderedGroups()
		for k := 1; k < len(ordered); k++ {
			last := 0
			for _, tk := range ordered[k-1].Tasks {
				last = max(last, res.Finished[tk.Name])
			}
			for _, tk := range ordered[k].Tasks {
				assert.Greater(t, res.Started[tk.Name], last,
					"round %d: %s of %s started before %s finished", round, tk.Name, ordered[k].Name, ordered[k-1].Name)
			}
		}
	}
}
