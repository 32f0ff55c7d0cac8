package cpm

// Result holds the critical path analysis of a pipeline's dependency graph.
// It ignores slot capacity and group serialization.
type Result struct {
	Tasks         map[string]*TaskSchedule `json:"tasks"`
	CriticalPath  []string                 `json:"critical_path"` // topological order
	TotalDuration int                      `json:"total_duration"`
	Waves         []Wave                   `json:"waves"`
	TopoOrder     []string                 `json:"topo_order"`
}

// TaskSchedule holds the scheduling info for a single task.
type TaskSchedule struct {
	Name       string `json:"name"`
	Duration   int    `json:"duration"`
	ES, EF     int    // earliest start/finish
	LS, LF     int    // latest start/finish
	Slack      int    `json:"slack"`
	IsCritical bool   `json:"critical"`
	Wave       int    `json:"wave"`
}

// Wave is a set of tasks sharing the same earliest start.
type Wave struct {
	Index      int      `json:"index"`
	Start      int      `json:"start"`
	Tasks      []string `json:"tasks"`
	IsCritical bool     `json:"critical"`
}
