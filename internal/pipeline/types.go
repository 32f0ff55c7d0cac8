package pipeline

// NoGroup is the name of the unordered pool. Tasks in it fill idle slots
// instead of running as an ordered phase.
const NoGroup = "no_group"

// Task is a single unit of work in a pipeline.
type Task struct {
	Name         string   `json:"name" yaml:"name"`
	Duration     int      `json:"duration" yaml:"duration"` // work units
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Group is a named phase. Task order is significant: it is the order the
// simulator considers tasks in.
type Group struct {
	Name  string `json:"name" yaml:"name"`
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// IsPool reports whether the group is the no_group pool.
func (g *Group) IsPool() bool {
	return g.Name == NoGroup
}

// Pipeline is an ordered sequence of groups in first-seen order.
type Pipeline struct {
	Groups []*Group `json:"groups" yaml:"groups"`
}
