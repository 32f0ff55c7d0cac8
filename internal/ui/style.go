package ui

import (
	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold       = color.New(color.Bold).SprintFunc()
	Dim        = color.New(color.Faint).SprintFunc()
	Cyan       = color.New(color.FgCyan).SprintFunc()
	Green      = color.New(color.FgGreen).SprintFunc()
	Red        = color.New(color.FgRed).SprintFunc()
	Yellow     = color.New(color.FgYellow).SprintFunc()
	BoldCyan   = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen  = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed    = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow = color.New(color.Bold, color.FgYellow).SprintFunc()
)

// SetNoColor turns styling off (or back on) for every helper in this package.
func SetNoColor(off bool) {
	color.NoColor = off
}

// groupColors is a palette of distinct colors for differentiating groups.
var groupColors = []func(a ...interface{}) string{
	color.New(color.FgMagenta).SprintFunc(),
	color.New(color.FgCyan).SprintFunc(),
	color.New(color.FgYellow).SprintFunc(),
	color.New(color.FgGreen).SprintFunc(),
	color.New(color.FgHiBlue).SprintFunc(),
	color.New(color.FgHiRed).SprintFunc(),
}

// groupColorIndex hashes a group name to a palette index.
func groupColorIndex(name string) int {
	var h uint32
	for _, c := range name {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(groupColors)))
}

// GroupName returns the group name colored by a stable hash of the name, so a
// group keeps its color across a trace.
func GroupName(name string) string {
	if name == "" {
		return ""
	}
	return groupColors[groupColorIndex(name)](name)
}

// Critical marks a task that sits on the critical path.
func Critical(name string) string {
	return BoldYellow(name)
}

// Outcome returns a colored one-word outcome for a run.
func Outcome(stalled bool) string {
	if stalled {
		return BoldRed("stalled")
	}
	return BoldGreen("complete")
}
