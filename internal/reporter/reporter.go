// Package reporter renders execution plans for the terminal and as JSON.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/planner"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/ui"
)

const (
	timeHeader  = "Time"
	tasksHeader = "Tasks being Executed"
	groupHeader = "Group Name"
	groupWidth  = 10
)

// Reporter renders a single plan.
type Reporter struct {
	Plan *planner.ExecutionPlan
}

// New creates a new Reporter.
func New(plan *planner.ExecutionPlan) *Reporter {
	return &Reporter{Plan: plan}
}

// PrintTable writes the minute by minute trace followed by the makespan.
//
//	| Time    | Tasks being Executed | Group Name
//	| ------- | -------------------- | ----------
//	| 1       | A, X                 | G1
//
// The pool's label is left blank.
func (r *Reporter) PrintTable(w io.Writer) {
	rows := make([]string, len(r.Plan.Trace))
	width := len(tasksHeader)
	for i, step := range r.Plan.Trace {
		rows[i] = strings.Join(step.Tasks, ", ")
		width = max(width, len(rows[i]))
	}

	fmt.Fprintf(w, "| %-7s | %-*s | %s\n", timeHeader, width, tasksHeader, ui.Bold(groupHeader))
	fmt.Fprintf(w, "| %s | %s | %s\n", strings.Repeat("-", 7), strings.Repeat("-", width), strings.Repeat("-", groupWidth))
	for i, step := range r.Plan.Trace {
		label := step.Group
		if label == pipeline.NoGroup {
			label = ""
		}
		pad := strings.Repeat(" ", max(0, groupWidth-len(label)))
		fmt.Fprintf(w, "| %-6d  | %-*s | %s%s\n", step.Time, width, rows[i], ui.GroupName(label), pad)
	}

	fmt.Fprintf(w, "\nMinimum Execution Time = %d minutes.\n", r.Plan.Makespan)
	if r.Plan.Stalled {
		fmt.Fprintf(w, "%s no task could start at minute %d; %d pending: %s\n",
			ui.BoldRed("Schedule stalled:"), r.Plan.Makespan+1, len(r.Plan.Pending), strings.Join(r.Plan.Pending, ", "))
	}
}

// PrintSummary writes the plan header and the analysis numbers.
func (r *Reporter) PrintSummary(w io.Writer) {
	p := r.Plan

	fmt.Fprintf(w, "%s\n", ui.BoldCyan("Pipeline Schedule"))
	fmt.Fprintf(w, "%s\n", ui.Cyan("═════════════════"))
	fmt.Fprintf(w, "Plan:        %s\n", ui.Dim(p.ID))
	if p.Source != "" {
		fmt.Fprintf(w, "Source:      %s\n", p.Source)
	}
	fmt.Fprintf(w, "Cores:       %d (pool policy %s)\n", p.Config.Cores, p.Config.Pool)
	fmt.Fprintf(w, "Tasks:       %d in %d groups, %d units of work\n", p.TotalTasks, len(p.Groups), p.TotalWork)
	fmt.Fprintf(w, "Outcome:     %s\n", ui.Outcome(p.Stalled))
	fmt.Fprintf(w, "Makespan:    %s\n", ui.Bold(fmt.Sprintf("%d minutes", p.Makespan)))
	fmt.Fprintf(w, "Lower bound: %d minutes\n", p.LowerBound)
	fmt.Fprintf(w, "Utilization: %.0f%%\n", p.Utilization*100)

	if len(p.CriticalPath) > 0 {
		fmt.Fprintf(w, "Critical:    %s\n", ui.Critical(strings.Join(p.CriticalPath, " -> ")))
	}

	fmt.Fprintln(w)
	for _, g := range p.Groups {
		name := g.Name
		if g.Pool {
			name += " (pool)"
		}
		fmt.Fprintf(w, "  %s: %s\n", ui.Bold(name), strings.Join(g.Tasks, ", "))
	}

	if p.Stalled {
		fmt.Fprintf(w, "\n%s %s\n", ui.BoldRed("Pending:"), strings.Join(p.Pending, ", "))
	}
}

// JSON returns the plan in machine-readable form.
func (r *Reporter) JSON() ([]byte, error) {
	return json.MarshalIndent(r.Plan, "", "  ")
}

// PrintSweep writes one line per core count with the speedup over the first.
func PrintSweep(w io.Writer, points []planner.SweepPoint) {
	fmt.Fprintf(w, "%s\n", ui.Bold(fmt.Sprintf("%-6s %-9s %-12s %s", "Cores", "Makespan", "Lower bound", "Speedup")))
	if len(points) == 0 {
		return
	}

	base := points[0].Makespan
	for _, pt := range points {
		speedup := "-"
		if pt.Makespan > 0 && base > 0 {
			speedup = fmt.Sprintf("%.2fx", float64(base)/float64(pt.Makespan))
		}
		line := fmt.Sprintf("%-6d %-9d %-12d %s", pt.Cores, pt.Makespan, pt.LowerBound, speedup)
		switch {
		case pt.Stalled:
			line += " " + ui.Red("(stalled)")
		case pt.Makespan == pt.LowerBound:
			line += " " + ui.Green("(optimal)")
		}
		fmt.Fprintln(w, line)
	}
}

// PrintHistory writes one line per saved run, in the given order.
func PrintHistory(w io.Writer, plans []*planner.ExecutionPlan) {
	if len(plans) == 0 {
		fmt.Fprintln(w, "No saved runs.")
		return
	}

	fmt.Fprintf(w, "%s\n", ui.Bold(fmt.Sprintf("%-26s %-20s %-6s %-9s %-9s %s", "ID", "Created", "Cores", "Makespan", "Outcome", "Source")))
	for _, p := range plans {
		outcome := ui.Green("complete")
		if p.Stalled {
			outcome = ui.Red("stalled ")
		}
		fmt.Fprintf(w, "%-26s %-20s %-6d %-9d %s %s\n",
			p.ID, p.CreatedAt.Local().Format(time.DateTime), p.Config.Cores, p.Makespan, outcome, p.Source)
	}
}
