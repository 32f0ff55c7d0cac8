package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/cpm"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/ui"
)

// PrintOrder writes every group with its tasks in execution order.
func PrintOrder(w io.Writer, p *pipeline.Pipeline) {
	for i, g := range p.Groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		name := g.Name
		if g.IsPool() {
			name += " (pool)"
		}
		fmt.Fprintf(w, "%s %s\n", ui.Cyan("──"), ui.Bold(name))
		for _, t := range g.Tasks {
			deps := ""
			if len(t.Dependencies) > 0 {
				deps = "  " + ui.Dim("after "+strings.Join(t.Dependencies, ", "))
			}
			fmt.Fprintf(w, "  %-12s %3d%s\n", t.Name, t.Duration, deps)
		}
	}
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// PrintDOT writes the dependency graph in Graphviz DOT format, one cluster
// per group. Critical tasks and the zero-slack edges between them are drawn
// in red.
func PrintDOT(w io.Writer, p *pipeline.Pipeline, analysis *cpm.Result) {
	critical := func(name string) bool {
		if analysis == nil {
			return false
		}
		ts, ok := analysis.Tasks[name]
		return ok && ts.IsCritical
	}
	criticalEdge := func(from, to string) bool {
		return critical(from) && critical(to) && analysis.Tasks[from].EF == analysis.Tasks[to].ES
	}

	fmt.Fprintln(w, "digraph dagsort {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")

	known := make(map[string]bool, p.TaskCount())
	for i, g := range p.Groups {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(w, "    label=%s;\n", dotQuote(g.Name))
		if g.IsPool() {
			fmt.Fprintln(w, "    style=dashed;")
		}
		for _, t := range g.Tasks {
			known[t.Name] = true
			attrs := fmt.Sprintf(`label="%s\n%d"`, dotEscaper.Replace(t.Name), t.Duration)
			if critical(t.Name) {
				attrs += `, style="rounded,bold", color=red`
			}
			fmt.Fprintf(w, "    %s [%s];\n", dotQuote(t.Name), attrs)
		}
		fmt.Fprintln(w, "  }")
	}

	fmt.Fprintln(w)
	for _, g := range p.Groups {
		for _, t := range g.Tasks {
			for _, dep := range t.Dependencies {
				if !known[dep] {
					continue
				}
				style := ""
				if criticalEdge(dep, t.Name) {
					style = " [color=red, penwidth=2]"
				}
				fmt.Fprintf(w, "  %s -> %s%s;\n", dotQuote(dep), dotQuote(t.Name), style)
			}
		}
	}

	fmt.Fprintln(w, "}")
}
