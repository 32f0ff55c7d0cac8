package loader

import (
	"strconv"
	"strings"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
)

const endMarker = "END"

// parseFlat parses records of four lines: task name, duration, group (blank
// for no_group) and comma separated dependencies (blank for none). A line
// holding END stops parsing.
func parseFlat(name string, data []byte) (*pipeline.Pipeline, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	p := pipeline.New()

	for i := 0; i < len(lines); i += 4 {
		head := strings.TrimSpace(lines[i])
		if head == endMarker || blankFrom(lines, i) {
			break
		}
		if head == "" {
			return nil, &ParseError{Path: name, Line: i + 1, Msg: "empty task name"}
		}
		if i+3 >= len(lines) {
			return nil, &ParseError{Path: name, Line: i + 1, Msg: "incomplete record for task " + strconv.Quote(head)}
		}

		durLine := strings.TrimSpace(lines[i+1])
		dur, err := strconv.Atoi(durLine)
		if err != nil {
			return nil, &ParseError{Path: name, Line: i + 2, Msg: "invalid duration " + strconv.Quote(durLine)}
		}
		if dur < 1 {
			return nil, &ParseError{Path: name, Line: i + 2, Msg: "duration must be at least 1, got " + durLine}
		}

		var deps []string
		if raw := strings.TrimSpace(lines[i+3]); raw != "" {
			for _, d := range strings.Split(raw, ",") {
				deps = append(deps, strings.TrimSpace(d))
			}
		}

		p.AddTask(strings.TrimSpace(lines[i+2]), pipeline.Task{Name: head, Duration: dur, Dependencies: deps})
	}

	return p, nil
}

func blankFrom(lines []string, i int) bool {
	for _, l := range lines[i:] {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}
