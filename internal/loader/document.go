package loader

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
)

// document is the structured YAML/JSON form of a pipeline.
type document struct {
	Tasks []taskEntry `yaml:"tasks" validate:"required,dive"`
}

type taskEntry struct {
	Name         string   `yaml:"name" validate:"required"`
	Duration     int      `yaml:"duration" validate:"min=1"`
	Group        string   `yaml:"group"`
	Dependencies []string `yaml:"dependencies"`
}

// yamlDocument keeps durations as nodes so a float or a quoted number is
// rejected instead of truncated.
type yamlDocument struct {
	Tasks []yamlEntry `yaml:"tasks"`
}

type yamlEntry struct {
	Name         string    `yaml:"name"`
	Duration     yaml.Node `yaml:"duration"`
	Group        string    `yaml:"group"`
	Dependencies []string  `yaml:"dependencies"`
}

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their document names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		})
	})
	return validate
}

func parseYAML(name string, data []byte) (*pipeline.Pipeline, error) {
	var raw yamlDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: name, Msg: strings.TrimPrefix(err.Error(), "yaml: ")}
	}

	var doc document
	if raw.Tasks != nil {
		doc.Tasks = make([]taskEntry, 0, len(raw.Tasks))
	}
	for i, e := range raw.Tasks {
		dur, ok := yamlInt(&e.Duration)
		if !ok {
			return nil, &ParseError{Path: name, Line: e.Duration.Line, Msg: fmt.Sprintf("tasks[%d].duration must be an integer", i)}
		}
		doc.Tasks = append(doc.Tasks, taskEntry{Name: e.Name, Duration: dur, Group: e.Group, Dependencies: e.Dependencies})
	}
	return doc.build(name)
}

// yamlInt decodes an !!int scalar. An absent node decodes as 0.
func yamlInt(n *yaml.Node) (int, bool) {
	if n.Kind == 0 {
		return 0, true
	}
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		return 0, false
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return 0, false
	}
	return v, true
}

func parseJSON(name string, data []byte) (*pipeline.Pipeline, error) {
	raw := string(data)
	if !gjson.Valid(raw) {
		return nil, &ParseError{Path: name, Msg: "malformed JSON"}
	}

	tasks := gjson.Get(raw, "tasks")
	if !tasks.Exists() {
		return nil, &ParseError{Path: name, Msg: "tasks is required"}
	}
	if !tasks.IsArray() {
		return nil, &ParseError{Path: name, Msg: "tasks must be an array"}
	}

	doc := document{Tasks: []taskEntry{}}
	var err error
	tasks.ForEach(func(_, item gjson.Result) bool {
		var entry taskEntry
		entry, err = jsonEntry(len(doc.Tasks), item)
		if err != nil {
			err = &ParseError{Path: name, Msg: err.Error()}
			return false
		}
		doc.Tasks = append(doc.Tasks, entry)
		return true
	})
	if err != nil {
		return nil, err
	}
	return doc.build(name)
}

func jsonEntry(i int, item gjson.Result) (taskEntry, error) {
	if !item.IsObject() {
		return taskEntry{}, fmt.Errorf("task %d is not an object", i)
	}

	var entry taskEntry
	for _, field := range []struct {
		key string
		dst *string
	}{{"name", &entry.Name}, {"group", &entry.Group}} {
		v := item.Get(field.key)
		if v.Exists() && v.Type != gjson.String {
			return taskEntry{}, fmt.Errorf("tasks[%d].%s must be a string", i, field.key)
		}
		*field.dst = v.String()
	}

	if d := item.Get("duration"); d.Exists() {
		if d.Type != gjson.Number || d.Num != math.Trunc(d.Num) {
			return taskEntry{}, fmt.Errorf("tasks[%d].duration must be an integer", i)
		}
		entry.Duration = int(d.Int())
	}

	if deps := item.Get("dependencies"); deps.Exists() {
		if !deps.IsArray() {
			return taskEntry{}, fmt.Errorf("tasks[%d].dependencies must be an array", i)
		}
		for _, d := range deps.Array() {
			if d.Type != gjson.String {
				return taskEntry{}, fmt.Errorf("tasks[%d].dependencies must hold task names", i)
			}
			entry.Dependencies = append(entry.Dependencies, d.String())
		}
	}
	return entry, nil
}

func (d *document) build(name string) (*pipeline.Pipeline, error) {
	if err := getValidator().Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, &ParseError{Path: name, Msg: err.Error()}
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, formatValidationError(e))
		}
		return nil, &ParseError{Path: name, Msg: strings.Join(msgs, "; ")}
	}

	p := pipeline.New()
	for _, t := range d.Tasks {
		deps := make([]string, 0, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			deps = append(deps, strings.TrimSpace(dep))
		}
		p.AddTask(strings.TrimSpace(t.Group), pipeline.Task{Name: strings.TrimSpace(t.Name), Duration: t.Duration, Dependencies: deps})
	}
	return p, nil
}

// formatValidationError renders e like "tasks[1].duration must be at least 1".
func formatValidationError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "document.")
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + e.Param()
	default:
		return field + " is invalid"
	}
}
