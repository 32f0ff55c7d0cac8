// Package loader reads pipeline files.
//
// Three formats are understood, picked by file extension: YAML (.yaml, .yml),
// JSON (.json) and the flat four-line record format used for everything else.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/log"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/pipeline"
)

// Format is a pipeline file format.
type Format string

const (
	FormatFlat Format = "flat"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf returns the format used for the given file name.
func FormatOf(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	return FormatFlat
}

// Loader reads pipelines from a file system.
type Loader struct {
	FS     fs.FS
	Logger log.Logger
}

// New returns a loader rooted at the directory holding file, plus the name of
// file relative to that root. It is the usual way to load a path given on the
// command line.
func New(file string, logger log.Logger) (*Loader, string) {
	dir, name := filepath.Split(filepath.Clean(file))
	if dir == "" {
		dir = "."
	}
	return &Loader{FS: os.DirFS(dir), Logger: logger}, name
}

// Load reads and parses the named pipeline file. The pipeline is returned as
// written: it is neither validated nor ordered.
func (l *Loader) Load(ctx context.Context, name string) (*pipeline.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := l.Logger
	if logger == nil {
		logger = log.Noop
	}
	logger = logger.WithValues(log.Kv{"svc": "loader.Loader", "file": name})

	data, err := fs.ReadFile(l.FS, name)
	if err != nil {
		return nil, fmt.Errorf("could not read pipeline: %w", err)
	}

	format := FormatOf(name)
	var p *pipeline.Pipeline
	switch format {
	case FormatYAML:
		p, err = parseYAML(name, data)
	case FormatJSON:
		p, err = parseJSON(name, data)
	default:
		p, err = parseFlat(name, data)
	}
	if err != nil {
		return nil, err
	}

	logger.Debugf("loaded %d tasks in %d groups (%s format)", p.TaskCount(), len(p.Groups), format)
	return p, nil
}
