// Package state persists execution plans as JSON files under a state dir.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/planner"
)

// DefaultDir is the state dir used when none is configured.
const DefaultDir = ".dagsort"

const runsDir = "runs"

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store reads and writes saved runs. A Store holds no state besides Dir, so
// several stores (or processes) may share a directory: every Save writes a
// temp file and renames it into place.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir, or DefaultDir when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{Dir: dir}
}

func (s *Store) runs() string {
	return filepath.Join(s.Dir, runsDir)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.runs(), id+".json")
}

// Save writes the plan to runs/<id>.json. The file is replaced atomically.
func (s *Store) Save(plan *planner.ExecutionPlan) error {
	if plan.ID == "" || strings.ContainsAny(plan.ID, `/\`) {
		return fmt.Errorf("invalid plan id %q", plan.ID)
	}

	if err := os.MkdirAll(s.runs(), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	tmp, err := os.CreateTemp(s.runs(), plan.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write plan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(plan.ID)); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

// Load reads a saved run by id.
func (s *Store) Load(id string) (*planner.ExecutionPlan, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}

	var plan planner.ExecutionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse run %s: %w", id, err)
	}
	return &plan, nil
}

// List returns every saved run, newest first.
func (s *Store) List() ([]*planner.ExecutionPlan, error) {
	entries, err := os.ReadDir(s.runs())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var plans []*planner.ExecutionPlan
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		plan, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	sort.SliceStable(plans, func(i, j int) bool {
		if !plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].CreatedAt.After(plans[j].CreatedAt)
		}
		return plans[i].ID > plans[j].ID
	})
	return plans, nil
}

// Latest returns the newest saved run.
func (s *Store) Latest() (*planner.ExecutionPlan, error) {
	plans, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("no saved runs: %w", ErrNotFound)
	}
	return plans[0], nil
}

// Clean removes the state directory.
func (s *Store) Clean() error {
	return os.RemoveAll(s.Dir)
}
