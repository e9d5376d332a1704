package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// History archives sweeps so later sweeps can be compared against them.
type History interface {
	Save(run Run) error
	// LoadLatest returns the newest sweep that ran exactly plans, or nil when
	// there is none. A nil plans matches any sweep.
	LoadLatest(plans []string) (*Run, error)
	// LoadAll returns every sweep, oldest first.
	LoadAll() ([]Run, error)
}

// FileStore archives sweeps as a JSON array in a single file. Saves replace
// the file atomically, so an interrupted save leaves the previous archive intact.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &FileStore{path: path}, nil
}

// Save appends run to the archive. Sweep IDs are unique.
func (s *FileStore) Save(run Run) error {
	runs, err := s.read()
	if err != nil {
		return err
	}
	if slices.ContainsFunc(runs, func(r Run) bool { return r.ID == run.ID }) {
		return fmt.Errorf("sweep %s is already archived", run.ID)
	}

	data, err := json.MarshalIndent(append(runs, run), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sweeps: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sweeps-*.json")
	if err != nil {
		return fmt.Errorf("failed to stage archive: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage archive: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) LoadAll() ([]Run, error) {
	runs, err := s.read()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(runs, func(a, b Run) int { return a.Timestamp.Compare(b.Timestamp) })
	return runs, nil
}

func (s *FileStore) LoadLatest(plans []string) (*Run, error) {
	runs, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].RanPlans(plans) {
			return &runs[i], nil
		}
	}
	return nil, nil
}

// read returns the archived sweeps in file order. A missing or empty file is
// an empty archive.
func (s *FileStore) read() ([]Run, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		return []Run{}, nil
	}
	if err != nil {
		return nil, err
	}

	var runs []Run
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to decode archive %s: %w", s.path, err)
	}
	return runs, nil
}
