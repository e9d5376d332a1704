package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"benchmatrix/internal/benchmark"
)

// ErrRunNotFound is returned when no archived sweep matches an ID.
var ErrRunNotFound = errors.New("sweep not found")

// RunSummary describes an archived sweep without its points.
type RunSummary struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Plans     []string  `json:"plans"`
	Commit    string    `json:"commit,omitempty"`
	Points    int       `json:"points"`
}

// Store archives sweeps. It satisfies benchmark.History.
type Store interface {
	Close() error
	Save(run benchmark.Run) error
	LoadLatest(plans []string) (*benchmark.Run, error)
	LoadAll() ([]benchmark.Run, error)

	// GetRun loads a sweep by ID or by a unique ID prefix.
	GetRun(id string) (*benchmark.Run, error)
	// ListRuns returns summaries newest first; limit <= 0 means all.
	ListRuns(limit int) ([]RunSummary, error)
}

var _ benchmark.History = Store(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (RunSummary, error) {
	var s RunSummary
	var started int64
	var plans string
	var commit sql.NullString
	if err := row.Scan(&s.ID, &started, &plans, &commit, &s.Points); err != nil {
		return s, err
	}
	s.Timestamp = time.Unix(0, started).UTC()
	s.Commit = commit.String
	if err := json.Unmarshal([]byte(plans), &s.Plans); err != nil {
		return s, fmt.Errorf("failed to decode plans of sweep %s: %w", s.ID, err)
	}
	return s, nil
}

func scanPoints(rows *sql.Rows) ([]benchmark.Point, error) {
	defer rows.Close()
	var points []benchmark.Point
	for rows.Next() {
		var p benchmark.Point
		if err := rows.Scan(&p.Key.Label, &p.Key.Size, &p.Key.Variant, &p.Average, &p.Trials); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// encodeList stores a slice as a JSON text column; nil encodes as [].
func encodeList[T any](what string, list []T) (string, error) {
	if list == nil {
		list = []T{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", what, err)
	}
	return string(data), nil
}

func toRun(s RunSummary, layouts string, points []benchmark.Point) (*benchmark.Run, error) {
	run := &benchmark.Run{
		ID:        s.ID,
		Timestamp: s.Timestamp,
		Plans:     s.Plans,
		Commit:    s.Commit,
		Points:    points,
	}
	if err := json.Unmarshal([]byte(layouts), &run.Tables); err != nil {
		return nil, fmt.Errorf("failed to decode tables of sweep %s: %w", s.ID, err)
	}
	if len(run.Tables) == 0 {
		run.Tables = nil
	}
	return run, nil
}

// resolveID picks the single ID among candidates or reports why it cannot.
func resolveID(id string, candidates []string) (string, error) {
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("sweep ID prefix %q is ambiguous (%d matches)", id, len(candidates))
	}
}
