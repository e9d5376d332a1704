package db

import (
	"database/sql"
	"errors"
	"fmt"

	"benchmatrix/internal/benchmark"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store and applies migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sweeps (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			plans TEXT NOT NULL,
			commit_sha TEXT,
			layouts TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS points (
			sweep_id TEXT NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			label TEXT NOT NULL,
			size INTEGER NOT NULL,
			variant TEXT NOT NULL DEFAULT '',
			average REAL NOT NULL,
			trials INTEGER NOT NULL,
			PRIMARY KEY (sweep_id, label, size, variant)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sweeps_started ON sweeps(started_at DESC);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save archives a sweep and its points in one transaction.
func (s *SQLiteStore) Save(run benchmark.Run) error {
	plans, err := encodeList("plans", run.Plans)
	if err != nil {
		return err
	}
	layouts, err := encodeList("tables", run.Tables)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO sweeps (id, started_at, plans, commit_sha, layouts) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Timestamp.UnixNano(), plans, run.Commit, layouts); err != nil {
		return fmt.Errorf("failed to insert sweep %s: %w", run.ID, err)
	}
	for i, p := range run.Points {
		if _, err := tx.Exec(`INSERT INTO points (sweep_id, seq, label, size, variant, average, trials) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, p.Key.Label, p.Key.Size, p.Key.Variant, p.Average, p.Trials); err != nil {
			return fmt.Errorf("failed to insert point %s: %w", p.Key, err)
		}
	}
	return tx.Commit()
}

const sqliteSummaryColumns = `s.id, s.started_at, s.plans, s.commit_sha,
	(SELECT COUNT(*) FROM points p WHERE p.sweep_id = s.id AND p.trials > 0)`

// ListRuns returns archived sweeps, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+sqliteSummaryColumns+` FROM sweeps s ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, summary)
	}
	return results, rows.Err()
}

// GetRun loads one sweep by ID or unique ID prefix.
func (s *SQLiteStore) GetRun(id string) (*benchmark.Run, error) {
	rows, err := s.db.Query(`SELECT id FROM sweeps WHERE id = ? OR id LIKE ? || '%' ORDER BY id = ? DESC`, id, id, id)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var candidate string
		if err := rows.Scan(&candidate); err != nil {
			rows.Close()
			return nil, err
		}
		if candidate == id {
			ids = []string{candidate}
			break
		}
		ids = append(ids, candidate)
	}
	rows.Close()

	resolved, err := resolveID(id, ids)
	if err != nil {
		return nil, err
	}
	return s.load(resolved)
}

// LoadLatest returns the newest sweep that ran exactly plans, or nil when
// there is none. A nil plans matches any sweep.
func (s *SQLiteStore) LoadLatest(plans []string) (*benchmark.Run, error) {
	query := `SELECT id FROM sweeps`
	var args []any
	if plans != nil {
		encoded, err := encodeList("plans", plans)
		if err != nil {
			return nil, err
		}
		query += ` WHERE plans = ?`
		args = append(args, encoded)
	}

	var id string
	err := s.db.QueryRow(query+` ORDER BY started_at DESC LIMIT 1`, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.load(id)
}

// LoadAll returns every sweep, oldest first.
func (s *SQLiteStore) LoadAll() ([]benchmark.Run, error) {
	summaries, err := s.ListRuns(0)
	if err != nil {
		return nil, err
	}
	runs := make([]benchmark.Run, 0, len(summaries))
	for i := len(summaries) - 1; i >= 0; i-- {
		run, err := s.load(summaries[i].ID)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func (s *SQLiteStore) load(id string) (*benchmark.Run, error) {
	summary, err := scanSummary(s.db.QueryRow(`SELECT `+sqliteSummaryColumns+` FROM sweeps s WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT label, size, variant, average, trials FROM points WHERE sweep_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	points, err := scanPoints(rows)
	if err != nil {
		return nil, err
	}
	var layouts string
	if err := s.db.QueryRow(`SELECT layouts FROM sweeps WHERE id = ?`, id).Scan(&layouts); err != nil {
		return nil, err
	}
	return toRun(summary, layouts, points)
}
