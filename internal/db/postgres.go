package db

import (
	"database/sql"
	"errors"
	"fmt"

	"benchmatrix/internal/benchmark"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store and applies migrations
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sweeps (
			id TEXT PRIMARY KEY,
			started_at BIGINT NOT NULL,
			plans TEXT NOT NULL,
			commit_sha TEXT,
			layouts TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS points (
			sweep_id TEXT NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			label TEXT NOT NULL,
			size BIGINT NOT NULL,
			variant TEXT NOT NULL DEFAULT '',
			average DOUBLE PRECISION NOT NULL,
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Save archives a sweep and its points in one transaction.
func (s *PostgresStore) Save(run benchmark.Run) error {
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

	if _, err := tx.Exec(`INSERT INTO sweeps (id, started_at, plans, commit_sha, layouts) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Timestamp.UnixNano(), plans, run.Commit, layouts); err != nil {
		return fmt.Errorf("failed to insert sweep %s: %w", run.ID, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO points (sweep_id, seq, label, size, variant, average, trials) VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range run.Points {
		if _, err := stmt.Exec(run.ID, i, p.Key.Label, p.Key.Size, p.Key.Variant, p.Average, p.Trials); err != nil {
			return fmt.Errorf("failed to insert point %s: %w", p.Key, err)
		}
	}
	return tx.Commit()
}

const postgresSummaryColumns = `s.id, s.started_at, s.plans, s.commit_sha,
	(SELECT COUNT(*) FROM points p WHERE p.sweep_id = s.id AND p.trials > 0)`

// ListRuns returns archived sweeps, newest first.
func (s *PostgresStore) ListRuns(limit int) ([]RunSummary, error) {
	query := `SELECT ` + postgresSummaryColumns + ` FROM sweeps s ORDER BY s.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
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
func (s *PostgresStore) GetRun(id string) (*benchmark.Run, error) {
	rows, err := s.db.Query(`SELECT id FROM sweeps WHERE id = $1 OR starts_with(id, $1)`, id)
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
func (s *PostgresStore) LoadLatest(plans []string) (*benchmark.Run, error) {
	query := `SELECT id FROM sweeps`
	var args []any
	if plans != nil {
		encoded, err := encodeList("plans", plans)
		if err != nil {
			return nil, err
		}
		query += ` WHERE plans = $1`
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
func (s *PostgresStore) LoadAll() ([]benchmark.Run, error) {
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

func (s *PostgresStore) load(id string) (*benchmark.Run, error) {
	summary, err := scanSummary(s.db.QueryRow(`SELECT `+postgresSummaryColumns+` FROM sweeps s WHERE s.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT label, size, variant, average, trials FROM points WHERE sweep_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	points, err := scanPoints(rows)
	if err != nil {
		return nil, err
	}
	var layouts string
	if err := s.db.QueryRow(`SELECT layouts FROM sweeps WHERE id = $1`, id).Scan(&layouts); err != nil {
		return nil, err
	}
	return toRun(summary, layouts, points)
}
