package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"alquilercito/models"
)

// SQLiteStore journals refresh runs and their per-feed outcomes. Listings
// themselves are never stored.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS refresh_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME,
		finished_at DATETIME,
		forced BOOLEAN DEFAULT FALSE,
		status TEXT,
		listings INTEGER,
		expires_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS feed_results (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		source TEXT,
		filename TEXT,
		ok BOOLEAN,
		listings INTEGER,
		error TEXT,
		duration_ms INTEGER,
		FOREIGN KEY (run_id) REFERENCES refresh_runs(id)
	);

	CREATE TABLE IF NOT EXISTS feed_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON refresh_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_results_run ON feed_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_filename ON feed_results(filename);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON feed_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a finished refresh, its feed results, and an error log
// line for every failed feed, in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *models.RefreshRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_runs (id, started_at, finished_at, forced, status, listings, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Forced, run.Status, run.Listings, run.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, f := range run.Feeds {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO feed_results (run_id, source, filename, ok, listings, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, f.Source, f.Filename, f.OK, f.Listings, f.Error, f.DurationMS)
		if err != nil {
			return fmt.Errorf("insert feed result %s: %w", f.Filename, err)
		}
		if f.OK {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO feed_logs (run_id, timestamp, level, message, source)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, run.FinishedAt, models.LogLevelError, f.Filename+": "+f.Error, f.Source)
		if err != nil {
			return fmt.Errorf("insert feed log %s: %w", f.Filename, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Logs(ctx context.Context, runID string) ([]models.FeedLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, timestamp, level, message, source
		FROM feed_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.FeedLog
	for rows.Next() {
		var l models.FeedLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// RecentRuns returns up to limit runs, newest first, with their feeds.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, forced, status, listings, expires_at
		FROM refresh_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var runs []models.RefreshRun
	for rows.Next() {
		var r models.RefreshRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Forced, &r.Status, &r.Listings, &r.ExpiresAt); err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		feeds, err := s.feedResults(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Feeds = feeds
	}
	return runs, nil
}

// Run returns a single run, or nil when it does not exist.
func (s *SQLiteStore) Run(ctx context.Context, id string) (*models.RefreshRun, error) {
	var r models.RefreshRun
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, forced, status, listings, expires_at
		FROM refresh_runs WHERE id = ?`, id).
		Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Forced, &r.Status, &r.Listings, &r.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Feeds, err = s.feedResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) feedResults(ctx context.Context, runID string) ([]models.FeedStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, filename, ok, listings, COALESCE(error, ''), duration_ms
		FROM feed_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feeds := []models.FeedStatus{}
	for rows.Next() {
		var f models.FeedStatus
		if err := rows.Scan(&f.Source, &f.Filename, &f.OK, &f.Listings, &f.Error, &f.DurationMS); err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// FeedStats aggregates the journal per feed file.
func (s *SQLiteStore) FeedStats(ctx context.Context) ([]models.FeedStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			filename,
			MAX(source),
			COUNT(*),
			CAST(SUM(CASE WHEN ok THEN 1 ELSE 0 END) AS REAL) / NULLIF(COUNT(*), 0),
			CAST(COALESCE(AVG(duration_ms), 0) AS INTEGER)
		FROM feed_results
		GROUP BY filename
		ORDER BY filename`)
	if err != nil {
		return nil, err
	}

	var stats []models.FeedStats
	for rows.Next() {
		var (
			st   models.FeedStats
			rate sql.NullFloat64
		)
		if err := rows.Scan(&st.Filename, &st.Source, &st.Runs, &rate, &st.AvgDurationMS); err != nil {
			rows.Close()
			return nil, err
		}
		st.SuccessRate = rate.Float64
		stats = append(stats, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stats {
		last, err := s.lastSuccess(ctx, stats[i].Filename)
		if err != nil {
			return nil, err
		}
		stats[i].LastSuccessAt = last
	}
	return stats, nil
}

func (s *SQLiteStore) lastSuccess(ctx context.Context, filename string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT r.started_at FROM refresh_runs r
		JOIN feed_results f ON f.run_id = r.id
		WHERE f.filename = ? AND f.ok
		ORDER BY r.started_at DESC LIMIT 1`, filename).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
