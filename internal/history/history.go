// Package history keeps a SQLite log of handled webhook deliveries.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shook/internal/security"
)

// History manages delivery history in SQLite
type History struct {
	db *sql.DB
}

// NewHistory opens (creating if needed) the database at dbPath.
func NewHistory(dbPath string) (*History, error) {
	if dbPath != ":memory:" {
		if err := prepareFile(dbPath); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return h, nil
}

// prepareFile creates the database file with restricted permissions so
// SQLite does not create it with the process umask.
func prepareFile(dbPath string) error {
	if _, err := os.Stat(dbPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat database: %w", err)
	}
	if err := security.CreateSecureDir(filepath.Dir(dbPath), security.PermDirectory); err != nil {
		return err
	}
	f, err := security.CreateSecureFile(dbPath, security.PermDBFile)
	if err != nil {
		return err
	}
	return f.Close()
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guid TEXT NOT NULL,
			event TEXT NOT NULL,
			outcome TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			duration_seconds REAL,
			exit_code INTEGER,
			error_message TEXT,
			config_fingerprint TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`CREATE INDEX IF NOT EXISTS idx_deliveries_guid ON deliveries(guid)`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Record inserts a delivery. A zero StartedAt is set to now.
func (h *History) Record(ctx context.Context, record *DeliveryRecord) (int64, error) {
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO deliveries
		(guid, event, outcome, status_code, started_at,
		 duration_seconds, exit_code, error_message, config_fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.GUID,
		record.Event,
		string(record.Outcome),
		record.StatusCode,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.DurationSeconds,
		record.ExitCode,
		record.ErrorMessage,
		record.ConfigFingerprint,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert delivery record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	record.ID = id
	return id, nil
}

const selectColumns = `
	SELECT id, guid, event, outcome, status_code, started_at,
	       duration_seconds, exit_code, error_message, config_fingerprint
	FROM deliveries`

// Latest returns the most recent delivery, or nil when there is none.
func (h *History) Latest(ctx context.Context) (*DeliveryRecord, error) {
	row := h.db.QueryRowContext(ctx, selectColumns+` ORDER BY id DESC LIMIT 1`)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest delivery: %w", err)
	}
	return record, nil
}

// Recent returns up to limit deliveries, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	rows, err := h.db.QueryContext(ctx, selectColumns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery history: %w", err)
	}
	defer rows.Close()

	records := []DeliveryRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// FindByGUID returns the deliveries recorded for one delivery id. GitHub
// reuses the id when a delivery is redelivered.
func (h *History) FindByGUID(ctx context.Context, guid string) ([]DeliveryRecord, error) {
	rows, err := h.db.QueryContext(ctx, selectColumns+` WHERE guid = ? ORDER BY id`, guid)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery %s: %w", guid, err)
	}
	defer rows.Close()

	var records []DeliveryRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Counts returns the number of deliveries per outcome.
func (h *History) Counts(ctx context.Context) (map[Outcome]int64, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM deliveries GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// Status gathers the latest delivery, recent ones and per-outcome counts.
func (h *History) Status(ctx context.Context, limit int) (*Status, error) {
	latest, err := h.Latest(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := h.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	counts, err := h.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Latest: latest, Recent: recent, Counts: counts}, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*DeliveryRecord, error) {
	var record DeliveryRecord
	var outcome, startedAt string
	var exitCode sql.NullInt64

	err := s.Scan(
		&record.ID,
		&record.GUID,
		&record.Event,
		&outcome,
		&record.StatusCode,
		&startedAt,
		&record.DurationSeconds,
		&exitCode,
		&record.ErrorMessage,
		&record.ConfigFingerprint,
	)
	if err != nil {
		return nil, err
	}

	record.Outcome = Outcome(outcome)
	record.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		record.ExitCode = &code
	}
	return &record, nil
}
