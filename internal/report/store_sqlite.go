package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"ladder_maker/internal/core"
)

// SQLiteStore keeps cycle reports in a single-table SQLite database so they
// survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS cycle_reports (
		cycle_id   TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		data       TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report *core.CycleReport) error {
	data, err := json.Marshal(toRecord(report))
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `INSERT OR REPLACE INTO cycle_reports (cycle_id, started_at, data) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, report.CycleID, report.StartedAt.UnixNano(), string(data)); err != nil {
		return fmt.Errorf("failed to write report to db: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadRecent(ctx context.Context, limit int) ([]*core.CycleReport, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT data FROM cycle_reports ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports from db: %w", err)
	}
	defer rows.Close()

	var out []*core.CycleReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		var rec reportRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		out = append(out, fromRecord(rec))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ core.IReportStore = (*SQLiteStore)(nil)
var _ core.IReportStore = (*MemoryStore)(nil)
