package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

var _ Interface = &SQLiteStorage{}

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS generations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL,
            path TEXT NOT NULL,
            kind TEXT NOT NULL,
            start_offset INTEGER NOT NULL,
            end_offset INTEGER NOT NULL,
            prompt TEXT NOT NULL,
            backend TEXT NOT NULL,
            status TEXT NOT NULL,
            output TEXT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_generations_path ON generations (path);
    `)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) SaveRecord(ctx context.Context, record Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (run_id, path, kind, start_offset, end_offset, prompt, backend, status, output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime(?))`,
		record.RunID, record.Path, record.Kind, record.Start, record.End, record.Prompt,
		record.Backend, record.Status, record.Output, record.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		log.Printf("⚠️ Error saving record for %s: %v", record.Path, err)
		return err
	}
	return nil
}

// GetHistory returns the newest records first. An empty path matches every
// file; limit <= 0 means no limit.
func (s *SQLiteStorage) GetHistory(ctx context.Context, path string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, path, kind, start_offset, end_offset, prompt, backend, status, COALESCE(output, ''), created_at
		 FROM generations
		 WHERE ? = '' OR path = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		path, path, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Record
	for rows.Next() {
		var r Record
		var createdAt any
		if err = rows.Scan(&r.ID, &r.RunID, &r.Path, &r.Kind, &r.Start, &r.End, &r.Prompt,
			&r.Backend, &r.Status, &r.Output, &createdAt); err != nil {
			log.Printf("⚠️ Error scanning journal row: %v", err)
			continue
		}
		r.CreatedAt = parseTime(createdAt)
		history = append(history, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

// parseTime accepts both the driver's parsed time and the raw column text.
func parseTime(v any) time.Time {
	var raw string
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
