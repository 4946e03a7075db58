package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

type Interface interface {
	SaveRecord(ctx context.Context, record Record) error
	GetHistory(ctx context.Context, path string, limit int) ([]Record, error)
	Close() error
}

// Record is the outcome of one marker in one pipeline run.
type Record struct {
	ID        int64     `json:"id" db:"id"`
	RunID     string    `json:"run_id" db:"run_id"`
	Path      string    `json:"path" db:"path"`
	Kind      string    `json:"kind" db:"kind"`
	Start     int       `json:"start" db:"start_offset"`
	End       int       `json:"end" db:"end_offset"`
	Prompt    string    `json:"prompt" db:"prompt"`
	Backend   string    `json:"backend" db:"backend"`
	Status    string    `json:"status" db:"status"`
	Output    string    `json:"output" db:"output"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (r Record) String() string {
	return fmt.Sprintf("%s | %s | %s [%d,%d) | %s | %s | %q",
		r.CreatedAt.Format(time.DateTime), r.RunID, r.Path, r.Start, r.End, r.Backend, r.Status, r.Prompt)
}

// Discard drops every record. It is used when no journal is configured.
type Discard struct{}

func (Discard) SaveRecord(context.Context, Record) error { return nil }

func (Discard) GetHistory(context.Context, string, int) ([]Record, error) { return nil, nil }

func (Discard) Close() error { return nil }
