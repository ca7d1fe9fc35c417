// Package store records feature runs in a SQLite history database.
package store

import (
	"context"
	"time"

	"github.com/sells-group/spatial-features/internal/diagnostics"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded invocation of a feature command.
type Run struct {
	ID        string                `json:"id"`
	Kind      string                `json:"kind"`
	Status    RunStatus             `json:"status"`
	Params    map[string]any        `json:"params,omitempty"`
	Rows      int                   `json:"rows"`
	Summaries []diagnostics.Summary `json:"summaries,omitempty"`
	Error     string                `json:"error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   string    `json:"kind,omitempty"`
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	CreateRun(ctx context.Context, kind string, params map[string]any) (*Run, error)
	CompleteRun(ctx context.Context, runID string, rows int, sums []diagnostics.Summary) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
