// Package store persists check-run history. The history is informational:
// the version gate reads report filenames, never this store.
package store

import (
	"context"

	"github.com/bennettoxford/dmdwatch/internal/model"
)

// Store defines the run-history persistence interface.
type Store interface {
	RecordRun(ctx context.Context, run model.Run) (string, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	Migrate(ctx context.Context) error
	Close() error
}
