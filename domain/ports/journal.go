package ports

import (
	"context"

	"github.com/parac-dev/parac-runtime/domain/entities"
)

// RunJournal records the outcome of program runs.
type RunJournal interface {
	// Record stores rec and returns its identifier.
	Record(ctx context.Context, rec entities.RunRecord) (int64, error)
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]entities.RunRecord, error)
}
