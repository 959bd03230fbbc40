package port

import (
	"context"

	"fapiao/internal/domain"
)

// RecordSink persists a completed batch result. Implementations include the
// spreadsheet/CSV writers and the optional Postgres repository.
type RecordSink interface {
	WriteBatch(ctx context.Context, result *domain.BatchResult) error
}
