package processor

import (
	"context"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

// Sink receives every valid record. Implementations may batch internally
// but must not block forever: the processor treats a forward blocked past
// its configured timeout as a cancellation trigger.
type Sink interface {
	// Accept persists a batch of valid records.
	Accept(ctx context.Context, records []*models.Record) error

	// SeenFile reports whether a file with this content checksum was
	// already fully processed in a previous run.
	SeenFile(ctx context.Context, checksum string) (bool, error)

	// RecordFile stores the outcome of one processed file.
	RecordFile(ctx context.Context, stats models.FileStats, checksum string) error
}

// DiscardSink drops everything. Used for report-only runs where no
// database is configured.
type DiscardSink struct{}

func (DiscardSink) Accept(ctx context.Context, records []*models.Record) error {
	return nil
}

func (DiscardSink) SeenFile(ctx context.Context, checksum string) (bool, error) {
	return false, nil
}

func (DiscardSink) RecordFile(ctx context.Context, stats models.FileStats, checksum string) error {
	return nil
}
