// Package database implements the processor's sink on PostgreSQL: a
// ledger of processed files keyed by content checksum, and bulk COPY
// loading of validated records.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

const (
	FileStatusDone           = "DONE"
	FileStatusDoneWithErrors = "DONE_WITH_ERRORS"
)

func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return pool, nil
}

type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// EnsureSchema creates the file ledger and record tables if missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS finance_files (
			id SERIAL PRIMARY KEY,
			file_name VARCHAR(512) NOT NULL,
			record_type VARCHAR(32) NOT NULL,
			processed_at TIMESTAMP NOT NULL,
			status VARCHAR(50) NOT NULL CHECK (status IN ('DONE', 'DONE_WITH_ERRORS')),
			checksum VARCHAR(64) NOT NULL,
			rows_processed BIGINT NOT NULL,
			valid_records BIGINT NOT NULL,
			invalid_records BIGINT NOT NULL,
			truncated BOOLEAN NOT NULL DEFAULT FALSE,
			error TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_finance_files_checksum ON finance_files (checksum, status);`,
		`CREATE TABLE IF NOT EXISTS finance_records (
			id BIGSERIAL PRIMARY KEY,
			record_type VARCHAR(32) NOT NULL,
			source_file VARCHAR(512) NOT NULL,
			row_number BIGINT NOT NULL,
			fields JSONB NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("error ensuring schema: %w", err)
		}
	}
	return nil
}

// Accept bulk-loads one batch of validated records with COPY.
func (s *PostgresSink) Accept(ctx context.Context, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}

	columnNames := []string{"record_type", "source_file", "row_number", "fields"}
	copySource := pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
		rec := records[i]
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal fields for %s row %d: %w", rec.SourceFile, rec.RowNumber, err)
		}
		return []interface{}{string(rec.Type), rec.SourceFile, rec.RowNumber, fields}, nil
	})

	if _, err := s.pool.CopyFrom(ctx, pgx.Identifier{"finance_records"}, columnNames, copySource); err != nil {
		return fmt.Errorf("error copying records batch: %w", err)
	}
	return nil
}

// SeenFile reports whether a file with this checksum already completed
// cleanly, making re-runs over the same directory idempotent.
func (s *PostgresSink) SeenFile(ctx context.Context, checksum string) (bool, error) {
	query := `
	SELECT id
	FROM finance_files
	WHERE checksum = $1 AND status = 'DONE';`

	var id int
	err := s.pool.QueryRow(ctx, query, checksum).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error finding file record by checksum: %w", err)
	}
	return true, nil
}

// RecordFile stores one processed file's outcome in the ledger.
func (s *PostgresSink) RecordFile(ctx context.Context, stats models.FileStats, checksum string) error {
	status := FileStatusDone
	if stats.Err != nil || stats.Truncated {
		status = FileStatusDoneWithErrors
	}

	var errText *string
	if stats.Err != nil {
		msg := stats.Err.Error()
		errText = &msg
	}

	query := `
	INSERT INTO finance_files
		(file_name, record_type, processed_at, status, checksum, rows_processed, valid_records, invalid_records, truncated, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err := s.pool.Exec(ctx, query,
		stats.Path, string(stats.Type), time.Now(), status, checksum,
		stats.RowsProcessed, stats.ValidRecords, stats.InvalidRecords, stats.Truncated, errText)
	if err != nil {
		return fmt.Errorf("error inserting file record: %w", err)
	}
	return nil
}
