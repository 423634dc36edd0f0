package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RecordType identifies one of the four campaign-finance disclosure
// categories published by the electoral authority. The set is closed:
// files matching none of these are excluded from processing entirely.
type RecordType string

const (
	TypeRevenue           RecordType = "revenue"
	TypeContractedExpense RecordType = "contracted-expense"
	TypePaidExpense       RecordType = "paid-expense"
	TypeOriginalDonor     RecordType = "original-donor"
)

// AllRecordTypes returns the record types in their processing order.
func AllRecordTypes() []RecordType {
	return []RecordType{TypeRevenue, TypeContractedExpense, TypePaidExpense, TypeOriginalDonor}
}

// FileDescriptor is one classified input file. Created by the classifier
// and owned by the orchestrator for the duration of that file's run.
type FileDescriptor struct {
	Path string
	Type RecordType
	Size int64
}

// Record is a single data row: the header tokens of its source file mapped
// to the row's cell values, plus provenance metadata. Field names are the
// literal header tokens; no normalization happens before validation.
// A Record is immutable once built.
type Record struct {
	Type       RecordType
	SourceFile string
	RowNumber  int64
	Fields     map[string]string
}

// Field returns the value for a header token, or "" when the row had no
// cell for it (ragged rows zip to the shorter length).
func (r *Record) Field(name string) string {
	return r.Fields[name]
}

// ValidationResult is the per-record verdict. Amount is set only when the
// record is valid; GeographicUnit may be empty regardless of validity.
type ValidationResult struct {
	Valid          bool
	Amount         decimal.Decimal
	GeographicUnit string
}

// FileStats accumulates counters for one file. Created at file open,
// finalized at file close, then merged into the aggregate.
type FileStats struct {
	Path            string
	Type            RecordType
	SizeBytes       int64
	RowsProcessed   int64
	ValidRecords    int64
	InvalidRecords  int64
	GeographicUnits map[string]int64
	Elapsed         time.Duration
	Err             error

	// Truncated reports that decoding failed partway through the file;
	// rows yielded before the failure still count.
	Truncated bool

	// SchemaDriftSuspected flags files whose invalid rate is high enough
	// to suggest the publisher renamed a required column.
	SchemaDriftSuspected bool
}

// AggregateStats is the process-wide accumulator. It is owned by the
// aggregator; everything else reads snapshots.
type AggregateStats struct {
	FilesProcessed   int64
	FilesSkipped     int64
	FilesWithErrors  int64
	RecordsProcessed int64
	ValidRecords     int64
	InvalidRecords   int64
	RecordsByType    map[RecordType]int64
	ValidByType      map[RecordType]int64
	FilesByType      map[RecordType]int64
	RecordsByUnit    map[string]int64
	Elapsed          time.Duration
}

// AppError is a file-scoped processing error carried over the errors
// channel so workers never log-and-die mid pipeline.
type AppError struct {
	File    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.File, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}
