// Package reader streams records out of one delimited file at a time.
// A RecordReader is forward-only and holds a single row in memory;
// re-reading a file means reopening it.
package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/detect"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

type RecordReader struct {
	desc      models.FileDescriptor
	file      *os.File
	csv       *csv.Reader
	header    []string
	row       int64
	skipped   int64
	truncated bool
	headerErr error
}

// Open opens the file and consumes its header line. The detection is
// fixed for the whole file; rows are decoded through it.
func Open(desc models.FileDescriptor, det detect.Detection) (*RecordReader, error) {
	file, err := os.Open(desc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", desc.Path, err)
	}

	cr := csv.NewReader(det.DecodeReader(file))
	cr.Comma = det.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	rr := &RecordReader{desc: desc, file: file, csv: cr}

	header, err := cr.Read()
	if err != nil && err != io.EOF {
		rr.truncated = true
		rr.headerErr = fmt.Errorf("failed to read header from %s: %w", desc.Path, err)
		return rr, nil
	}
	for i, cell := range header {
		header[i] = strings.TrimPrefix(cell, "\ufeff")
	}
	rr.header = append([]string(nil), header...)

	return rr, nil
}

// Header returns the file's header tokens as decoded.
func (r *RecordReader) Header() []string {
	return r.header
}

// Truncated reports whether the stream ended early on a decode failure.
// Rows yielded before the failure remain valid.
func (r *RecordReader) Truncated() bool {
	return r.truncated
}

// SkippedRows reports how many rows were dropped on a row-local parse
// error. They keep their place in the row numbering.
func (r *RecordReader) SkippedRows() int64 {
	return r.skipped
}

// Next returns the next data row as a Record, io.EOF at the end of the
// file, or a terminal error when decoding fails mid-file. Rows with a
// row-local parse problem are counted and skipped; rows with fewer or
// more cells
// than the header are zipped up to the shorter length and left for the
// validator to judge.
func (r *RecordReader) Next() (*models.Record, error) {
	if r.headerErr != nil {
		err := r.headerErr
		r.headerErr = nil
		return nil, err
	}
	if r.truncated {
		return nil, io.EOF
	}

	for {
		cells, err := r.csv.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				r.row++
				r.skipped++
				continue
			}
			r.truncated = true
			return nil, fmt.Errorf("decode failed in %s after row %d: %w", r.desc.Path, r.row, err)
		}

		r.row++
		n := len(cells)
		if len(r.header) < n {
			n = len(r.header)
		}
		fields := make(map[string]string, n)
		for i := 0; i < n; i++ {
			fields[r.header[i]] = cells[i]
		}

		return &models.Record{
			Type:       r.desc.Type,
			SourceFile: r.desc.Path,
			RowNumber:  r.row,
			Fields:     fields,
		}, nil
	}
}

// Close releases the underlying file. The reader is not restartable.
func (r *RecordReader) Close() error {
	return r.file.Close()
}
