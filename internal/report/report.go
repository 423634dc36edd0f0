// Package report renders the final aggregate statistics. Building a
// Summary is a pure function over a finished AggregateStats plus the
// per-file details collected during the run.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

// ElectoralUnits is the number of subnational electoral units the
// authority publishes per record type (26 states plus the federal
// district). A complete corpus has one file per type per unit.
const ElectoralUnits = 27

// ExpectedFiles is the file count of a complete run.
var ExpectedFiles = len(models.AllRecordTypes()) * ElectoralUnits

type UnitVolume struct {
	Unit    string
	Records int64
}

type FileDetail struct {
	Path                 string
	Type                 models.RecordType
	SizeBytes            int64
	Rows                 int64
	Valid                int64
	Invalid              int64
	Elapsed              time.Duration
	Err                  string
	Truncated            bool
	SchemaDriftSuspected bool
}

type Summary struct {
	Stats         models.AggregateStats
	TypeBreakdown map[models.RecordType]float64
	TopUnits      []UnitVolume
	Throughput    float64
	ExpectedFiles int
	IncompleteRun bool
	Files         []FileDetail
}

// Build derives the summary from a completed run. topN bounds the
// geographic breakdown; the per-file list is sorted by path so output is
// reproducible regardless of worker finishing order.
func Build(stats models.AggregateStats, files []models.FileStats, topN int) Summary {
	s := Summary{
		Stats:         stats,
		TypeBreakdown: make(map[models.RecordType]float64),
		ExpectedFiles: ExpectedFiles,
		IncompleteRun: stats.FilesProcessed != int64(ExpectedFiles),
	}

	if stats.RecordsProcessed > 0 {
		for _, t := range models.AllRecordTypes() {
			s.TypeBreakdown[t] = 100 * float64(stats.RecordsByType[t]) / float64(stats.RecordsProcessed)
		}
	}

	if stats.Elapsed > 0 {
		s.Throughput = float64(stats.RecordsProcessed) / stats.Elapsed.Seconds()
	}

	s.TopUnits = topUnits(stats.RecordsByUnit, topN)

	for _, fs := range files {
		detail := FileDetail{
			Path:                 fs.Path,
			Type:                 fs.Type,
			SizeBytes:            fs.SizeBytes,
			Rows:                 fs.RowsProcessed,
			Valid:                fs.ValidRecords,
			Invalid:              fs.InvalidRecords,
			Elapsed:              fs.Elapsed,
			Truncated:            fs.Truncated,
			SchemaDriftSuspected: fs.SchemaDriftSuspected,
		}
		if fs.Err != nil {
			detail.Err = fs.Err.Error()
		}
		s.Files = append(s.Files, detail)
	}
	sort.Slice(s.Files, func(i, j int) bool { return s.Files[i].Path < s.Files[j].Path })

	return s
}

func topUnits(byUnit map[string]int64, topN int) []UnitVolume {
	units := make([]UnitVolume, 0, len(byUnit))
	for unit, count := range byUnit {
		units = append(units, UnitVolume{Unit: unit, Records: count})
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Records != units[j].Records {
			return units[i].Records > units[j].Records
		}
		return units[i].Unit < units[j].Unit
	})
	if topN > 0 && len(units) > topN {
		units = units[:topN]
	}
	return units
}

// Render formats a Summary for humans. Structured consumers should use
// the Summary value directly.
func Render(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Campaign Finance Ingestion Report ===\n")
	fmt.Fprintf(&b, "Files processed:  %d (expected %d", s.Stats.FilesProcessed, s.ExpectedFiles)
	if s.IncompleteRun {
		b.WriteString(", INCOMPLETE RUN")
	}
	b.WriteString(")\n")
	fmt.Fprintf(&b, "Files skipped:    %d\n", s.Stats.FilesSkipped)
	fmt.Fprintf(&b, "Files with errors: %d\n", s.Stats.FilesWithErrors)
	fmt.Fprintf(&b, "Records:          %d total, %d valid, %d invalid\n",
		s.Stats.RecordsProcessed, s.Stats.ValidRecords, s.Stats.InvalidRecords)
	fmt.Fprintf(&b, "Elapsed:          %s (%.0f records/s)\n", s.Stats.Elapsed.Round(time.Millisecond), s.Throughput)

	b.WriteString("\nBy record type:\n")
	for _, t := range models.AllRecordTypes() {
		fmt.Fprintf(&b, "  %-20s %10d records (%5.1f%%) in %d files\n",
			t, s.Stats.RecordsByType[t], s.TypeBreakdown[t], s.Stats.FilesByType[t])
	}

	if len(s.TopUnits) > 0 {
		b.WriteString("\nTop geographic units:\n")
		for _, uv := range s.TopUnits {
			fmt.Fprintf(&b, "  %-4s %10d records\n", uv.Unit, uv.Records)
		}
	}

	if len(s.Files) > 0 {
		b.WriteString("\nPer-file detail:\n")
		for _, f := range s.Files {
			fmt.Fprintf(&b, "  %s [%s] rows=%d valid=%d invalid=%d elapsed=%s",
				f.Path, f.Type, f.Rows, f.Valid, f.Invalid, f.Elapsed.Round(time.Millisecond))
			if f.Truncated {
				b.WriteString(" TRUNCATED")
			}
			if f.SchemaDriftSuspected {
				b.WriteString(" SCHEMA-DRIFT-SUSPECTED")
			}
			if f.Err != "" {
				fmt.Fprintf(&b, " error=%q", f.Err)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
