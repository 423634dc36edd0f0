// Package aggregator owns the process-wide statistics. All mutation goes
// through one mutex-guarded value; merging completed files is commutative
// and associative, so files may finish in any order.
package aggregator

import (
	"sync"
	"time"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

type Aggregator struct {
	mu    sync.Mutex
	stats models.AggregateStats
}

func New() *Aggregator {
	return &Aggregator{
		stats: models.AggregateStats{
			RecordsByType: make(map[models.RecordType]int64),
			ValidByType:   make(map[models.RecordType]int64),
			FilesByType:   make(map[models.RecordType]int64),
			RecordsByUnit: make(map[string]int64),
		},
	}
}

// Merge folds one completed file's counters into the aggregate.
func (a *Aggregator) Merge(fs models.FileStats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.FilesProcessed++
	a.stats.FilesByType[fs.Type]++
	a.stats.RecordsProcessed += fs.RowsProcessed
	a.stats.ValidRecords += fs.ValidRecords
	a.stats.InvalidRecords += fs.InvalidRecords
	a.stats.RecordsByType[fs.Type] += fs.RowsProcessed
	a.stats.ValidByType[fs.Type] += fs.ValidRecords
	for unit, count := range fs.GeographicUnits {
		a.stats.RecordsByUnit[unit] += count
	}
	if fs.Err != nil || fs.Truncated {
		a.stats.FilesWithErrors++
	}
}

// RecordSkipped counts files excluded from the run (unclassified names or
// already-processed checksums). Skipped files never appear in the
// per-type maps.
func (a *Aggregator) RecordSkipped(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.FilesSkipped += int64(n)
}

// SetElapsed stamps the total run duration once dispatching is over.
func (a *Aggregator) SetElapsed(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Elapsed = d
}

// Snapshot returns a deep copy safe to read while workers still run.
func (a *Aggregator) Snapshot() models.AggregateStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := a.stats
	snapshot.RecordsByType = copyMap(a.stats.RecordsByType)
	snapshot.ValidByType = copyMap(a.stats.ValidByType)
	snapshot.FilesByType = copyMap(a.stats.FilesByType)
	snapshot.RecordsByUnit = copyMap(a.stats.RecordsByUnit)
	return snapshot
}

func copyMap[K comparable](m map[K]int64) map[K]int64 {
	out := make(map[K]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
