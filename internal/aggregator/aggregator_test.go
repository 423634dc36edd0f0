package aggregator

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

func sampleFileStats() []models.FileStats {
	return []models.FileStats{
		{
			Path: "receitas_2024_SP.csv", Type: models.TypeRevenue,
			RowsProcessed: 100, ValidRecords: 90, InvalidRecords: 10,
			GeographicUnits: map[string]int64{"SP": 90},
		},
		{
			Path: "receitas_2024_RJ.csv", Type: models.TypeRevenue,
			RowsProcessed: 50, ValidRecords: 40, InvalidRecords: 10,
			GeographicUnits: map[string]int64{"RJ": 35, "SP": 5},
		},
		{
			Path: "despesas_pagas_2024_SP.csv", Type: models.TypePaidExpense,
			RowsProcessed: 70, ValidRecords: 70,
			GeographicUnits: map[string]int64{"SP": 70},
		},
		{
			Path: "despesas_contratadas_2024_MG.csv", Type: models.TypeContractedExpense,
			RowsProcessed: 30, ValidRecords: 5, InvalidRecords: 25,
			GeographicUnits: map[string]int64{"MG": 5},
			Truncated:       true, Err: errors.New("decode failure"),
		},
	}
}

func TestMerge_Totals(t *testing.T) {
	agg := New()
	for _, fs := range sampleFileStats() {
		agg.Merge(fs)
	}

	stats := agg.Snapshot()
	assert.Equal(t, int64(4), stats.FilesProcessed)
	assert.Equal(t, int64(250), stats.RecordsProcessed)
	assert.Equal(t, int64(205), stats.ValidRecords)
	assert.Equal(t, int64(45), stats.InvalidRecords)
	assert.Equal(t, int64(150), stats.RecordsByType[models.TypeRevenue])
	assert.Equal(t, int64(2), stats.FilesByType[models.TypeRevenue])
	assert.Equal(t, int64(165), stats.RecordsByUnit["SP"])
	assert.Equal(t, int64(35), stats.RecordsByUnit["RJ"])
	assert.Equal(t, int64(1), stats.FilesWithErrors)
}

// sum(records-by-type) == total records processed after every merge.
func TestMerge_TypeConservation(t *testing.T) {
	agg := New()
	for _, fs := range sampleFileStats() {
		agg.Merge(fs)

		stats := agg.Snapshot()
		var byType int64
		for _, count := range stats.RecordsByType {
			byType += count
		}
		assert.Equal(t, stats.RecordsProcessed, byType)
		assert.Equal(t, stats.RecordsProcessed, stats.ValidRecords+stats.InvalidRecords)
	}
}

// Merging in any permutation order yields an identical aggregate.
func TestMerge_Commutative(t *testing.T) {
	files := sampleFileStats()

	reference := New()
	for _, fs := range files {
		reference.Merge(fs)
	}
	want := reference.Snapshot()

	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 20; run++ {
		shuffled := append([]models.FileStats(nil), files...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		agg := New()
		for _, fs := range shuffled {
			agg.Merge(fs)
		}
		assert.Equal(t, want, agg.Snapshot())
	}
}

func TestMerge_Concurrent(t *testing.T) {
	agg := New()
	files := sampleFileStats()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, fs := range files {
				agg.Merge(fs)
			}
		}()
	}
	wg.Wait()

	stats := agg.Snapshot()
	assert.Equal(t, int64(4*8), stats.FilesProcessed)
	assert.Equal(t, int64(250*8), stats.RecordsProcessed)
}

func TestSnapshot_Isolation(t *testing.T) {
	agg := New()
	agg.Merge(sampleFileStats()[0])

	snapshot := agg.Snapshot()
	snapshot.RecordsByUnit["SP"] = 0
	snapshot.RecordsByType[models.TypeRevenue] = 0

	fresh := agg.Snapshot()
	assert.Equal(t, int64(90), fresh.RecordsByUnit["SP"])
	assert.Equal(t, int64(100), fresh.RecordsByType[models.TypeRevenue])
}

func TestRecordSkippedAndElapsed(t *testing.T) {
	agg := New()
	agg.RecordSkipped(3)
	agg.RecordSkipped(1)
	agg.SetElapsed(2 * time.Second)

	stats := agg.Snapshot()
	assert.Equal(t, int64(4), stats.FilesSkipped)
	assert.Equal(t, 2*time.Second, stats.Elapsed)
}
