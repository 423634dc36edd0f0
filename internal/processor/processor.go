// Package processor orchestrates the bulk ingestion run: classify the
// input directory, stream each file through detection, decoding and
// validation on a bounded worker pool, forward valid records to the sink,
// and fold per-file statistics into the aggregate.
package processor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/aggregator"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/classifier"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/config"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/detect"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/reader"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/report"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/validator"
	"github.com/fcavalcantirj/open-data-gov-sub002/pkg/checksum"
	"github.com/fcavalcantirj/open-data-gov-sub002/pkg/document"
)

// maxRetainedErrorsPerFile bounds error logging for badly malformed
// files; past the cap the file gets a single "too many errors" notice.
const maxRetainedErrorsPerFile = 100

type Processor struct {
	cfg       config.Config
	sink      Sink
	validator *validator.Validator
	logger    *slog.Logger
}

func New(cfg config.Config, sink Sink) *Processor {
	v := &validator.Validator{}
	if cfg.ValidateTaxIDs {
		v.TaxIDCheck = document.IsValidTaxID
	}

	return &Processor{
		cfg:       cfg,
		sink:      sink,
		validator: v,
		logger:    slog.Default(),
	}
}

// pipeline carries one run's shared channels and accumulator so workers
// do not each take a long parameter list.
type pipeline struct {
	ctx     context.Context
	cancel  context.CancelFunc
	agg     *aggregator.Aggregator
	records chan *models.Record
	errs    chan models.AppError
	stats   chan models.FileStats
}

// Run processes every classified file under dir and returns the final
// summary. Cancellation of ctx stops dispatching immediately; in-flight
// files stop at the next row boundary and the summary still reflects
// everything aggregated so far. The only failure without a report is the
// directory listing itself.
func (p *Processor) Run(ctx context.Context, dir string) (report.Summary, error) {
	start := time.Now()

	classified, err := classifier.Classify(dir)
	if err != nil {
		return report.Summary{}, err
	}
	files := classified.Files()
	p.logger.Info("classified input directory",
		"dir", dir, "files", len(files), "skipped", classified.Skipped)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pl := &pipeline{
		ctx:     runCtx,
		cancel:  cancel,
		agg:     aggregator.New(),
		records: make(chan *models.Record, p.cfg.RecordsChannelSize),
		errs:    make(chan models.AppError, 256),
		stats:   make(chan models.FileStats),
	}
	pl.agg.RecordSkipped(classified.Skipped)

	// Single collector goroutine owns the merge order and the per-file
	// detail list; workers never touch the aggregate from row loops.
	var fileStats []models.FileStats
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for fs := range pl.stats {
			pl.agg.Merge(fs)
			fileStats = append(fileStats, fs)
		}
	}()

	var errorWg sync.WaitGroup
	errorWg.Add(1)
	go func() {
		defer errorWg.Done()
		p.errorCollector(pl.errs)
	}()

	var sinkWg sync.WaitGroup
	for i := 1; i <= p.cfg.NumSinkWorkers; i++ {
		sinkWg.Add(1)
		go func(id int) {
			defer sinkWg.Done()
			p.sinkWorker(runCtx, id, pl.records, pl.errs)
		}(i)
	}

	jobs := make(chan models.FileDescriptor)
	var fileWg sync.WaitGroup
	for i := 1; i <= p.cfg.NumFileWorkers; i++ {
		fileWg.Add(1)
		go func() {
			defer fileWg.Done()
			for desc := range jobs {
				p.processFile(pl, desc)
			}
		}()
	}

dispatch:
	for _, desc := range files {
		select {
		case jobs <- desc:
		case <-runCtx.Done():
			p.logger.Warn("run cancelled, stopping file dispatch", "cause", runCtx.Err())
			break dispatch
		}
	}
	close(jobs)

	fileWg.Wait()
	close(pl.records)
	sinkWg.Wait()
	close(pl.errs)
	errorWg.Wait()
	close(pl.stats)
	collectorWg.Wait()

	pl.agg.SetElapsed(time.Since(start))
	summary := report.Build(pl.agg.Snapshot(), fileStats, p.cfg.TopUnits)
	p.logger.Info("run finished",
		"files", summary.Stats.FilesProcessed,
		"records", summary.Stats.RecordsProcessed,
		"valid", summary.Stats.ValidRecords,
		"elapsed", summary.Stats.Elapsed)
	return summary, nil
}

// processFile runs the detect -> stream -> validate pipeline for one
// file and reports its FileStats, even when the file fails outright.
func (p *Processor) processFile(pl *pipeline, desc models.FileDescriptor) {
	stats := models.FileStats{
		Path:            desc.Path,
		Type:            desc.Type,
		SizeBytes:       desc.Size,
		GeographicUnits: make(map[string]int64),
	}
	start := time.Now()
	logger := p.logger.With("file", desc.Path, "type", string(desc.Type))

	finish := func() {
		stats.Elapsed = time.Since(start)
		stats.SchemaDriftSuspected = validator.SchemaDriftSuspected(stats)
		if stats.SchemaDriftSuspected {
			logger.Warn("schema drift suspected: invalid rate over threshold",
				"rows", stats.RowsProcessed, "invalid", stats.InvalidRecords)
		}
		pl.stats <- stats
	}

	sum, err := checksum.FileChecksum(desc.Path)
	if err != nil {
		stats.Err = err
		pl.errs <- models.AppError{File: desc.Path, Message: "failed to checksum file", Err: err}
		finish()
		return
	}

	seen, err := p.sink.SeenFile(pl.ctx, sum)
	if err != nil {
		logger.Warn("could not check processed-file ledger, processing anyway", "error", err)
	} else if seen {
		logger.Info("file already processed, skipping", "checksum", sum)
		pl.agg.RecordSkipped(1)
		return
	}

	detection, err := detect.FromFile(desc.Path)
	if err != nil {
		stats.Err = err
		pl.errs <- models.AppError{File: desc.Path, Message: "failed to probe file", Err: err}
		finish()
		return
	}
	logger.Debug("detected file format",
		"encoding", detection.Encoding, "delimiter", string(detection.Delimiter),
		"delimiter_found", detection.DelimiterFound, "reason", detection.Reason)

	rr, err := reader.Open(desc, detection)
	if err != nil {
		stats.Err = err
		pl.errs <- models.AppError{File: desc.Path, Message: "failed to open file", Err: err}
		finish()
		return
	}
	defer rr.Close()

	for pl.ctx.Err() == nil {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Decode failed mid-file: the stream is truncated there but
			// rows already yielded stand, and the run continues.
			stats.Truncated = true
			stats.Err = err
			pl.errs <- models.AppError{File: desc.Path, Message: "decode failure truncated file", Err: err}
			break
		}

		stats.RowsProcessed++
		result := p.validator.Validate(rec)
		if result.Valid {
			stats.ValidRecords++
			if result.GeographicUnit != "" {
				stats.GeographicUnits[result.GeographicUnit]++
			}
			if !p.forward(pl, rec) {
				break
			}
		} else {
			stats.InvalidRecords++
		}

		if p.cfg.ProgressRowsInterval > 0 && stats.RowsProcessed%p.cfg.ProgressRowsInterval == 0 {
			logger.Info("progress", "rows", stats.RowsProcessed, "valid", stats.ValidRecords)
		}
	}

	if skipped := rr.SkippedRows(); skipped > 0 {
		stats.RowsProcessed += skipped
		stats.InvalidRecords += skipped
		logger.Warn("rows dropped on parse errors", "rows", skipped)
	}

	if err := p.sink.RecordFile(pl.ctx, stats, sum); err != nil {
		pl.errs <- models.AppError{File: desc.Path, Message: "failed to record file outcome", Err: err}
	}
	finish()
}

// forward hands one valid record to the sink queue. A queue blocked past
// SinkTimeout cancels the whole run; partial results remain valid.
func (p *Processor) forward(pl *pipeline, rec *models.Record) bool {
	select {
	case pl.records <- rec:
		return true
	case <-pl.ctx.Done():
		return false
	default:
	}

	timer := time.NewTimer(p.cfg.SinkTimeout)
	defer timer.Stop()
	select {
	case pl.records <- rec:
		return true
	case <-pl.ctx.Done():
		return false
	case <-timer.C:
		p.logger.Error("sink blocked past timeout, cancelling run",
			"file", rec.SourceFile, "timeout", p.cfg.SinkTimeout)
		pl.cancel()
		return false
	}
}

// sinkWorker drains the records queue in batches.
func (p *Processor) sinkWorker(ctx context.Context, id int, records <-chan *models.Record, errs chan<- models.AppError) {
	batch := make([]*models.Record, 0, p.cfg.SinkBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.sink.Accept(ctx, batch); err != nil {
			// The batch failed as a whole; report once per source file.
			files := make(map[string]bool)
			for _, rec := range batch {
				files[rec.SourceFile] = true
			}
			for file := range files {
				errs <- models.AppError{File: file, Message: "sink rejected record batch", Err: err}
			}
		}
		batch = batch[:0]
	}

	for rec := range records {
		batch = append(batch, rec)
		if len(batch) >= p.cfg.SinkBatchSize {
			flush()
		}
	}
	flush()
	p.logger.Debug("sink worker finished", "worker", id)
}

// errorCollector is the single consumer of the errors channel. Retention
// is bounded per file so a thoroughly malformed file cannot flood the
// log.
func (p *Processor) errorCollector(errs <-chan models.AppError) {
	perFile := make(map[string]int)
	for appErr := range errs {
		perFile[appErr.File]++
		switch {
		case perFile[appErr.File] < maxRetainedErrorsPerFile:
			p.logger.Warn("file error", "file", appErr.File, "error", appErr.Error())
		case perFile[appErr.File] == maxRetainedErrorsPerFile:
			p.logger.Error("file has too many errors, suppressing further reports", "file", appErr.File)
		}
	}
}
