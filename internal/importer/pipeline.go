package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"product-importer/internal/models"
	"product-importer/internal/repository"
)

// connReleaseInterval is how many rows pass between idle connection
// releases during a run.
const connReleaseInterval = 1000

// EventNotifier publishes lifecycle events to interested subscribers.
type EventNotifier interface {
	Notify(eventType string, data interface{})
}

// JobStore persists import job state transitions.
type JobStore interface {
	Mutate(id uuid.UUID, fn func(job *models.ImportJob) error) (*models.ImportJob, error)
}

// Pipeline executes one import job end to end: it streams the uploaded
// CSV, upserts products in batches and keeps the job row's progress
// current while it runs.
type Pipeline struct {
	imports   JobStore
	products  *repository.ProductsRepository
	notifier  EventNotifier
	logger    *logrus.Entry
	batchSize int
}

func NewPipeline(
	imports JobStore,
	products *repository.ProductsRepository,
	notifier EventNotifier,
	logger *logrus.Logger,
	batchSize int,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Pipeline{
		imports:   imports,
		products:  products,
		notifier:  notifier,
		logger:    logger.WithField("component", "importer"),
		batchSize: batchSize,
	}
}

// Run processes the uploaded file for jobID. The file is read twice: one
// cheap pass to count data rows so progress can be reported as a
// percentage, then the real pass that upserts in batches. Any failure to
// read the file marks the job FAILED; a bad row never does.
func (p *Pipeline) Run(jobID uuid.UUID, filePath string) error {
	start := time.Now()
	log := p.logger.WithFields(logrus.Fields{"jobId": jobID, "file": filePath})

	totalRows, err := p.countDataRows(filePath)
	if err != nil {
		log.WithError(err).Error("Import failed before processing started")
		return p.fail(jobID, start, fmt.Sprintf("failed to read file: %v", err))
	}

	job, err := p.imports.Mutate(jobID, func(job *models.ImportJob) error {
		job.Status = models.ImportStatusProcessing
		job.TotalRows = totalRows
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to mark job as processing")
		return err
	}
	p.notifier.Notify(models.EventBulkImportStarted, job)
	log.WithField("totalRows", totalRows).Info("Import started")

	stats, err := p.processRows(jobID, filePath, totalRows, start, log)
	if err != nil {
		log.WithError(err).Error("Import failed")
		return p.fail(jobID, start, err.Error())
	}

	job, err = p.imports.Mutate(jobID, func(job *models.ImportJob) error {
		job.Status = models.ImportStatusCompleted
		job.Progress = 100
		job.ProcessedRows = stats.processed
		job.RowErrorCount = stats.errorRows()
		job.DurationSeconds = time.Since(start).Seconds()
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to mark job as completed")
		return err
	}
	p.notifier.Notify(models.EventBulkImportCompleted, job)

	log.WithFields(logrus.Fields{
		"processedRows": stats.processed,
		"created":       stats.created,
		"updated":       stats.updated,
		"rowErrors":     stats.errorRows(),
		"duration":      time.Since(start).String(),
	}).Info("Import completed")
	return nil
}

type runStats struct {
	processed  int64
	created    int64
	updated    int64
	defectRows int64
	failedRows int64
}

// errorRows sums rows that had normalization defects and rows lost to
// failed batch commits. A defective row inside a failed batch counts once.
func (s *runStats) errorRows() int64 {
	return s.defectRows + s.failedRows
}

func (p *Pipeline) processRows(jobID uuid.UUID, filePath string, totalRows int64, start time.Time, log *logrus.Entry) (*runStats, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		// Header-only or empty file: nothing to do.
		return &runStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}
	for i := range headers {
		headers[i] = NormalizeHeader(headers[i])
	}

	stats := &runStats{}
	frequency := progressFrequency(totalRows)
	batch := make([]*models.Product, 0, p.batchSize)
	batchDefects := int64(0)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		result, err := p.products.UpsertBatch(batch)
		if err != nil {
			// A failed batch costs its rows, not the import. Rows already
			// counted as defective are not counted again.
			stats.failedRows += int64(len(batch)) - batchDefects
			log.WithError(err).WithField("batchSize", len(batch)).
				Warn("Batch commit failed, continuing with next batch")
		} else {
			stats.created += int64(result.Created)
			stats.updated += int64(result.Updated)
		}
		batch = batch[:0]
		batchDefects = 0
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", stats.processed+1, err)
		}

		stats.processed++

		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			}
		}

		product, defects := NormalizeRow(row)
		if product.SKU == "" {
			stats.defectRows++
		} else {
			if len(defects) > 0 {
				stats.defectRows++
				batchDefects++
			}
			batch = append(batch, product)
			if len(batch) >= p.batchSize {
				flush()
			}
		}

		if stats.processed%frequency == 0 || stats.processed == totalRows {
			if err := p.reportProgress(jobID, stats, totalRows, start); err != nil {
				log.WithError(err).Warn("Failed to persist progress update")
			}
		}
		if stats.processed%connReleaseInterval == 0 {
			p.products.ReleaseIdleConns()
		}
	}

	flush()
	return stats, nil
}

func (p *Pipeline) reportProgress(jobID uuid.UUID, stats *runStats, totalRows int64, start time.Time) error {
	progress := 100
	if totalRows > 0 {
		progress = int(stats.processed * 100 / totalRows)
	}
	_, err := p.imports.Mutate(jobID, func(job *models.ImportJob) error {
		job.ProcessedRows = stats.processed
		job.Progress = progress
		job.RowErrorCount = stats.errorRows()
		job.DurationSeconds = time.Since(start).Seconds()
		return nil
	})
	return err
}

func (p *Pipeline) fail(jobID uuid.UUID, start time.Time, message string) error {
	job, err := p.imports.Mutate(jobID, func(job *models.ImportJob) error {
		job.Status = models.ImportStatusFailed
		job.ErrorMessage = &message
		job.DurationSeconds = time.Since(start).Seconds()
		return nil
	})
	if err != nil {
		return err
	}
	p.notifier.Notify(models.EventBulkImportFailed, job)
	return fmt.Errorf("import job %s failed: %s", jobID, message)
}

// countDataRows streams the file once to count its data rows.
func (p *Pipeline) countDataRows(filePath string) (int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err == io.EOF {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to read headers: %w", err)
	}

	var count int64
	for {
		if _, err := reader.Read(); err == io.EOF {
			break
		} else if err != nil {
			return 0, fmt.Errorf("failed to read row %d: %w", count+1, err)
		}
		count++
	}
	return count, nil
}

// progressFrequency picks how many rows pass between persisted progress
// updates. Small files report often, large files avoid hammering the job
// row with writes.
func progressFrequency(totalRows int64) int64 {
	switch {
	case totalRows <= 100:
		return 5
	case totalRows <= 1000:
		return 20
	default:
		return 100
	}
}
