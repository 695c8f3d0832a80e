package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"product-importer/internal/models"
)

// ImportsRepository is the durable store for import jobs. A job row is
// written by exactly one pipeline run; readers poll it for progress.
type ImportsRepository struct {
	db *gorm.DB
}

func NewImportsRepository(db *gorm.DB) *ImportsRepository {
	return &ImportsRepository{db: db}
}

// CreateJob persists a new pending job for an uploaded file.
func (r *ImportsRepository) CreateJob(fileName string, fileSize int64) (*models.ImportJob, error) {
	job := &models.ImportJob{
		ID:        uuid.New(),
		FileName:  fileName,
		FileSize:  fileSize,
		Status:    models.ImportStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.db.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// GetJobByID retrieves a job by ID
func (r *ImportsRepository) GetJobByID(id uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := r.db.First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobs lists jobs, newest first.
func (r *ImportsRepository) GetJobs() ([]models.ImportJob, error) {
	var jobs []models.ImportJob
	if err := r.db.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Mutate applies fn to the job row inside a transaction. It enforces the
// lifecycle invariants no matter what fn does: terminal jobs never change,
// progress and processedRows never regress, and totalRows is fixed once set.
func (r *ImportsRepository) Mutate(id uuid.UUID, fn func(job *models.ImportJob) error) (*models.ImportJob, error) {
	var updated models.ImportJob

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var job models.ImportJob
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return err
		}

		if job.Status.Terminal() {
			return fmt.Errorf("import job %s is %s and can no longer change", id, job.Status)
		}

		before := job
		if err := fn(&job); err != nil {
			return err
		}

		if job.Progress < before.Progress {
			job.Progress = before.Progress
		}
		if job.ProcessedRows < before.ProcessedRows {
			job.ProcessedRows = before.ProcessedRows
		}
		if before.TotalRows > 0 {
			job.TotalRows = before.TotalRows
		}

		job.ID = before.ID
		job.CreatedAt = before.CreatedAt
		job.UpdatedAt = time.Now()

		if err := tx.Save(&job).Error; err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}
