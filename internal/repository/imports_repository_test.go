package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-importer/internal/models"
)

func TestCreateJobStartsPending(t *testing.T) {
	repo := NewImportsRepository(setupTestDB(t))

	job, err := repo.CreateJob("products.csv", 1024)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)

	loaded, err := repo.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "products.csv", loaded.FileName)
	assert.Equal(t, int64(1024), loaded.FileSize)
}

func TestMutateRejectsTerminalJobs(t *testing.T) {
	repo := NewImportsRepository(setupTestDB(t))

	job, err := repo.CreateJob("products.csv", 10)
	require.NoError(t, err)

	_, err = repo.Mutate(job.ID, func(j *models.ImportJob) error {
		j.Status = models.ImportStatusCompleted
		j.Progress = 100
		return nil
	})
	require.NoError(t, err)

	_, err = repo.Mutate(job.ID, func(j *models.ImportJob) error {
		j.Status = models.ImportStatusProcessing
		return nil
	})
	assert.Error(t, err)

	loaded, err := repo.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, loaded.Status)
}

func TestMutateProgressNeverRegresses(t *testing.T) {
	repo := NewImportsRepository(setupTestDB(t))

	job, err := repo.CreateJob("products.csv", 10)
	require.NoError(t, err)

	_, err = repo.Mutate(job.ID, func(j *models.ImportJob) error {
		j.Status = models.ImportStatusProcessing
		j.Progress = 40
		j.ProcessedRows = 100
		return nil
	})
	require.NoError(t, err)

	updated, err := repo.Mutate(job.ID, func(j *models.ImportJob) error {
		j.Progress = 10
		j.ProcessedRows = 50
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Progress)
	assert.Equal(t, int64(100), updated.ProcessedRows)
}

func TestMutateTotalRowsFixedOnceSet(t *testing.T) {
	repo := NewImportsRepository(setupTestDB(t))

	job, err := repo.CreateJob("products.csv", 10)
	require.NoError(t, err)

	_, err = repo.Mutate(job.ID, func(j *models.ImportJob) error {
		j.TotalRows = 250
		return nil
	})
	require.NoError(t, err)

	updated, err := repo.Mutate(job.ID, func(j *models.ImportJob) error {
		j.TotalRows = 9999
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), updated.TotalRows)
}

func TestGetJobsNewestFirst(t *testing.T) {
	repo := NewImportsRepository(setupTestDB(t))

	first, err := repo.CreateJob("first.csv", 1)
	require.NoError(t, err)
	second, err := repo.CreateJob("second.csv", 2)
	require.NoError(t, err)

	jobs, err := repo.GetJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}
