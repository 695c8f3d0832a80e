package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"product-importer/internal/models"
	"product-importer/internal/repository"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingNotifier) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// snapshottingJobStore records the persisted job state after every
// successful mutation so tests can assert intermediate progress.
type snapshottingJobStore struct {
	inner     *repository.ImportsRepository
	mu        sync.Mutex
	snapshots []models.ImportJob
}

func (s *snapshottingJobStore) Mutate(id uuid.UUID, fn func(job *models.ImportJob) error) (*models.ImportJob, error) {
	job, err := s.inner.Mutate(id, fn)
	if err == nil {
		s.mu.Lock()
		s.snapshots = append(s.snapshots, *job)
		s.mu.Unlock()
	}
	return job, err
}

func (s *snapshottingJobStore) Snapshots() []models.ImportJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ImportJob(nil), s.snapshots...)
}

type pipelineFixture struct {
	pipeline *Pipeline
	imports  *repository.ImportsRepository
	products *repository.ProductsRepository
	notifier *recordingNotifier
	db       *gorm.DB
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.ImportJob{}, &models.Webhook{}))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	imports := repository.NewImportsRepository(db)
	products := repository.NewProductsRepository(db, nil)
	notifier := &recordingNotifier{}

	return &pipelineFixture{
		pipeline: NewPipeline(imports, products, notifier, log, 100),
		imports:  imports,
		products: products,
		notifier: notifier,
		db:       db,
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPipelineImportsFile(t *testing.T) {
	f := newPipelineFixture(t)

	path := writeCSV(t, strings.Join([]string{
		"sku,name,description,price,active",
		"TSH-001,Blue Tee,Soft cotton,19.99,true",
		"TSH-002,Red Tee,,9.50,false",
		"mug-001,Mug,Ceramic,4.25,",
	}, "\n"))

	job, err := f.imports.CreateJob("upload.csv", 100)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Run(job.ID, path))

	loaded, err := f.imports.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, loaded.Status)
	assert.Equal(t, 100, loaded.Progress)
	assert.Equal(t, int64(3), loaded.TotalRows)
	assert.Equal(t, int64(3), loaded.ProcessedRows)
	assert.Equal(t, int64(0), loaded.RowErrorCount)
	assert.Greater(t, loaded.DurationSeconds, 0.0)

	product, err := f.products.GetProductBySKU("MUG-001")
	require.NoError(t, err)
	assert.Equal(t, 4.25, product.Price)
	assert.True(t, product.Active)

	assert.Equal(t, []string{
		models.EventBulkImportStarted,
		models.EventBulkImportCompleted,
	}, f.notifier.Events())
}

func TestPipelineLargeFileProgress(t *testing.T) {
	f := newPipelineFixture(t)

	var b strings.Builder
	b.WriteString("sku,name,price\n")
	for i := 1; i <= 250; i++ {
		fmt.Fprintf(&b, "SKU-%03d,Item %d,%d.00\n", i, i, i)
	}
	path := writeCSV(t, b.String())

	job, err := f.imports.CreateJob("big.csv", 100)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Run(job.ID, path))

	loaded, err := f.imports.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, loaded.Status)
	assert.Equal(t, int64(250), loaded.TotalRows)
	assert.Equal(t, int64(250), loaded.ProcessedRows)
	assert.Equal(t, 100, loaded.Progress)

	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Count(&count).Error)
	assert.Equal(t, int64(250), count)
}

func TestPipelineProgressUpdateCadence(t *testing.T) {
	f := newPipelineFixture(t)
	store := &snapshottingJobStore{inner: f.imports}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	pipeline := NewPipeline(store, f.products, f.notifier, log, 100)

	var b strings.Builder
	b.WriteString("sku,name,price\n")
	for i := 1; i <= 250; i++ {
		fmt.Fprintf(&b, "SKU-%03d,Item %d,%d.00\n", i, i, i)
	}
	path := writeCSV(t, b.String())

	job, err := f.imports.CreateJob("big.csv", 100)
	require.NoError(t, err)
	require.NoError(t, pipeline.Run(job.ID, path))

	snapshots := store.Snapshots()
	// One PROCESSING transition, one update every 20 rows plus the final
	// row, one COMPLETED transition.
	require.Len(t, snapshots, 1+13+1)
	assert.Equal(t, models.ImportStatusProcessing, snapshots[0].Status)
	assert.Equal(t, models.ImportStatusCompleted, snapshots[len(snapshots)-1].Status)

	progressUpdates := snapshots[1 : len(snapshots)-1]
	wantRows := []int64{20, 40, 60, 80, 100, 120, 140, 160, 180, 200, 220, 240, 250}
	lastDuration := 0.0
	for i, snap := range progressUpdates {
		assert.Equal(t, wantRows[i], snap.ProcessedRows)
		assert.Equal(t, int(wantRows[i]*100/250), snap.Progress)
		assert.Equal(t, models.ImportStatusProcessing, snap.Status)

		// Elapsed time is persisted with every progress write and only
		// moves forward.
		assert.Greater(t, snap.DurationSeconds, 0.0)
		assert.GreaterOrEqual(t, snap.DurationSeconds, lastDuration)
		lastDuration = snap.DurationSeconds
	}
}

func TestPipelineFailedBatchCountsRowsOnce(t *testing.T) {
	f := newPipelineFixture(t)

	// With the products table gone every batch commit fails, so each row
	// lands in rowErrorCount exactly once, defective or not.
	require.NoError(t, f.db.Migrator().DropTable(&models.Product{}))

	path := writeCSV(t, strings.Join([]string{
		"sku,name,price",
		"SKU-1,One,bogus",
		"SKU-2,Two,2.00",
		"SKU-3,Three,3.00",
	}, "\n"))

	job, err := f.imports.CreateJob("upload.csv", 10)
	require.NoError(t, err)
	require.NoError(t, f.pipeline.Run(job.ID, path))

	loaded, err := f.imports.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, loaded.Status)
	assert.Equal(t, int64(3), loaded.ProcessedRows)
	assert.Equal(t, int64(3), loaded.RowErrorCount)
}

func TestPipelineIsIdempotentAcrossRuns(t *testing.T) {
	f := newPipelineFixture(t)

	path := writeCSV(t, "sku,name,price\nSKU-1,One,1.00\nSKU-2,Two,2.00\n")

	first, err := f.imports.CreateJob("upload.csv", 10)
	require.NoError(t, err)
	require.NoError(t, f.pipeline.Run(first.ID, path))

	second, err := f.imports.CreateJob("upload.csv", 10)
	require.NoError(t, err)
	require.NoError(t, f.pipeline.Run(second.ID, path))

	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestPipelineCountsRowDefects(t *testing.T) {
	f := newPipelineFixture(t)

	path := writeCSV(t, strings.Join([]string{
		"sku,name,price",
		"SKU-1,One,bogus",
		",Missing SKU,2.00",
		"SKU-3,Three,3.00",
	}, "\n"))

	job, err := f.imports.CreateJob("upload.csv", 10)
	require.NoError(t, err)
	require.NoError(t, f.pipeline.Run(job.ID, path))

	loaded, err := f.imports.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, loaded.Status)
	assert.Equal(t, int64(3), loaded.ProcessedRows)
	assert.Equal(t, int64(2), loaded.RowErrorCount)

	// The defective price row still lands with the default.
	product, err := f.products.GetProductBySKU("SKU-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, product.Price)

	// The row without a SKU is skipped entirely.
	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestPipelineEmptyFileCompletes(t *testing.T) {
	f := newPipelineFixture(t)

	path := writeCSV(t, "sku,name,price\n")

	job, err := f.imports.CreateJob("empty.csv", 10)
	require.NoError(t, err)
	require.NoError(t, f.pipeline.Run(job.ID, path))

	loaded, err := f.imports.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, loaded.Status)
	assert.Equal(t, 100, loaded.Progress)
	assert.Equal(t, int64(0), loaded.TotalRows)
}

func TestPipelineUnreadableFileFails(t *testing.T) {
	f := newPipelineFixture(t)

	job, err := f.imports.CreateJob("missing.csv", 10)
	require.NoError(t, err)

	err = f.pipeline.Run(job.ID, filepath.Join(t.TempDir(), "does-not-exist.csv"))
	require.Error(t, err)

	loaded, err := f.imports.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, loaded.Status)
	require.NotNil(t, loaded.ErrorMessage)
	assert.Contains(t, *loaded.ErrorMessage, "failed to read file")

	assert.Equal(t, []string{models.EventBulkImportFailed}, f.notifier.Events())
}

func TestProgressFrequency(t *testing.T) {
	assert.Equal(t, int64(5), progressFrequency(50))
	assert.Equal(t, int64(5), progressFrequency(100))
	assert.Equal(t, int64(20), progressFrequency(250))
	assert.Equal(t, int64(20), progressFrequency(1000))
	assert.Equal(t, int64(100), progressFrequency(50000))
}
