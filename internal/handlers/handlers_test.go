package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"product-importer/internal/config"
	"product-importer/internal/importer"
	"product-importer/internal/models"
	"product-importer/internal/repository"
	"product-importer/internal/webhooks"
)

type fixture struct {
	router   *gin.Engine
	db       *gorm.DB
	products *repository.ProductsRepository
	imports  *repository.ImportsRepository
	webhooks *repository.WebhooksRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.ImportJob{}, &models.Webhook{}))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		UploadDir:         filepath.Join(t.TempDir(), "uploads"),
		MaxUploadBytes:    1024 * 1024,
		ImportBatchSize:   100,
		ImportWorkerCount: 1,
		DefaultPageSize:   20,
		MaxPageSize:       100,
	}

	productsRepo := repository.NewProductsRepository(db, nil)
	importsRepo := repository.NewImportsRepository(db)
	webhooksRepo := repository.NewWebhooksRepository(db)

	notifier := webhooks.NewNotifier(webhooksRepo, log)
	pipeline := importer.NewPipeline(importsRepo, productsRepo, notifier, log, cfg.ImportBatchSize)
	// No Redis broker: dispatch falls back to the synchronous path, which
	// keeps these tests deterministic.
	dispatcher := importer.NewDispatcher(pipeline, nil, log, cfg.ImportWorkerCount)

	productsHandler := NewProductsHandler(productsRepo, notifier, cfg)
	importHandler := NewImportHandler(importsRepo, dispatcher, cfg, log)
	webhooksHandler := NewWebhooksHandler(webhooksRepo, notifier)

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		uploads := v1.Group("/uploads")
		{
			uploads.POST("", importHandler.UploadFile)
			uploads.GET("", importHandler.GetUploads)
			uploads.GET("/template", importHandler.GetImportTemplate)
			uploads.GET("/:id", importHandler.GetUpload)
		}
		products := v1.Group("/products")
		{
			products.GET("", productsHandler.GetProducts)
			products.POST("", productsHandler.CreateProduct)
			products.POST("/bulk-delete", productsHandler.BulkDeleteProducts)
			products.GET("/:id", productsHandler.GetProduct)
			products.PUT("/:id", productsHandler.UpdateProduct)
			products.DELETE("/:id", productsHandler.DeleteProduct)
		}
		webhookRoutes := v1.Group("/webhooks")
		{
			webhookRoutes.GET("", webhooksHandler.GetWebhooks)
			webhookRoutes.POST("", webhooksHandler.CreateWebhook)
			webhookRoutes.GET("/:id", webhooksHandler.GetWebhook)
			webhookRoutes.PUT("/:id", webhooksHandler.UpdateWebhook)
			webhookRoutes.DELETE("/:id", webhooksHandler.DeleteWebhook)
			webhookRoutes.POST("/:id/test", webhooksHandler.TestWebhook)
		}
	}

	return &fixture{
		router:   router,
		db:       db,
		products: productsRepo,
		imports:  importsRepo,
		webhooks: webhooksRepo,
	}
}

func (f *fixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) uploadFile(t *testing.T, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
