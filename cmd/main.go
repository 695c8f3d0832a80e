package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"product-importer/internal/config"
	"product-importer/internal/handlers"
	"product-importer/internal/importer"
	"product-importer/internal/middleware"
	"product-importer/internal/repository"
	"product-importer/internal/webhooks"
)

// @title Product Importer API
// @version 1.0.0
// @description Product catalog service with bulk CSV import, progress tracking and webhooks

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Redis backs the product read cache and the dispatch broker probe.
	// The service degrades to synchronous imports without it.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (imports will run synchronously)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Repositories
	productsRepo := repository.NewProductsRepository(db, redisClient)
	importsRepo := repository.NewImportsRepository(db)
	webhooksRepo := repository.NewWebhooksRepository(db)

	// Webhook notifier and import pipeline
	notifier := webhooks.NewNotifier(webhooksRepo, logger)
	pipeline := importer.NewPipeline(importsRepo, productsRepo, notifier, logger, cfg.ImportBatchSize)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := importer.NewDispatcher(pipeline, redisClient, logger, cfg.ImportWorkerCount)
	dispatcher.Start(workerCtx, cfg.ImportWorkerCount)

	// Handlers
	productsHandler := handlers.NewProductsHandler(productsRepo, notifier, cfg)
	importHandler := handlers.NewImportHandler(importsRepo, dispatcher, cfg, logger)
	webhooksHandler := handlers.NewWebhooksHandler(webhooksRepo, notifier)
	healthHandler := handlers.NewHealthHandler(db)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadyCheck)

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

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Product importer starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down product-importer...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	stopWorkers()
	dispatcher.Wait()

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Product importer stopped")
}
