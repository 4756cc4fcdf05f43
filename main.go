package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cookbook-api/config"
	"cookbook-api/services"
	"cookbook-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRouter(db *gorm.DB, store recipeStore, logging *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(logging))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupRootRoutes(router, db)
	setupRecipeRoutes(router, store, logging)
	return router
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := storage.Open(cfg, logging)
	if err != nil {
		logging.Fatal("Failed to open database", zap.Error(err))
	}
	logging.Info("Database ready", zap.String("driver", cfg.DBDriver), zap.Bool("ephemeral", cfg.Ephemeral()))

	recipeService := services.NewRecipeService(db, logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Setup Cron
	if cfg.ExportEnabled() {
		s3Client, err := storage.NewS3ClientFromConfig(ctx, cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		exporter := services.NewCatalogExporter(recipeService, s3Client, logging, cfg.S3URL, cfg.S3Bucket, cfg.ExportPrefix)

		cronScheduler := cron.New()
		_, err = cronScheduler.AddFunc(cfg.ExportSchedule, func() {
			logging.Info("Running scheduled catalog export...")
			key, err := exporter.Export(ctx)
			if err != nil {
				catalogExportsTotal.WithLabelValues("error").Inc()
				logging.Error("Catalog export failed", zap.Error(err))
				return
			}
			catalogExportsTotal.WithLabelValues("ok").Inc()
			logging.Info("Catalog export completed", zap.String("key", key))
		})
		if err != nil {
			logging.Fatal("Invalid EXPORT_SCHEDULE", zap.String("schedule", cfg.ExportSchedule), zap.Error(err))
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	router := newRouter(db, recipeService, logging)

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Graceful shutdown failed", zap.Error(err))
	}
}
