package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vitorsj/lawyerless/backend/config"
	"github.com/vitorsj/lawyerless/backend/handler"
	"github.com/vitorsj/lawyerless/backend/middleware"
	"github.com/vitorsj/lawyerless/backend/pkg/logger"
	"github.com/vitorsj/lawyerless/backend/service"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Core state: job store, notification hub, status tracker
	store := service.NewMemoryStore(&cfg.Store)
	hub := service.NewHub()
	tracker := service.NewTracker(store, hub)

	// Pipeline collaborators
	llmSvc := service.NewLLMService(&cfg.LLM)
	pipeline := service.NewPipeline(
		service.NewPDFService(&cfg.Pipeline),
		service.NewSegmenterService(),
		service.NewExtractorService(llmSvc),
		service.NewAgentService(llmSvc),
		tracker,
		store,
	)

	var archiveSvc *service.ArchiveService
	if cfg.Archive.Enabled {
		archiveSvc, err = service.NewArchiveService(&cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize archive service", "error", err)
			os.Exit(1)
		}
		if err := archiveSvc.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
	}

	analysisHandler := handler.NewAnalysisHandler(
		store, hub, tracker, pipeline, archiveSvc,
		cfg.Upload.MaxFileSize, cfg.Upload.MaxBatchFiles,
	)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(cfg.RateLimit.Requests,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second))

	router.GET("/health", analysisHandler.Health)

	api := router.Group("/api")
	{
		api.POST("/analyze", analysisHandler.Analyze)
		api.POST("/analyze/batch", analysisHandler.BatchAnalyze)
		api.GET("/analysis", analysisHandler.List)
		api.GET("/analysis/:id", analysisHandler.GetResult)
		api.GET("/analysis/:id/status", analysisHandler.GetStatus)
		api.DELETE("/analysis/:id", analysisHandler.Delete)
		api.GET("/ws/:id", analysisHandler.Subscribe)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Drain in-flight analyses before exiting
	if err := pipeline.Shutdown(ctx); err != nil {
		slog.Warn("pipeline shutdown incomplete", "error", err)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
