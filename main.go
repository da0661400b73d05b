package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pdfmute/api"
	pdfPkg "pdfmute/pdf"
)

const (
	// DefaultMaxFileSize is the default maximum upload size (50MB)
	DefaultMaxFileSize = 50 * 1024 * 1024

	// DefaultPort is the default server port
	DefaultPort = "8080"

	// DefaultTempDir is the default temporary directory
	DefaultTempDir = "./temp"

	// DefaultWorkers is the default number of pages processed concurrently
	DefaultWorkers = 1

	// ServerReadTimeout is the HTTP server read timeout
	ServerReadTimeout = 30 * time.Second

	// ServerIdleTimeout is the HTTP server idle timeout
	ServerIdleTimeout = 60 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful shutdown
	GracefulShutdownTimeout = 10 * time.Second
)

func main() {
	// Load configuration
	converter := pdfPkg.NewOfficeConverter()
	converter.Binary = getEnv("SOFFICE_BIN", converter.Binary)
	converter.Timeout = time.Duration(getEnvInt64("CONVERT_TIMEOUT_SECONDS", int64(pdfPkg.DefaultConvertTimeout/time.Second))) * time.Second

	config := &api.Config{
		Port:        getEnv("PORT", DefaultPort),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", DefaultMaxFileSize),
		TempDir:     getEnv("TEMP_DIR", DefaultTempDir),
		Workers:     int(getEnvInt64("WORKERS", DefaultWorkers)),
		Converter:   converter,
	}
	converter.ScratchDir = config.TempDir

	if err := os.MkdirAll(config.TempDir, api.DefaultFilePermissions); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}

	r := gin.Default()

	// API routes with config
	store := api.SetupRoutes(r, config)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "pdfmute",
		})
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go store.RunJanitor(janitorCtx, api.JanitorInterval)

	// No write timeout: rendering large documents and event streams outlive it
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", config.Port),
		Handler:     r,
		ReadTimeout: ServerReadTimeout,
		IdleTimeout: ServerIdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		log.Printf("Max file size: %d bytes", config.MaxFileSize)
		log.Printf("Temp directory: %s", config.TempDir)
		log.Printf("Workers per run: %d", config.Workers)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopJanitor()
	store.CancelAll()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
