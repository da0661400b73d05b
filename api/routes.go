package api

import (
	"github.com/gin-gonic/gin"

	pdfPkg "pdfmute/pdf"
)

// Config holds application configuration
type Config struct {
	Port        string
	MaxFileSize int64
	TempDir     string

	// Workers is the number of pages processed concurrently per run
	Workers int

	// Converter turns DOC/DOCX uploads into PDF; nil rejects them
	Converter pdfPkg.Converter

	// Open opens PDFs for rendering; nil uses MuPDF
	Open pdfPkg.Opener
}

// SetupRoutes registers the API and returns the store that keeps uploads
// and asynchronous jobs
func SetupRoutes(r *gin.Engine, config *Config) *JobStore {
	store := NewJobStore(config.TempDir, DefaultJobTTL)

	apiGroup := r.Group("/api/pdf")
	{
		apiGroup.POST("/upload", func(c *gin.Context) { HandleUpload(c, config, store) })
		apiGroup.POST("/mute", func(c *gin.Context) { HandleMute(c, config, store) })
		apiGroup.GET("/preview", func(c *gin.Context) { HandlePreview(c, config, store) })
		apiGroup.POST("/preview", func(c *gin.Context) { HandlePreview(c, config, store) })

		apiGroup.POST("/jobs", func(c *gin.Context) { HandleStartJob(c, config, store) })
		apiGroup.GET("/jobs/:id", func(c *gin.Context) { HandleJobStatus(c, store) })
		apiGroup.GET("/jobs/:id/events", func(c *gin.Context) { HandleJobEvents(c, store) })
		apiGroup.GET("/jobs/:id/result", func(c *gin.Context) { HandleJobResult(c, store) })
		apiGroup.DELETE("/jobs/:id", func(c *gin.Context) { HandleCancelJob(c, store) })
	}

	return store
}
