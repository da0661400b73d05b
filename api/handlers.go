package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pdfmute/filter"
	pdfPkg "pdfmute/pdf"
)

// uploadMagic maps accepted extensions to their leading bytes
var uploadMagic = map[string][]byte{
	".pdf":  []byte("%PDF"),
	".docx": []byte("PK\x03\x04"),
	".doc":  {0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1},
}

// document is an input ready for processing
type document struct {
	name     string // client-side filename
	pdf      string // PDF to render
	uploadID string // set when pdf is a stored upload
	cleanup  func()
}

// HandleUpload stores a document for later preview and processing. Word
// documents are converted to PDF right away.
func HandleUpload(c *gin.Context, config *Config, store *JobStore) {
	doc, status, err := receiveDocument(c, config, store)
	if err != nil {
		c.JSON(status, gin.H{"error": errorMessage(err)})
		return
	}
	defer doc.cleanup()

	uniqueID := generateUniqueID()
	stored := filepath.Join(config.TempDir, "upload_"+uniqueID+".pdf")
	if err := copyFile(doc.pdf, stored); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	pages, err := pdfPkg.PageCount(stored)
	if err != nil {
		os.Remove(stored)
		c.JSON(errorStatus(err), gin.H{"error": errorMessage(err)})
		return
	}

	store.AddUpload(uniqueID, stored, doc.name)
	c.JSON(http.StatusOK, gin.H{"file_id": uniqueID, "filename": doc.name, "total_pages": pages})
}

// HandleMute processes a document synchronously and returns the cleaned PDF
func HandleMute(c *gin.Context, config *Config, store *JobStore) {
	opts, err := parseOptions(c, config)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, status, err := receiveDocument(c, config, store)
	if err != nil {
		c.JSON(status, gin.H{"error": errorMessage(err)})
		return
	}
	defer doc.cleanup()

	outFile := filepath.Join(config.TempDir, "output_"+generateUniqueID()+".pdf")
	if _, err := pdfPkg.Mute(c.Request.Context(), doc.pdf, outFile, opts); err != nil {
		log.Printf("PDF operation error: %v", err)
		c.JSON(errorStatus(err), gin.H{"error": errorMessage(err)})
		return
	}

	sendPDF(c, outFile, doc.name)

	// Clean up temp files after response is sent
	scheduleCleanup(outFile)
}

// HandlePreview renders the first page at preview density as PNG. The
// optional max_width query parameter shrinks it for display.
func HandlePreview(c *gin.Context, config *Config, store *JobStore) {
	maxWidth := 0
	if s := c.Query("max_width"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_width must be a non-negative integer"})
			return
		}
		maxWidth = n
	}

	doc, status, err := receiveDocument(c, config, store)
	if err != nil {
		c.JSON(status, gin.H{"error": errorMessage(err)})
		return
	}
	defer doc.cleanup()

	buf, err := pdfPkg.RenderPreview(config.Open, doc.pdf, 0, pdfPkg.PreviewDPI)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": errorMessage(err)})
		return
	}

	var out bytes.Buffer
	if err := png.Encode(&out, pdfPkg.ScalePreview(buf, maxWidth)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode preview"})
		return
	}
	c.Data(http.StatusOK, "image/png", out.Bytes())
}

// parseOptions reads the per-run settings from the form
func parseOptions(c *gin.Context, config *Config) (pdfPkg.Options, error) {
	opts := pdfPkg.DefaultOptions()

	algorithm, err := filter.ParseAlgorithm(c.PostForm("algorithm"))
	if err != nil {
		return opts, err
	}
	replacement, err := filter.ParseReplacement(c.PostForm("color"))
	if err != nil {
		return opts, err
	}

	if s := c.PostForm("optimize"); s != "" {
		optimize, err := strconv.ParseBool(s)
		if err != nil {
			return opts, fmt.Errorf("invalid optimize flag: %s", s)
		}
		opts.Optimize = optimize
	}

	// Validated against the page count once the document is open
	opts.Pages = c.PostForm("pages")

	opts.Algorithm = algorithm
	opts.Replacement = replacement
	opts.Workers = config.Workers
	opts.Open = config.Open
	return opts, nil
}

// receiveDocument resolves the request's input: either a previously
// uploaded file_id or a multipart "file" (word documents are converted).
// On error it returns the HTTP status to respond with.
func receiveDocument(c *gin.Context, config *Config, store *JobStore) (*document, int, error) {
	fileID := c.Query("file_id")
	if fileID == "" {
		fileID = c.PostForm("file_id")
	}
	if fileID != "" {
		up, ok := store.Upload(fileID)
		if !ok {
			return nil, http.StatusNotFound, errors.New("Uploaded file not found")
		}
		return &document{name: up.name, pdf: up.path, uploadID: fileID, cleanup: func() {}}, 0, nil
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("No file uploaded")
	}
	defer file.Close()

	ext, err := validateUpload(file, header, config.MaxFileSize)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	if err := ensureTempDir(config.TempDir); err != nil {
		return nil, http.StatusInternalServerError, errors.New("Failed to create temp directory")
	}

	inFile := filepath.Join(config.TempDir, "input_"+generateUniqueID()+ext)
	out, err := os.Create(inFile)
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("Failed to create temp file")
	}
	_, err = out.ReadFrom(file)
	out.Close()
	if err != nil {
		os.Remove(inFile)
		return nil, http.StatusInternalServerError, errors.New("Failed to save input file")
	}

	pdfPath, convCleanup, err := pdfPkg.PrepareInput(c.Request.Context(), config.Converter, inFile)
	if err != nil {
		os.Remove(inFile)
		log.Printf("Input preparation failed for %s: %v", header.Filename, err)
		return nil, errorStatus(err), err
	}

	return &document{
		name: header.Filename,
		pdf:  pdfPath,
		cleanup: func() {
			convCleanup()
			os.Remove(inFile)
		},
	}, 0, nil
}

// sendPDF returns outFile as a download named after the original upload
func sendPDF(c *gin.Context, outFile, originalName string) {
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputName(originalName)))
	c.File(outFile)
}

// outputName derives the download name: report.docx -> report_MuteRed.pdf
func outputName(originalName string) string {
	base := sanitizeFilename(originalName)
	ext := filepath.Ext(base)
	if _, known := uploadMagic[strings.ToLower(ext)]; known {
		base = strings.TrimSuffix(base, ext)
	}
	return base + pdfPkg.OutputSuffix + ".pdf"
}

// errorStatus maps pipeline errors to HTTP status codes
func errorStatus(err error) int {
	var readErr *pdfPkg.SourceReadError
	var convErr *pdfPkg.ConversionError
	switch {
	case errors.Is(err, pdfPkg.ErrUnsupportedInput), errors.Is(err, pdfPkg.ErrInvalidPages):
		return http.StatusBadRequest
	case errors.As(err, &readErr), errors.As(err, &convErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorMessage truncates long error messages but keeps the key info
func errorMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return "PDF operation failed"
	}
	if len(msg) > maxErrorLength {
		return msg[:maxErrorLength] + "..."
	}
	return msg
}

// scheduleCleanup removes files shortly after the response is sent
func scheduleCleanup(paths ...string) {
	go func() {
		time.Sleep(FileCleanupDelay)
		for _, p := range paths {
			os.Remove(p)
		}
	}()
}

// ensureTempDir creates the temp directory if it doesn't exist
func ensureTempDir(tempDir string) error {
	return os.MkdirAll(tempDir, DefaultFilePermissions)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// sanitizeFilename removes path traversal attempts and dangerous characters
func sanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.TrimSpace(filepath.Base(filename))

	if filename == "" || filename == "." {
		filename = "document.pdf"
	}
	return filename
}

// generateUniqueID generates a unique identifier for temp files
func generateUniqueID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), hex.EncodeToString(b))
}

// validateUpload checks size, extension and leading bytes of an upload and
// returns its lower-cased extension
func validateUpload(file multipart.File, header *multipart.FileHeader, maxSize int64) (string, error) {
	if header.Size > maxSize {
		return "", fmt.Errorf("file size %d exceeds maximum allowed %d bytes", header.Size, maxSize)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	magic, ok := uploadMagic[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file type %q: expected .pdf, .doc or .docx", ext)
	}

	buffer := make([]byte, len(magic))
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read file header: %v", err)
	}
	if !bytes.Equal(buffer[:n], magic) {
		return "", fmt.Errorf("invalid %s file: header does not match", ext)
	}

	// Seek back to beginning for subsequent reads
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to reset file position: %v", err)
	}

	return ext, nil
}
