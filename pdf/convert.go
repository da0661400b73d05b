package pdf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Converter turns a word-processor document into a PDF in a scratch location
type Converter interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// OfficeConverter converts DOC/DOCX files with a headless LibreOffice
type OfficeConverter struct {
	// Binary is the soffice executable (default "soffice")
	Binary string

	// ScratchDir holds converted files (default os.TempDir())
	ScratchDir string

	// Timeout bounds one attempt (default DefaultConvertTimeout)
	Timeout time.Duration

	// Retries is the number of extra attempts after a failure
	Retries int
}

// NewOfficeConverter returns a converter with default settings
func NewOfficeConverter() *OfficeConverter {
	return &OfficeConverter{
		Binary:  "soffice",
		Timeout: DefaultConvertTimeout,
		Retries: DefaultConvertRetries,
	}
}

// Convert runs soffice --convert-to pdf. Each call gets its own output
// directory and LibreOffice profile so conversions can run side by side.
func (c *OfficeConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	binary := c.Binary
	if binary == "" {
		binary = "soffice"
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultConvertTimeout
	}

	if _, err := os.Stat(inputPath); err != nil {
		return "", &ConversionError{Path: inputPath, Err: err}
	}
	if _, err := exec.LookPath(binary); err != nil {
		return "", &ConversionError{Path: inputPath, Err: fmt.Errorf("converter not available: %v", err)}
	}

	outDir, err := os.MkdirTemp(c.ScratchDir, "convert-")
	if err != nil {
		return "", &ConversionError{Path: inputPath, Err: err}
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	profile, err := profileArg(outDir)
	if err != nil {
		os.RemoveAll(outDir)
		return "", &ConversionError{Path: inputPath, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			log.Printf("Retrying conversion of %s (attempt %d): %v", inputPath, attempt+1, lastErr)
		}

		output, err := execCommandWithTimeout(ctx, timeout, binary,
			profile, "--headless", "--convert-to", "pdf", "--outdir", outDir, inputPath)
		if err != nil {
			lastErr = fmt.Errorf("%v: %s", err, strings.TrimSpace(string(output)))
		} else if _, statErr := os.Stat(pdfPath); statErr != nil {
			lastErr = fmt.Errorf("converter produced no output: %s", strings.TrimSpace(string(output)))
		} else {
			os.RemoveAll(filepath.Join(outDir, "profile"))
			return pdfPath, nil
		}

		if ctx.Err() != nil {
			break
		}
	}

	os.RemoveAll(outDir)
	return "", &ConversionError{Path: inputPath, Err: lastErr}
}

// profileArg points LibreOffice at a private profile under dir. The value
// must be an absolute file URL.
func profileArg(dir string) (string, error) {
	abs, err := filepath.Abs(filepath.Join(dir, "profile"))
	if err != nil {
		return "", err
	}
	path := filepath.ToSlash(abs)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path // C:/... on windows
	}
	return "-env:UserInstallation=" + (&url.URL{Scheme: "file", Path: path}).String(), nil
}

// IsConvertible reports whether path is a word-processor document
func IsConvertible(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".doc", ".docx":
		return true
	}
	return false
}

// PrepareInput returns the PDF to process for path, converting DOC/DOCX
// first. The cleanup func removes any converted scratch output and must
// always be called.
func PrepareInput(ctx context.Context, conv Converter, path string) (string, func(), error) {
	noop := func() {}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return path, noop, nil
	}
	if !IsConvertible(path) {
		return "", noop, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedInput)
	}
	if conv == nil {
		return "", noop, &ConversionError{Path: path, Err: errors.New("no converter configured")}
	}

	pdfPath, err := conv.Convert(ctx, path)
	if err != nil {
		return "", noop, err
	}

	cleanup := func() {
		os.Remove(pdfPath)
		os.Remove(filepath.Dir(pdfPath)) // only succeeds once empty
	}
	return pdfPath, cleanup, nil
}
