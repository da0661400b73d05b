package pdf

import (
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// pdfcpuConfig returns a default pdfcpu configuration without touching the
// user's config directory
func pdfcpuConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ResavePDF optimizes and compresses a PDF file using pdfcpu
func ResavePDF(inFile, outFile string) error {
	if err := api.OptimizeFile(inFile, outFile, pdfcpuConfig()); err != nil {
		return fmt.Errorf("pdfcpu optimize failed: %v", err)
	}
	return nil
}

// PageCount returns the number of pages of a PDF file
func PageCount(filename string) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	n, err := api.PageCountFile(filename)
	if err != nil {
		return 0, &SourceReadError{Path: filename, Err: err}
	}
	return n, nil
}
