package pdf

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"pdfmute/filter"
)

// Source is an open, page-rasterizable document
type Source interface {
	// NumPage returns the number of pages
	NumPage() int

	// Render rasterizes the 0-based page at the given density
	Render(page int, dpi float64) (*filter.Buffer, error)

	// Close releases the document
	Close() error
}

// Opener opens a Source for a file path
type Opener func(path string) (Source, error)

// fitzSource renders pages with MuPDF
type fitzSource struct {
	path string
	doc  *fitz.Document
}

// OpenSource opens a PDF with MuPDF. Failures are reported as *SourceReadError.
func OpenSource(path string) (Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	return &fitzSource{path: path, doc: doc}, nil
}

func (s *fitzSource) NumPage() int {
	return s.doc.NumPage()
}

func (s *fitzSource) Render(page int, dpi float64) (*filter.Buffer, error) {
	if page < 0 || page >= s.doc.NumPage() {
		return nil, &SourceReadError{
			Path: s.path,
			Page: page + 1,
			Err:  fmt.Errorf("page out of range (document has %d pages)", s.doc.NumPage()),
		}
	}

	img, err := s.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, &SourceReadError{Path: s.path, Page: page + 1, Err: err}
	}
	return filter.FromImage(img), nil
}

func (s *fitzSource) Close() error {
	return s.doc.Close()
}
