package pdf

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/phpdave11/gofpdf"

	"pdfmute/filter"
)

var jpegImage = gofpdf.ImageOptions{ImageType: "JPG"}

// Assembler builds the output document one raster page at a time. Pages
// are sized in points equal to the image's pixel dimensions, so nothing is
// scaled to a paper size. It is not safe for concurrent use.
type Assembler struct {
	doc   *gofpdf.Fpdf
	pages int
}

// NewAssembler returns an empty output document
func NewAssembler() *Assembler {
	doc := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt"})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreator("pdfmute", true)
	return &Assembler{doc: doc}
}

// PageCount returns the number of pages appended so far
func (a *Assembler) PageCount() int {
	return a.pages
}

// EncodePage compresses a pixel buffer as a JPEG at JPEGQuality
func EncodePage(buf *filter.Buffer) ([]byte, error) {
	var out bytes.Buffer
	if err := jpeg.Encode(&out, buf.RGBA(), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %v", err)
	}
	return out.Bytes(), nil
}

// AppendPage encodes buf and adds it as a new page
func (a *Assembler) AppendPage(buf *filter.Buffer) error {
	data, err := EncodePage(buf)
	if err != nil {
		return err
	}
	return a.AppendJPEG(data, buf.Width, buf.Height)
}

// AppendJPEG adds an already encoded page image of width x height pixels,
// drawn to fill the whole page
func (a *Assembler) AppendJPEG(data []byte, width, height int) error {
	if err := a.doc.Error(); err != nil {
		return err
	}

	name := fmt.Sprintf("page-%d", a.pages+1)
	w, h := float64(width), float64(height)

	a.doc.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
	a.doc.RegisterImageOptionsReader(name, jpegImage, bytes.NewReader(data))
	a.doc.ImageOptions(name, 0, 0, w, h, false, jpegImage, 0, "")
	if err := a.doc.Error(); err != nil {
		return fmt.Errorf("failed to add page %d: %v", a.pages+1, err)
	}

	a.pages++
	return nil
}

// Finalize persists the document at dest. The file is written next to dest
// under a temporary name and renamed into place, so dest is only touched
// when everything succeeded. With optimize set the written file is passed
// through pdfcpu first.
func (a *Assembler) Finalize(dest string, optimize bool) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pdfmute-*.pdf")
	if err != nil {
		return &WriteError{Path: dest, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := a.doc.Output(tmp); err != nil {
		tmp.Close()
		return &WriteError{Path: dest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: dest, Err: err}
	}

	if err := os.Chmod(tmpName, outputFileMode); err != nil {
		return &WriteError{Path: dest, Err: err}
	}

	if optimize {
		optName := tmpName + ".opt"
		defer os.Remove(optName)
		if err := ResavePDF(tmpName, optName); err != nil {
			return &WriteError{Path: dest, Err: err}
		}
		tmpName = optName
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return &WriteError{Path: dest, Err: err}
	}
	return nil
}
