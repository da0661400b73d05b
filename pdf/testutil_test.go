package pdf

import (
	"testing"

	"github.com/phpdave11/gofpdf"
)

// writeSolidPDF writes a PDF whose pages are each filled with one color.
// Every page is size x size points.
func writeSolidPDF(t *testing.T, path string, size float64, colors ...[3]int) {
	t.Helper()

	f := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: size, Ht: size},
	})
	f.SetMargins(0, 0, 0)
	f.SetAutoPageBreak(false, 0)
	for _, c := range colors {
		f.AddPage()
		f.SetFillColor(c[0], c[1], c[2])
		// Overshoot the page so no anti-aliased border is left
		f.Rect(-2, -2, size+4, size+4, "F")
	}
	if err := f.OutputFileAndClose(path); err != nil {
		t.Fatal(err)
	}
}
