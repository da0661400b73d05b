package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phpdave11/gofpdf"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// samplePDF returns a PDF with one 72pt square page per color
func samplePDF(t *testing.T, colors ...[3]int) []byte {
	t.Helper()

	f := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: 72, Ht: 72},
	})
	f.SetMargins(0, 0, 0)
	f.SetAutoPageBreak(false, 0)
	for _, c := range colors {
		f.AddPage()
		f.SetFillColor(c[0], c[1], c[2])
		f.Rect(-2, -2, 76, 76, "F")
	}

	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*gin.Engine, *Config, *JobStore) {
	t.Helper()
	config := &Config{
		MaxFileSize: 10 * 1024 * 1024,
		TempDir:     t.TempDir(),
		Workers:     2,
	}
	r := gin.New()
	store := SetupRoutes(r, config)
	return r, config, store
}

// multipartRequest builds a form with an optional file part
func multipartRequest(t *testing.T, method, url, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
	}
	w.Close()

	req := httptest.NewRequest(method, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	r, config, _ := newTestServer(t)
	pdfData := samplePDF(t, [3]int{255, 255, 255})

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"missing file", "", nil},
		{"wrong extension", "notes.txt", pdfData},
		{"header mismatch", "scan.pdf", []byte("GIF89a not a pdf")},
		{"docx with pdf header", "scan.docx", pdfData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/upload", tt.filename, tt.content, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	config.MaxFileSize = 10
	rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/upload", "scan.pdf", pdfData, nil))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "exceeds") {
		t.Errorf("expected size rejection, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadThenMuteByID(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/upload", "exam.pdf",
		samplePDF(t, [3]int{224, 202, 202}, [3]int{255, 255, 255}), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload failed: %d %s", rec.Code, rec.Body.String())
	}
	var up struct {
		FileID     string `json:"file_id"`
		Filename   string `json:"filename"`
		TotalPages int    `json:"total_pages"`
	}
	decodeJSON(t, rec, &up)
	if up.FileID == "" || up.Filename != "exam.pdf" || up.TotalPages != 2 {
		t.Fatalf("unexpected upload response %+v", up)
	}

	rec = serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/mute", "", nil,
		map[string]string{"file_id": up.FileID, "color": "black"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("mute failed: %d %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("response is not a PDF")
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "exam_MuteRed.pdf") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	rec = serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/mute", "", nil,
		map[string]string{"file_id": "nope"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown file_id, got %d", rec.Code)
	}
}

func TestMuteRejectsBadOptions(t *testing.T) {
	r, _, _ := newTestServer(t)
	pdfData := samplePDF(t, [3]int{255, 255, 255})

	for _, fields := range []map[string]string{
		{"algorithm": "quantum"},
		{"color": "purple"},
		{"optimize": "maybe"},
	} {
		rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/mute", "scan.pdf", pdfData, fields))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", fields, rec.Code)
		}
	}

	rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/mute", "scan.pdf", pdfData,
		map[string]string{"pages": "5"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range pages: expected 400, got %d", rec.Code)
	}
}

func TestMuteWordWithoutConverter(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/mute", "exam.docx",
		[]byte("PK\x03\x04 fake docx"), nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPreview(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/upload", "exam.pdf",
		samplePDF(t, [3]int{200, 30, 30}), nil))
	var up struct {
		FileID string `json:"file_id"`
	}
	decodeJSON(t, rec, &up)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/preview?file_id="+up.FileID+"&max_width=50", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("preview failed: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("unexpected content type %q", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("expected a 50x50 preview, got %v", b)
	}

	// Previews are not filtered
	if cr, _, _, _ := img.At(25, 25).RGBA(); cr>>8 < 150 {
		t.Errorf("preview center lost its red: %v", img.At(25, 25))
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/preview?file_id="+up.FileID+"&max_width=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad max_width, got %d", rec.Code)
	}
}

func TestJobLifecycle(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/jobs", "exam.pdf",
		samplePDF(t, [3]int{220, 20, 20}, [3]int{255, 255, 255}, [3]int{0, 0, 0}),
		map[string]string{"algorithm": "accelerated"}))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start failed: %d %s", rec.Code, rec.Body.String())
	}
	var started struct {
		JobID string `json:"job_id"`
	}
	decodeJSON(t, rec, &started)

	// Events block until the job ends
	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/"+started.JobID+"/events", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "event:done") {
		t.Fatalf("event stream did not end with done: %q", body)
	}
	if strings.Count(body, "event:done") != 1 {
		t.Errorf("expected exactly one terminal event: %q", body)
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/"+started.JobID, nil))
	var snap JobSnapshot
	decodeJSON(t, rec, &snap)
	if snap.Status != JobDone || snap.Progress != 100 {
		t.Errorf("unexpected final status %+v", snap)
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/"+started.JobID+"/result", nil))
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("result not served: %d", rec.Code)
	}

	rec = serve(r, httptest.NewRequest(http.MethodDelete, "/api/pdf/jobs/"+started.JobID, nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("cancelling a finished job: expected 409, got %d", rec.Code)
	}
}

func TestJobFailure(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/jobs", "exam.pdf",
		samplePDF(t, [3]int{255, 255, 255}), map[string]string{"pages": "3"}))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start failed: %d %s", rec.Code, rec.Body.String())
	}
	var started struct {
		JobID string `json:"job_id"`
	}
	decodeJSON(t, rec, &started)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/"+started.JobID+"/events", nil))
	if !strings.Contains(rec.Body.String(), "event:failed") {
		t.Fatalf("expected a failed event: %q", rec.Body.String())
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/"+started.JobID+"/result", nil))
	if rec.Code != http.StatusGone {
		t.Errorf("expected 410 for a failed job, got %d", rec.Code)
	}
}

func TestUnknownJob(t *testing.T) {
	r, _, _ := newTestServer(t)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/missing", nil),
		httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/missing/events", nil),
		httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/missing/result", nil),
		httptest.NewRequest(http.MethodDelete, "/api/pdf/jobs/missing", nil),
	} {
		if rec := serve(r, req); rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	dir := t.TempDir()
	store := NewJobStore(dir, time.Minute)

	path := filepath.Join(dir, "upload_x.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	store.AddUpload("x", path, "x.pdf")

	store.Sweep(time.Now())
	if _, ok := store.Upload("x"); !ok {
		t.Fatal("fresh upload swept")
	}

	store.Sweep(time.Now().Add(2 * time.Minute))
	if _, ok := store.Upload("x"); ok {
		t.Error("expired upload kept")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expired upload file not removed")
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"exam.pdf":          "exam_MuteRed.pdf",
		"Report.DOCX":       "Report_MuteRed.pdf",
		"../../etc/passwd":  "__etc_passwd_MuteRed.pdf",
		"archive.tar":       "archive.tar_MuteRed.pdf",
		"":                  "document_MuteRed.pdf",
		"scans\\week 1.doc": "scans_week 1_MuteRed.pdf",
	}
	for in, want := range tests {
		if got := outputName(in); got != want {
			t.Errorf("outputName(%q) = %q, want %q", in, got, want)
		}
	}
}
