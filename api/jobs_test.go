package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pdfmute/filter"
	pdfPkg "pdfmute/pdf"
)

// gatedSource holds every render until its gate opens
type gatedSource struct {
	pdfPkg.Source
	gate <-chan struct{}
}

func (s gatedSource) Render(page int, dpi float64) (*filter.Buffer, error) {
	<-s.gate
	return s.Source.Render(page, dpi)
}

// gatedOpener wraps OpenSource so renders wait for the returned release func
func gatedOpener(t *testing.T) (pdfPkg.Opener, func()) {
	gate := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)

	open := func(path string) (pdfPkg.Source, error) {
		src, err := pdfPkg.OpenSource(path)
		if err != nil {
			return nil, err
		}
		return gatedSource{Source: src, gate: gate}, nil
	}
	return open, release
}

func TestCancelRunningJob(t *testing.T) {
	r, config, _ := newTestServer(t)
	open, release := gatedOpener(t)
	config.Open = open
	// Sequential runs check for cancellation before every page
	config.Workers = 1

	rec := serve(r, multipartRequest(t, http.MethodPost, "/api/pdf/jobs", "exam.pdf",
		samplePDF(t, [3]int{220, 20, 20}, [3]int{255, 255, 255}), nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start failed: %d %s", rec.Code, rec.Body.String())
	}
	var started struct {
		JobID string `json:"job_id"`
	}
	decodeJSON(t, rec, &started)

	rec = serve(r, httptest.NewRequest(http.MethodDelete, "/api/pdf/jobs/"+started.JobID, nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("cancel: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	release()

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/"+started.JobID+"/events", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "event:canceled") {
		t.Fatalf("event stream did not end with canceled: %q", body)
	}
	if strings.Contains(body, "event:done") {
		t.Errorf("canceled job reported done: %q", body)
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/"+started.JobID, nil))
	var snap JobSnapshot
	decodeJSON(t, rec, &snap)
	if snap.Status != JobCanceled || snap.Progress != 0 {
		t.Errorf("unexpected status after cancel %+v", snap)
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/pdf/jobs/"+started.JobID+"/result", nil))
	if rec.Code != http.StatusGone {
		t.Errorf("result of a canceled job: expected 410, got %d", rec.Code)
	}
}

func TestUploadLookupRestartsTTL(t *testing.T) {
	dir := t.TempDir()
	store := NewJobStore(dir, time.Minute)

	path := filepath.Join(dir, "upload_x.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	store.AddUpload("x", path, "x.pdf")

	// Age the upload past its TTL, then use it
	store.mu.Lock()
	up := store.uploads["x"]
	up.created = time.Now().Add(-2 * time.Minute)
	store.uploads["x"] = up
	store.mu.Unlock()

	if _, ok := store.Upload("x"); !ok {
		t.Fatal("upload not found")
	}
	store.Sweep(time.Now())
	if _, err := os.Stat(path); err != nil {
		t.Errorf("upload swept right after use: %v", err)
	}
}

func TestSweepKeepsUploadOfRunningJob(t *testing.T) {
	dir := t.TempDir()
	store := NewJobStore(dir, time.Minute)

	path := filepath.Join(dir, "upload_y.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	store.AddUpload("y", path, "y.pdf")
	store.jobs["j"] = &Job{ID: "j", uploadID: "y", status: JobRunning, changed: make(chan struct{})}

	later := time.Now().Add(2 * time.Minute)
	store.Sweep(later)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("upload of a running job swept: %v", err)
	}

	store.jobs["j"].status = JobDone
	store.jobs["j"].finished = later
	store.Sweep(later)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("upload kept after its job finished")
	}
}
