package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	pdfPkg "pdfmute/pdf"
)

// JobStatus is the lifecycle state of a background job
type JobStatus string

const (
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// Job is a red-removal run executing in the background
type Job struct {
	ID       string
	Filename string
	uploadID string // stored upload the job reads, if any

	mu       sync.Mutex
	status   JobStatus
	progress float64
	err      string
	output   string
	finished time.Time
	changed  chan struct{} // closed and replaced on every update
	cancel   context.CancelFunc
}

// JobSnapshot is the JSON view of a job
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
	Error    string    `json:"error,omitempty"`
}

func (j *Job) snapshotLocked() JobSnapshot {
	return JobSnapshot{ID: j.ID, Status: j.status, Progress: j.progress, Error: j.err}
}

// Snapshot returns the current state
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

// watch returns the current state and a channel closed on the next change
func (j *Job) watch() (JobSnapshot, <-chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked(), j.changed
}

func (j *Job) update(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn()
	close(j.changed)
	j.changed = make(chan struct{})
}

// Cancel stops a running job. It reports whether the job was still running.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	running := j.status == JobRunning
	j.mu.Unlock()
	if running {
		j.cancel()
	}
	return running
}

// upload is a stored document awaiting preview or processing
type upload struct {
	path    string
	name    string
	created time.Time
}

// JobStore keeps uploads and jobs in memory. Finished jobs and old uploads
// are removed, files included, once they are older than the TTL.
type JobStore struct {
	mu      sync.Mutex
	dir     string
	ttl     time.Duration
	jobs    map[string]*Job
	uploads map[string]upload
}

// NewJobStore creates a store writing job outputs to dir
func NewJobStore(dir string, ttl time.Duration) *JobStore {
	return &JobStore{
		dir:     dir,
		ttl:     ttl,
		jobs:    make(map[string]*Job),
		uploads: make(map[string]upload),
	}
}

// Start launches a job for doc. The job owns doc and cleans it up when it
// finishes.
func (s *JobStore) Start(doc *document, opts pdfPkg.Options) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:       generateUniqueID(),
		Filename: doc.name,
		uploadID: doc.uploadID,
		status:   JobRunning,
		changed:  make(chan struct{}),
		cancel:   cancel,
	}
	output := filepath.Join(s.dir, "job_"+job.ID+".pdf")

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	events := pdfPkg.Start(ctx, doc.pdf, output, opts)
	go func() {
		defer cancel()

		var final pdfPkg.Event
		for ev := range events {
			if ev.Done {
				final = ev
				continue
			}
			job.update(func() { job.progress = ev.Progress })
		}
		doc.cleanup()

		if final.Err != nil && !errors.Is(final.Err, context.Canceled) {
			log.Printf("Job %s (%s) failed: %v", job.ID, doc.name, final.Err)
		}

		job.update(func() {
			job.finished = time.Now()
			switch {
			case final.Err == nil:
				job.status = JobDone
				job.progress = 100
				job.output = output
			case errors.Is(final.Err, context.Canceled):
				job.status = JobCanceled
				job.progress = 0
			default:
				job.status = JobFailed
				job.progress = 0
				job.err = errorMessage(final.Err)
			}
		})
	}()

	return job
}

// Get looks up a job by ID
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

// AddUpload registers a stored document under id
func (s *JobStore) AddUpload(id, path, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[id] = upload{path: path, name: name, created: time.Now()}
}

// Upload looks up a stored document by ID. A lookup counts as use and
// restarts the upload's TTL.
func (s *JobStore) Upload(id string) (upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	up, ok := s.uploads[id]
	if ok {
		up.created = time.Now()
		s.uploads[id] = up
	}
	return up, ok
}

// Sweep drops finished jobs and uploads older than the TTL and deletes
// their files. Uploads read by a running job are kept.
func (s *JobStore) Sweep(now time.Time) {
	cutoff := now.Add(-s.ttl)

	var stale []string
	inUse := make(map[string]bool)
	s.mu.Lock()
	for id, job := range s.jobs {
		job.mu.Lock()
		running := job.status == JobRunning
		expired := !running && job.finished.Before(cutoff)
		output := job.output
		job.mu.Unlock()
		if running && job.uploadID != "" {
			inUse[job.uploadID] = true
		}
		if expired {
			delete(s.jobs, id)
			if output != "" {
				stale = append(stale, output)
			}
		}
	}
	for id, up := range s.uploads {
		if up.created.Before(cutoff) && !inUse[id] {
			delete(s.uploads, id)
			stale = append(stale, up.path)
		}
	}
	s.mu.Unlock()

	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove %s: %v", path, err)
		}
	}
}

// RunJanitor sweeps the store every interval until ctx is done
func (s *JobStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// CancelAll cancels every running job
func (s *JobStore) CancelAll() {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	for _, job := range jobs {
		job.Cancel()
	}
}

// HandleStartJob starts a background run and answers with its ID
func HandleStartJob(c *gin.Context, config *Config, store *JobStore) {
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

	job := store.Start(doc, opts)
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

// HandleJobStatus reports a job's state
func HandleJobStatus(c *gin.Context, store *JobStore) {
	job, ok := store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job.Snapshot())
}

// HandleJobEvents streams a job's progress as server-sent events. Progress
// updates use the "progress" event; the stream ends with one event named
// after the final status.
func HandleJobEvents(c *gin.Context, store *JobStore) {
	job, ok := store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	for {
		snap, changed := job.watch()
		if snap.Status != JobRunning {
			c.SSEvent(string(snap.Status), snap)
			c.Writer.Flush()
			return
		}

		c.SSEvent("progress", snap)
		c.Writer.Flush()

		select {
		case <-changed:
		case <-ctx.Done():
			return
		}
	}
}

// HandleJobResult downloads a finished job's PDF
func HandleJobResult(c *gin.Context, store *JobStore) {
	job, ok := store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	job.mu.Lock()
	snap, output := job.snapshotLocked(), job.output
	job.mu.Unlock()

	switch snap.Status {
	case JobRunning:
		c.JSON(http.StatusConflict, snap)
	case JobDone:
		sendPDF(c, output, job.Filename)
	default:
		c.JSON(http.StatusGone, snap)
	}
}

// HandleCancelJob requests cancellation of a running job
func HandleCancelJob(c *gin.Context, store *JobStore) {
	job, ok := store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	if !job.Cancel() {
		c.JSON(http.StatusConflict, job.Snapshot())
		return
	}
	c.JSON(http.StatusAccepted, job.Snapshot())
}
