package pdf

import (
	"errors"
	"sync"
	"time"

	"pdfmute/filter"
)

// fakeDocs hands out in-memory sources whose pages are fixed buffers
type fakeDocs struct {
	pages  []*filter.Buffer
	failAt int // 0-based page whose render fails, -1 for none
	delay  func(page int) time.Duration

	mu     sync.Mutex
	opened int
	closed int
	dpis   []float64
}

func newFakeDocs(pages ...*filter.Buffer) *fakeDocs {
	return &fakeDocs{pages: pages, failAt: -1}
}

func (d *fakeDocs) Open(path string) (Source, error) {
	if path == "" {
		return nil, &SourceReadError{Path: path, Err: errors.New("no such file")}
	}
	d.mu.Lock()
	d.opened++
	d.mu.Unlock()
	return &fakeSource{docs: d, path: path}, nil
}

func (d *fakeDocs) balanced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened == d.closed
}

type fakeSource struct {
	docs *fakeDocs
	path string
}

func (s *fakeSource) NumPage() int {
	return len(s.docs.pages)
}

func (s *fakeSource) Render(page int, dpi float64) (*filter.Buffer, error) {
	s.docs.mu.Lock()
	s.docs.dpis = append(s.docs.dpis, dpi)
	s.docs.mu.Unlock()

	if s.docs.delay != nil {
		time.Sleep(s.docs.delay(page))
	}
	if page == s.docs.failAt || page < 0 || page >= len(s.docs.pages) {
		return nil, &SourceReadError{Path: s.path, Page: page + 1, Err: errors.New("corrupt page")}
	}
	return s.docs.pages[page].Clone(), nil
}

func (s *fakeSource) Close() error {
	s.docs.mu.Lock()
	s.docs.closed++
	s.docs.mu.Unlock()
	return nil
}
