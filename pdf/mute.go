package pdf

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pdfmute/filter"
)

// Options configures a red-removal run
type Options struct {
	// Algorithm selects the filter tier
	Algorithm filter.Algorithm

	// Replacement is painted over erased pixels and gates the residual pass
	Replacement filter.Replacement

	// Table is the near-color palette; empty means filter.DefaultTable()
	Table filter.Table

	// DPI is the rasterization density (default RenderDPI)
	DPI float64

	// Workers > 1 renders and filters pages concurrently. Output order and
	// progress order are unaffected.
	Workers int

	// Pages restricts the run to a page specification such as "1,3-5"
	Pages string

	// Optimize passes the finished document through pdfcpu
	Optimize bool

	// Verbose logs one line per page
	Verbose bool

	// Progress is called once per appended page with the cumulative
	// percentage, from the goroutine running the pipeline. It must not block.
	Progress func(percent float64)

	// Open opens source documents (default OpenSource)
	Open Opener
}

// DefaultOptions returns the options used by both front ends
func DefaultOptions() Options {
	return Options{
		Algorithm:   filter.Reference,
		Replacement: filter.White,
		Table:       filter.DefaultTable(),
		DPI:         RenderDPI,
		Workers:     1,
	}
}

func (o Options) withDefaults() Options {
	if len(o.Table.Targets) == 0 {
		o.Table = filter.DefaultTable()
	}
	if o.DPI <= 0 {
		o.DPI = RenderDPI
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Open == nil {
		o.Open = OpenSource
	}
	return o
}

// Result summarizes a finished run
type Result struct {
	Pages    int
	Stats    filter.Stats
	Duration time.Duration
}

// pageResult is one rendered, filtered and encoded page
type pageResult struct {
	seq    int // position in the output
	index  int // 0-based source page
	jpeg   []byte
	width  int
	height int
	stats  filter.Stats
}

// Mute removes red ink from every selected page of inFile and writes the
// result to outFile. Nothing is written unless every page succeeds.
// Cancelling ctx stops the run before the next page starts.
func Mute(ctx context.Context, inFile, outFile string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	start := time.Now()

	src, err := opts.Open(inFile)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	total := src.NumPage()
	if total == 0 {
		return nil, &SourceReadError{Path: inFile, Err: ErrNoPages}
	}
	pages, err := selectPages(opts.Pages, total)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPages, err)
	}

	f := filter.Filter{
		Table:       opts.Table,
		Replacement: opts.Replacement,
		Algorithm:   opts.Algorithm,
	}
	r := &run{
		inFile: inFile,
		opts:   opts,
		filter: f,
		pages:  pages,
		asm:    NewAssembler(),
		result: &Result{Pages: len(pages)},
	}

	if opts.Workers == 1 || len(pages) == 1 {
		err = r.sequential(ctx, src)
	} else {
		err = r.parallel(ctx, src)
	}
	if err != nil {
		return nil, err
	}

	if err := r.asm.Finalize(outFile, opts.Optimize); err != nil {
		return nil, err
	}

	r.result.Duration = time.Since(start)
	log.Printf("Muted %s -> %s: %d pages, %d pixels erased in %v",
		inFile, outFile, r.result.Pages, r.result.Stats.Erased(), r.result.Duration)
	return r.result, nil
}

// run is the state of one Mute call
type run struct {
	inFile string
	opts   Options
	filter filter.Filter
	pages  []int
	asm    *Assembler
	result *Result
}

// process renders, filters and encodes one source page
func (r *run) process(src Source, seq int) (pageResult, error) {
	index := r.pages[seq]
	began := time.Now()

	buf, err := src.Render(index, r.opts.DPI)
	if err != nil {
		return pageResult{}, err
	}
	stats := r.filter.Apply(buf)

	data, err := EncodePage(buf)
	if err != nil {
		return pageResult{}, err
	}

	if r.opts.Verbose {
		log.Printf("Page %d processed in %v (%dx%d, %d pixels erased)",
			index+1, time.Since(began), buf.Width, buf.Height, stats.Erased())
	}
	return pageResult{seq: seq, index: index, jpeg: data, width: buf.Width, height: buf.Height, stats: stats}, nil
}

// appendPage inserts a processed page and reports progress
func (r *run) appendPage(p pageResult) error {
	if err := r.asm.AppendJPEG(p.jpeg, p.width, p.height); err != nil {
		return err
	}
	r.result.Stats.Add(p.stats)

	if r.opts.Progress != nil {
		done := r.asm.PageCount()
		r.opts.Progress(float64(done) / float64(len(r.pages)) * 100)
	}
	return nil
}

func (r *run) sequential(ctx context.Context, src Source) error {
	for seq := range r.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := r.process(src, seq)
		if err != nil {
			return err
		}
		if err := r.appendPage(p); err != nil {
			return err
		}
	}
	return nil
}

// parallel runs one source per worker. The calling goroutine is the only
// writer and appends pages strictly in order; at most
// maxPendingPerWorker*Workers pages are in flight at once.
func (r *run) parallel(ctx context.Context, src Source) error {
	workers := r.opts.Workers
	if workers > len(r.pages) {
		workers = len(r.pages)
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	results := make(chan pageResult, workers)
	slots := make(chan struct{}, maxPendingPerWorker*workers)

	g.Go(func() error {
		defer close(jobs)
		for seq := range r.pages {
			select {
			case slots <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case jobs <- seq:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()

			wsrc := src
			if w > 0 {
				opened, err := r.opts.Open(r.inFile)
				if err != nil {
					return err
				}
				defer opened.Close()
				wsrc = opened
			}

			for seq := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				p, err := r.process(wsrc, seq)
				if err != nil {
					return err
				}
				select {
				case results <- p:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]pageResult)
	next := 0
	var writeErr error
	for p := range results {
		if writeErr != nil {
			continue // drain so workers can exit
		}
		pending[p.seq] = p
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := r.appendPage(ready); err != nil {
				writeErr = err
				break
			}
			next++
			<-slots
		}
		if writeErr != nil {
			g.Go(func() error { return writeErr })
		}
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	return nil
}
