package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"pdfmute/filter"
	pdfPkg "pdfmute/pdf"
)

// batchDirName is where directory mode writes its results
const batchDirName = "no solution"

var (
	output    = flag.String("o", "", "output file, or output directory when the input is a directory")
	algorithm = flag.String("algorithm", "reference", "filter tier: reference, accelerated or approximate")
	color     = flag.String("color", "white", "replacement color: white or black")
	pages     = flag.String("pages", "", `pages to keep, e.g. "1,3-5"; empty keeps all`)
	workers   = flag.Int("workers", 1, "pages processed concurrently per document")
	optimize  = flag.Bool("optimize", false, "optimize the finished PDF with pdfcpu")
	dpi       = flag.Float64("dpi", pdfPkg.RenderDPI, "rasterization density")
	soffice   = flag.String("soffice", "soffice", "LibreOffice binary used for .doc/.docx input")
	verbose   = flag.Bool("v", false, "log every page")
)

// task is one document to process
type task struct {
	in  string
	out string
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input.pdf|input.docx|dir>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	opts, err := buildOptions()
	if err != nil {
		exitWithError(err)
	}

	tasks, err := planTasks(flag.Arg(0), *output)
	if err != nil {
		exitWithError(err)
	}
	if len(tasks) == 0 {
		fmt.Println("No PDF or Word documents found.")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conv := pdfPkg.NewOfficeConverter()
	conv.Binary = *soffice

	failed := 0
	for i, t := range tasks {
		fmt.Printf("[%d/%d] %s\n", i+1, len(tasks), t.in)
		if err := processFile(ctx, conv, t, opts); err != nil {
			log.Printf("Failed to process %s: %v", t.in, err)
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Printf("  -> %s\n", t.out)
	}

	if failed > 0 {
		log.Printf("%d of %d documents failed", failed, len(tasks))
		os.Exit(1)
	}
}

func exitWithError(err error) {
	log.Fatalf("%s", err)
}

// buildOptions turns the flags into pipeline options
func buildOptions() (pdfPkg.Options, error) {
	opts := pdfPkg.DefaultOptions()

	algo, err := filter.ParseAlgorithm(*algorithm)
	if err != nil {
		return opts, err
	}
	repl, err := filter.ParseReplacement(*color)
	if err != nil {
		return opts, err
	}

	opts.Algorithm = algo
	opts.Replacement = repl
	opts.Pages = *pages
	opts.Workers = *workers
	opts.Optimize = *optimize
	opts.DPI = *dpi
	opts.Verbose = *verbose
	return opts, nil
}

// processFile converts the input if needed and mutes it into t.out
func processFile(ctx context.Context, conv pdfPkg.Converter, t task, opts pdfPkg.Options) error {
	pdfPath, cleanup, err := pdfPkg.PrepareInput(ctx, conv, t.in)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := os.MkdirAll(filepath.Dir(t.out), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	last := -10
	opts.Progress = func(percent float64) {
		if p := int(percent); p/10 != last/10 {
			last = p
			fmt.Printf("  %3d%%\n", p)
		}
	}

	res, err := pdfPkg.Mute(ctx, pdfPath, t.out, opts)
	if err != nil {
		return err
	}
	fmt.Printf("  %d pages, %d pixels erased in %v\n", res.Pages, res.Stats.Erased(), res.Duration.Round(time.Millisecond))
	return nil
}

// planTasks maps the input argument to documents and output paths. A file
// goes to out, or <base>_MuteRed.pdf beside it. A directory's documents go
// to out, or "<dir>/no solution", keeping their base names. When a base
// name is shared, as with exam.pdf and exam.docx, only the .pdf keeps
// exam.pdf and the others keep their extension: exam.docx.pdf.
func planTasks(source, out string) ([]task, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if !isDocument(source) {
			return nil, fmt.Errorf("%s: %w", source, pdfPkg.ErrUnsupportedInput)
		}
		if out == "" {
			out = defaultOutput(source)
		}
		return []task{{in: source, out: out}}, nil
	}

	if out == "" {
		out = filepath.Join(source, batchDirName)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, err
	}

	var names []string
	bases := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() || !isDocument(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
		bases[outputKey(baseName(entry.Name()))]++
	}
	sort.Strings(names)

	tasks := make([]task, 0, len(names))
	claimed := make(map[string]string)
	for _, name := range names {
		outName := baseName(name) + ".pdf"
		if bases[outputKey(baseName(name))] > 1 && filepath.Ext(name) != ".pdf" {
			outName = name + ".pdf"
		}

		t := task{in: filepath.Join(source, name), out: filepath.Join(out, outName)}
		if prev, ok := claimed[outputKey(outName)]; ok {
			return nil, fmt.Errorf("%s and %s both write %s", prev, t.in, t.out)
		}
		claimed[outputKey(outName)] = t.in
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// outputKey folds case so names that differ only in case count as the same
// file on case-insensitive filesystems
func outputKey(name string) string {
	return strings.ToLower(name)
}

// defaultOutput is report.docx -> report_MuteRed.pdf in the same directory
func defaultOutput(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + pdfPkg.OutputSuffix + ".pdf"
}

func isDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf") || pdfPkg.IsConvertible(path)
}
