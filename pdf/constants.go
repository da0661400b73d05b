package pdf

import "time"

const (
	// RenderDPI is the rasterization density for pages that get filtered
	RenderDPI = 300

	// PreviewDPI is the density of the unfiltered on-screen preview
	PreviewDPI = 100

	// JPEGQuality is the encoder quality for output pages (maximum lossy setting)
	JPEGQuality = 100

	// OutputSuffix is appended to the input base name for default output paths
	OutputSuffix = "_MuteRed"

	// DefaultConvertTimeout bounds a single word-processor conversion attempt
	DefaultConvertTimeout = 120 * time.Second

	// DefaultConvertRetries is the number of extra conversion attempts
	DefaultConvertRetries = 1

	// outputFileMode is applied to finished output documents
	outputFileMode = 0644

	// maxPendingPerWorker bounds rendered pages waiting for the writer
	maxPendingPerWorker = 2
)
