package api

import "time"

const (
	// FileCleanupDelay is the delay before cleaning up temp files after response is sent
	FileCleanupDelay = 2 * time.Second

	// DefaultFilePermissions for temp directory creation
	DefaultFilePermissions = 0755

	// DefaultJobTTL is how long finished jobs and stored uploads are kept
	DefaultJobTTL = 30 * time.Minute

	// JanitorInterval is how often expired jobs and uploads are swept
	JanitorInterval = time.Minute

	// maxErrorLength truncates error messages returned to clients
	maxErrorLength = 200
)
