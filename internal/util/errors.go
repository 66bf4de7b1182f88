package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrConflict indicates a uniqueness race lost to a concurrent writer.
	// Callers are expected to fall back to a lookup, not fail.
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates a required record was not found
	ErrNotFound = errors.New("not found")

	// ErrUploadFailed indicates the durable byte store rejected a write
	ErrUploadFailed = errors.New("upload failed")

	// ErrHashFailed indicates the input stream could not be digested
	ErrHashFailed = errors.New("hash computation failed")

	// ErrWriteDegraded indicates an adaptive write exhausted its retries
	// without converging on a column set the backend accepts
	ErrWriteDegraded = errors.New("write degraded")

	// ErrLineageDepth indicates an attempt to create a derivative of a
	// derivative; lineage is capped at one level
	ErrLineageDepth = errors.New("lineage depth exceeded")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
