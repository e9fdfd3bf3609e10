package catalog

import "errors"

var (
	// ErrNotFound is returned when no latest record has been published yet
	ErrNotFound = errors.New("no version information available")

	// ErrInvalidMetadata is returned when a persisted record cannot be parsed
	ErrInvalidMetadata = errors.New("invalid metadata format")

	// ErrImageNotFound is returned when the image to ingest is not in the image directory
	ErrImageNotFound = errors.New("kernel file not found")

	// ErrInvalidVersion is returned for an empty version identifier
	ErrInvalidVersion = errors.New("invalid kernel version")

	// ErrInconsistentState is returned when the history record was published
	// but the latest record could not be
	ErrInconsistentState = errors.New("catalog records are inconsistent")
)
