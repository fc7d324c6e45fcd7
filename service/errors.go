package service

import "errors"

var (
	// ErrNotFound is returned when no job exists for a document ID.
	ErrNotFound = errors.New("document not found")

	// ErrNotReady is returned when a result is requested before the
	// analysis reached the completed state.
	ErrNotReady = errors.New("analysis not completed")

	// ErrResultMissing is returned when a job is marked completed but its
	// result record is absent. This should not happen and indicates a
	// data-integrity violation.
	ErrResultMissing = errors.New("analysis result missing for completed job")
)
