package domain

import "errors"

var (
	// ErrInvalidInput covers missing files, empty names and disallowed extensions.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProtectedResource is returned when deleting or overwriting an original image.
	ErrProtectedResource = errors.New("cannot modify original images")
	// ErrNoFeaturesAvailable means neither partition has any entries.
	ErrNoFeaturesAvailable = errors.New("feature files not found, generate features first from the Gallery tab")
	// ErrExtractionFailure wraps a single image's decode or inference error.
	ErrExtractionFailure = errors.New("feature extraction failed")
	// ErrStorageIO wraps read/write failures of persisted feature arrays.
	ErrStorageIO = errors.New("feature storage failure")
	// ErrNotFound means the named image does not exist on disk.
	ErrNotFound = errors.New("file not found")
)

// IsUserError returns true for failures caused by the request rather than the server.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrProtectedResource) ||
		errors.Is(err, ErrNoFeaturesAvailable) ||
		errors.Is(err, ErrNotFound)
}
