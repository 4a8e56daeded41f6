package simplemanga

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrMangaNotFound indicates a manga was not found
	ErrMangaNotFound = errors.New("manga not found")

	// ErrChapterNotFound indicates a chapter was not found
	ErrChapterNotFound = errors.New("chapter not found")

	// ErrImageNotFound indicates an image is absent from the blob store
	ErrImageNotFound = errors.New("image not found")

	// ErrBlobStoreRequired indicates the service was built without a blob store
	ErrBlobStoreRequired = errors.New("blob store is required")

	// ErrCatalogStoreRequired indicates the service was built without a catalog store
	ErrCatalogStoreRequired = errors.New("catalog store is required")

	// ErrInvalidHandle indicates a URL is not a display handle owned by the registry
	ErrInvalidHandle = errors.New("invalid display handle")

	// ErrEmptyFileName indicates an uploaded file carries no name
	ErrEmptyFileName = errors.New("file name is required")
)

// MangaError represents an error related to manga operations
type MangaError struct {
	MangaID string
	Op      string
	Err     error
}

func (e *MangaError) Error() string {
	return fmt.Sprintf("manga operation %s failed for manga %s: %v", e.Op, e.MangaID, e.Err)
}

func (e *MangaError) Unwrap() error {
	return e.Err
}

// StorageError represents a failure talking to a blob or catalog store.
// Callers treat it as "store unreachable".
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ImageError records the failure of a single image within a batch or a
// hydration pass.
type ImageError struct {
	Index   int
	ImageID string
	Err     error
}

func (e *ImageError) Error() string {
	if e.ImageID == "" {
		return fmt.Sprintf("image #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("image %s: %v", e.ImageID, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// BatchError is returned by batch blob operations when at least one item
// failed. Items not listed succeeded.
type BatchError struct {
	Op       string
	Total    int
	Failures []*ImageError
}

func (e *BatchError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%s: %d of %d images failed: %s", e.Op, len(e.Failures), e.Total, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// HydrationError lists the images that could not be resolved while loading
// the catalog. The rest of the catalog is loaded regardless.
type HydrationError struct {
	Failures []*ImageError
}

func (e *HydrationError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.ImageID)
	}
	return fmt.Sprintf("failed to load %d images: %s", len(e.Failures), strings.Join(ids, ", "))
}

func (e *HydrationError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// IsUnreachable reports whether err signals a storage failure rather than a
// missing object.
func IsUnreachable(err error) bool {
	if err == nil || errors.Is(err, ErrImageNotFound) {
		return false
	}
	var se *StorageError
	return errors.As(err, &se)
}
