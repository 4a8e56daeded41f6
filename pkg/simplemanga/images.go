package simplemanga

import (
	"context"
	"errors"
	"log/slog"
)

// ImageManager bridges freshly selected binaries, durable image references
// and display handles.
type ImageManager struct {
	store   BlobStore
	handles *HandleRegistry
	logger  *slog.Logger
	limit   int
}

// NewImageManager creates an image manager over the given blob store. A nil
// registry gets a fresh one; a nil logger uses slog.Default().
func NewImageManager(store BlobStore, handles *HandleRegistry, logger *slog.Logger, limit int) *ImageManager {
	if handles == nil {
		handles = NewHandleRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageManager{store: store, handles: handles, logger: logger, limit: limit}
}

// Handles returns the registry holding the manager's display handles.
func (m *ImageManager) Handles() *HandleRegistry {
	return m.handles
}

// Upload stores every file and acquires a display handle for each, keeping
// input order.
//
// When some files fail, the images that did land are deleted again so the
// failed upload leaves nothing behind, and the batch error is returned.
func (m *ImageManager) Upload(ctx context.Context, files []File) ([]UploadedImage, error) {
	if len(files) == 0 {
		return nil, nil
	}
	data := make([][]byte, len(files))
	for i, f := range files {
		data[i] = f.Data
	}

	ids, err := PutImages(ctx, m.store, data, m.limit)
	if err != nil {
		landed := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != "" {
				landed = append(landed, id)
			}
		}
		if cleanupErr := DeleteImages(ctx, m.store, landed, m.limit); cleanupErr != nil {
			m.logger.Warn("Failed to clean up partial upload", "count", len(landed), "err", cleanupErr)
		}
		return nil, err
	}

	uploaded := make([]UploadedImage, len(files))
	for i, f := range files {
		uploaded[i] = UploadedImage{ImageID: ids[i], URL: m.handles.Acquire(f.Data)}
	}
	m.logger.Debug("Uploaded images", "count", len(uploaded))
	return uploaded, nil
}

// Resolve fetches an image and acquires a fresh display handle for it.
func (m *ImageManager) Resolve(ctx context.Context, imageID string) (string, error) {
	data, err := m.store.Get(ctx, imageID)
	if err != nil {
		return "", err
	}
	return m.handles.Acquire(data), nil
}

// Release deletes the given images from the blob store. Empty input is a
// no-op.
func (m *ImageManager) Release(ctx context.Context, imageIDs []string) error {
	if len(imageIDs) == 0 {
		return nil
	}
	if err := DeleteImages(ctx, m.store, imageIDs, m.limit); err != nil {
		return err
	}
	m.logger.Debug("Released images", "count", len(imageIDs))
	return nil
}

// Discard releases the display handles among urls. External URLs are ignored.
func (m *ImageManager) Discard(urls ...string) {
	m.handles.Release(urls...)
}

// hydrate resolves every referenced image of the manga in place. Failures are
// collected per image and the page keeps its previous URL.
func (m *ImageManager) hydrate(ctx context.Context, manga *Manga) []*ImageError {
	var failures []*ImageError
	for _, chapter := range manga.Chapters {
		for _, pages := range chapter.Pages {
			for _, page := range pages {
				if page.ImageID == "" {
					continue
				}
				url, err := m.Resolve(ctx, page.ImageID)
				if err != nil {
					if errors.Is(err, ErrImageNotFound) {
						m.logger.Warn("Image missing from blob store", "manga_id", manga.ID, "image_id", page.ImageID)
						continue
					}
					m.logger.Error("Failed to load image", "manga_id", manga.ID, "image_id", page.ImageID, "err", err)
					failures = append(failures, &ImageError{ImageID: page.ImageID, Err: err})
					continue
				}
				page.URL = url
			}
		}
	}
	return failures
}
