package simplemanga

import "context"

// Service defines the main interface for the simple-manga library.
//
// Mutating operations are no-ops (nil error) when the addressed manga or
// chapter does not exist. Storage failures are returned wrapped in
// *MangaError / *StorageError and are not retried. Callers must not issue
// concurrent mutations against the same manga; operations on different
// mangas may run concurrently.
type Service interface {
	// Initialize loads every catalog record and resolves its images into
	// display handles. Mangas already in memory are kept as they are; only
	// records with new IDs are appended. Per-image failures are reported
	// through a *HydrationError after the whole catalog is loaded.
	Initialize(ctx context.Context) error

	// Manga operations
	AddManga(ctx context.Context, req AddMangaRequest) (*Manga, error)
	UpdateManga(ctx context.Context, req UpdateMangaRequest) error
	DeleteManga(ctx context.Context, id string) error

	// Chapter operations
	AddChapterVersion(ctx context.Context, req AddChapterVersionRequest) error
	UpdateChapterVersion(ctx context.Context, req UpdateChapterVersionRequest) error
	DeleteChapter(ctx context.Context, mangaID, chapterID string) error

	// Read-only projection. Both return deep copies.
	GetManga(id string) (*Manga, bool)
	Mangas() []*Manga

	// Subscribe registers an observer for every committed mutation and
	// returns a function that unregisters it. Observers run synchronously
	// inside the committing operation: they may read the projection but must
	// not call mutating operations.
	Subscribe(o Observer) (unsubscribe func())

	// OpenHandle returns the bytes and content type behind a display handle.
	OpenHandle(url string) ([]byte, string, bool)

	// Consistency operations
	Verify(ctx context.Context) (*ConsistencyReport, error)
	CollectOrphans(ctx context.Context) ([]string, error)

	// Close releases every display handle and closes the stores that
	// implement io.Closer.
	Close() error
}
