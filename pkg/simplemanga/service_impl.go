package simplemanga

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// service implements the Service interface
type service struct {
	catalog CatalogStore
	blobs   BlobStore
	handles *HandleRegistry
	images  *ImageManager
	logger  *slog.Logger
	limit   int

	// mu guards mangas. Committed *Manga values are never mutated in place;
	// operations edit a clone and swap it in.
	mu     sync.RWMutex
	mangas []*Manga

	// commitMu serializes commits with observer delivery so observers see
	// changes in commit order.
	commitMu sync.Mutex
	seq      uint64

	obsMu     sync.RWMutex
	observers map[uint64]Observer
	nextObs   uint64

	// gate is held shared by every mutation and exclusively by the
	// consistency scans, which must not see half-finished uploads.
	gate sync.RWMutex
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithCatalogStore sets the durable catalog store
func WithCatalogStore(store CatalogStore) Option {
	return func(s *service) {
		s.catalog = store
	}
}

// WithBlobStore sets the durable image store
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithHandleRegistry shares a display handle registry with the service
func WithHandleRegistry(handles *HandleRegistry) Option {
	return func(s *service) {
		s.handles = handles
	}
}

// WithObserver registers an observer from construction on
func WithObserver(o Observer) Option {
	return func(s *service) {
		s.addObserver(o)
	}
}

// WithUploadConcurrency bounds the in-flight blob operations of a batch
func WithUploadConcurrency(limit int) Option {
	return func(s *service) {
		s.limit = limit
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		observers: make(map[uint64]Observer),
		limit:     DefaultBatchConcurrency,
	}

	for _, option := range options {
		option(s)
	}

	if s.catalog == nil {
		return nil, ErrCatalogStoreRequired
	}
	if s.blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.handles == nil {
		s.handles = NewHandleRegistry()
	}
	s.images = NewImageManager(s.blobs, s.handles, s.logger, s.limit)

	return s, nil
}

// Catalog lifecycle

func (s *service) Initialize(ctx context.Context) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	records, err := s.catalog.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to load catalog", "err", err)
		return catalogError("get_all", "", err)
	}

	var loaded []*Manga
	var failures []*ImageError
	for _, m := range records {
		if _, ok := s.GetManga(m.ID); ok {
			continue
		}
		normalize(m)
		failures = append(failures, s.images.hydrate(ctx, m)...)
		loaded = append(loaded, m)
	}

	var skipped []*Manga
	s.commit(Change{Kind: ChangeInitialized}, func() {
		present := make(map[string]struct{}, len(s.mangas))
		for _, m := range s.mangas {
			present[m.ID] = struct{}{}
		}
		for _, m := range loaded {
			if _, ok := present[m.ID]; ok {
				skipped = append(skipped, m)
				continue
			}
			present[m.ID] = struct{}{}
			s.mangas = append(s.mangas, m)
		}
	})
	for _, m := range skipped {
		s.images.Discard(pageURLs(m)...)
	}

	s.logger.Info("Catalog initialized", "records", len(records), "loaded", len(loaded)-len(skipped), "image_failures", len(failures))
	if len(failures) > 0 {
		return &HydrationError{Failures: failures}
	}
	return nil
}

// Manga operations

func (s *service) AddManga(ctx context.Context, req AddMangaRequest) (*Manga, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	manga := &Manga{
		ID:          NewID(),
		Title:       req.Title,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		Chapters:    []*Chapter{},
	}

	s.commit(Change{Kind: ChangeMangaAdded, MangaID: manga.ID}, func() {
		s.mangas = append(s.mangas, manga)
	})

	if err := s.persist(ctx, "add", manga); err != nil {
		return nil, err
	}
	s.logger.Info("Manga added", "manga_id", manga.ID, "title", manga.Title)
	return manga.Clone(), nil
}

func (s *service) UpdateManga(ctx context.Context, req UpdateMangaRequest) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	working := s.working(req.ID)
	if working == nil {
		return nil
	}
	if req.Title != nil {
		working.Title = *req.Title
	}
	if req.Description != nil {
		working.Description = *req.Description
	}
	if req.CoverURL != nil {
		working.CoverURL = *req.CoverURL
	}

	if !s.swap(Change{Kind: ChangeMangaUpdated, MangaID: working.ID}, working) {
		return nil
	}
	return s.persist(ctx, "update", working)
}

func (s *service) DeleteManga(ctx context.Context, id string) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	working := s.working(id)
	if working == nil {
		return nil
	}

	// A failed release still removes the manga: blobs left behind are
	// orphans for CollectOrphans, while keeping the record would leave it
	// pointing at the blobs that were deleted.
	keep := s.imageRefs(func(mangaID, _, _ string) bool { return mangaID == id }, nil)
	var errs []error
	for _, chapter := range working.Chapters {
		ids := withoutRefs(chapter.ImageIDs(), keep)
		if err := s.images.Release(ctx, ids); err != nil {
			s.logger.Error("Failed to release chapter images", "manga_id", id, "chapter_id", chapter.ID, "err", err)
			errs = append(errs, err)
		}
	}

	s.commit(Change{Kind: ChangeMangaDeleted, MangaID: id}, func() {
		s.mangas = slices.DeleteFunc(s.mangas, func(m *Manga) bool { return m.ID == id })
	})
	s.images.Discard(pageURLs(working)...)

	if err := s.catalog.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete manga record", "manga_id", id, "err", err)
		errs = append(errs, catalogError("delete", id, err))
	}
	if len(errs) > 0 {
		return &MangaError{MangaID: id, Op: "delete", Err: errors.Join(errs...)}
	}
	s.logger.Info("Manga deleted", "manga_id", id)
	return nil
}

// Chapter operations

func (s *service) AddChapterVersion(ctx context.Context, req AddChapterVersionRequest) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	working := s.working(req.MangaID)
	if working == nil {
		return nil
	}

	sorted := SortFiles(req.Files)
	uploaded, err := s.images.Upload(ctx, sorted)
	if err != nil {
		s.logger.Error("Failed to upload chapter images", "manga_id", req.MangaID, "number", req.Number, "err", err)
		return &MangaError{MangaID: req.MangaID, Op: "add_chapter", Err: err}
	}

	pages := make([]*Page, len(sorted))
	for i, f := range sorted {
		pages[i] = &Page{
			PageNumber: i + 1,
			URL:        uploaded[i].URL,
			ImageID:    uploaded[i].ImageID,
			FileName:   f.Name,
		}
	}

	var replaced []*Page
	var releaseErr error
	chapter := working.chapterByNumber(req.Number)
	if chapter != nil {
		// The version is replaced wholesale; the images of the previous
		// upload for this language go with it.
		replaced = chapter.Pages[req.Language]
		keep := s.imageRefs(skipVersion(working.ID, chapter.ID, req.Language), working)
		if err := s.images.Release(ctx, withoutRefs(pageImageIDs(replaced), keep)); err != nil {
			s.logger.Error("Failed to release replaced version", "manga_id", req.MangaID, "chapter_id", chapter.ID, "language", req.Language, "err", err)
			releaseErr = &MangaError{MangaID: req.MangaID, Op: "add_chapter", Err: err}
		}
		if chapter.Pages == nil {
			chapter.Pages = make(map[string][]*Page)
		}
		chapter.Pages[req.Language] = pages
	} else {
		chapter = &Chapter{
			ID:     NewID(),
			Number: req.Number,
			Pages:  map[string][]*Page{req.Language: pages},
		}
		working.Chapters = append(working.Chapters, chapter)
		sortChapters(working.Chapters)
	}

	change := Change{Kind: ChangeVersionAdded, MangaID: working.ID, ChapterID: chapter.ID, Language: req.Language}
	if !s.swap(change, working) {
		return releaseErr
	}
	s.images.Discard(versionURLs(replaced)...)

	if err := s.persist(ctx, "add_chapter", working); err != nil {
		return errors.Join(err, releaseErr)
	}
	if releaseErr != nil {
		return releaseErr
	}
	s.logger.Info("Chapter version added", "manga_id", working.ID, "chapter_id", chapter.ID, "number", req.Number, "language", req.Language, "pages", len(pages))
	return nil
}

func (s *service) UpdateChapterVersion(ctx context.Context, req UpdateChapterVersionRequest) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	working := s.working(req.MangaID)
	if working == nil {
		return nil
	}
	chapter := working.chapter(req.ChapterID)
	if chapter == nil {
		return nil
	}
	current := chapter.Pages[req.Language]

	// 1. Upload the fresh files. Nothing is released until they landed.
	var files []File
	for _, p := range req.Pages {
		if p.File != nil {
			files = append(files, *p.File)
		}
	}
	uploaded, err := s.images.Upload(ctx, files)
	if err != nil {
		s.logger.Error("Failed to upload chapter images", "manga_id", req.MangaID, "chapter_id", req.ChapterID, "err", err)
		return &MangaError{MangaID: req.MangaID, Op: "update_chapter", Err: err}
	}

	// 2. Release the images this version no longer references. Images kept
	// under a new position, or referenced by another version, survive.
	kept := make(map[string]struct{})
	for _, p := range req.Pages {
		if p.File == nil && p.ImageID != "" {
			kept[p.ImageID] = struct{}{}
		}
	}
	keep := s.imageRefs(skipVersion(working.ID, chapter.ID, req.Language), working)
	var dropped []string
	for _, id := range pageImageIDs(current) {
		if _, ok := kept[id]; ok {
			continue
		}
		if _, ok := keep[id]; ok {
			continue
		}
		dropped = append(dropped, id)
	}
	// A failed release does not stop the update: the dropped references
	// leave the record either way, and whatever was not deleted is an orphan.
	var releaseErr error
	if err := s.images.Release(ctx, dropped); err != nil {
		s.logger.Error("Failed to release dropped images", "manga_id", req.MangaID, "chapter_id", req.ChapterID, "err", err)
		releaseErr = &MangaError{MangaID: req.MangaID, Op: "update_chapter", Err: err}
	}

	// 3. Build the new version in final order.
	pages := make([]*Page, len(req.Pages))
	next := 0
	for i, p := range req.Pages {
		if p.File != nil {
			pages[i] = &Page{
				PageNumber:   i + 1,
				URL:          uploaded[next].URL,
				ImageID:      uploaded[next].ImageID,
				FileName:     p.File.Name,
				IsDoublePage: p.IsDoublePage,
			}
			next++
			continue
		}
		pages[i] = &Page{
			PageNumber:   i + 1,
			URL:          p.URL,
			ImageID:      p.ImageID,
			FileName:     p.FileName,
			IsDoublePage: p.IsDoublePage,
		}
	}

	// 4. Replace the version wholesale.
	if chapter.Pages == nil {
		chapter.Pages = make(map[string][]*Page)
	}
	chapter.Pages[req.Language] = pages

	change := Change{Kind: ChangeVersionUpdated, MangaID: working.ID, ChapterID: chapter.ID, Language: req.Language}
	if !s.swap(change, working) {
		return releaseErr
	}
	s.images.Discard(droppedURLs(current, pages)...)

	// 5. Persist.
	if err := s.persist(ctx, "update_chapter", working); err != nil {
		return errors.Join(err, releaseErr)
	}
	if releaseErr != nil {
		return releaseErr
	}
	s.logger.Info("Chapter version updated", "manga_id", working.ID, "chapter_id", chapter.ID, "language", req.Language, "pages", len(pages), "released", len(dropped), "uploaded", len(files))
	return nil
}

func (s *service) DeleteChapter(ctx context.Context, mangaID, chapterID string) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	working := s.working(mangaID)
	if working == nil {
		return nil
	}
	chapter := working.chapter(chapterID)
	if chapter == nil {
		return nil
	}

	keep := s.imageRefs(func(mID, cID, _ string) bool { return mID == mangaID && cID == chapterID }, working)
	var releaseErr error
	if err := s.images.Release(ctx, withoutRefs(chapter.ImageIDs(), keep)); err != nil {
		s.logger.Error("Failed to release chapter images", "manga_id", mangaID, "chapter_id", chapterID, "err", err)
		releaseErr = &MangaError{MangaID: mangaID, Op: "delete_chapter", Err: err}
	}

	working.Chapters = slices.DeleteFunc(working.Chapters, func(c *Chapter) bool { return c.ID == chapterID })
	if !s.swap(Change{Kind: ChangeChapterDeleted, MangaID: mangaID, ChapterID: chapterID}, working) {
		return releaseErr
	}
	s.images.Discard(pageURLs(&Manga{Chapters: []*Chapter{chapter}})...)

	if err := s.persist(ctx, "delete_chapter", working); err != nil {
		return errors.Join(err, releaseErr)
	}
	if releaseErr != nil {
		return releaseErr
	}
	s.logger.Info("Chapter deleted", "manga_id", mangaID, "chapter_id", chapterID)
	return nil
}

// Read-only projection

func (s *service) GetManga(id string) (*Manga, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mangas {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return nil, false
}

func (s *service) Mangas() []*Manga {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *service) Subscribe(o Observer) func() {
	id := s.addObserver(o)
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *service) OpenHandle(url string) ([]byte, string, bool) {
	return s.handles.Open(url)
}

func (s *service) Close() error {
	var errs []error
	errs = append(errs, s.handles.Close())
	if c, ok := s.blobs.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.catalog.(io.Closer); ok && any(s.catalog) != any(s.blobs) {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Internal helpers

// working returns a private copy of the committed manga, or nil.
func (s *service) working(id string) *Manga {
	m, ok := s.GetManga(id)
	if !ok {
		return nil
	}
	return m
}

// commit applies mutate under the state lock and delivers the change to
// every observer before the next commit can start.
func (s *service) commit(change Change, mutate func()) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	mutate()
	s.seq++
	change.Seq = s.seq
	change.Mangas = s.snapshotLocked()
	s.mu.Unlock()

	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, id := range sortedKeys(s.observers) {
		observers = append(observers, s.observers[id])
	}
	s.obsMu.RUnlock()

	for _, o := range observers {
		o.OnChange(change)
	}
}

// swap replaces the committed manga with working. It reports false when the
// manga was deleted in the meantime.
func (s *service) swap(change Change, working *Manga) bool {
	found := false
	s.commit(change, func() {
		for i, m := range s.mangas {
			if m.ID == working.ID {
				s.mangas[i] = working
				found = true
				return
			}
		}
	})
	return found
}

func (s *service) persist(ctx context.Context, op string, manga *Manga) error {
	if err := s.catalog.Put(ctx, s.record(manga)); err != nil {
		s.logger.Error("Failed to persist manga", "manga_id", manga.ID, "op", op, "err", err)
		return &MangaError{MangaID: manga.ID, Op: op, Err: catalogError("put", manga.ID, err)}
	}
	return nil
}

// record returns the durable form of a manga: display handles are process
// local and are stripped.
func (s *service) record(manga *Manga) *Manga {
	rec := manga.Clone()
	if IsHandle(rec.CoverURL) {
		rec.CoverURL = ""
	}
	for _, c := range rec.Chapters {
		for _, pages := range c.Pages {
			for _, p := range pages {
				if IsHandle(p.URL) {
					p.URL = ""
				}
			}
		}
	}
	return rec
}

func (s *service) snapshotLocked() []*Manga {
	out := make([]*Manga, len(s.mangas))
	for i, m := range s.mangas {
		out[i] = m.Clone()
	}
	return out
}

func (s *service) addObserver(o Observer) uint64 {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if s.observers == nil {
		s.observers = make(map[uint64]Observer)
	}
	s.nextObs++
	s.observers[s.nextObs] = o
	return s.nextObs
}

// imageRefs collects the image IDs referenced by the catalog, with working
// standing in for its committed version. Versions for which skip returns
// true are left out.
func (s *service) imageRefs(skip func(mangaID, chapterID, language string) bool, working *Manga) map[string]struct{} {
	s.mu.RLock()
	mangas := slices.Clone(s.mangas)
	s.mu.RUnlock()

	if working != nil {
		for i, m := range mangas {
			if m.ID == working.ID {
				mangas[i] = working
			}
		}
	}

	refs := make(map[string]struct{})
	for _, m := range mangas {
		for _, c := range m.Chapters {
			for lang, pages := range c.Pages {
				if skip(m.ID, c.ID, lang) {
					continue
				}
				for _, p := range pages {
					if p.ImageID != "" {
						refs[p.ImageID] = struct{}{}
					}
				}
			}
		}
	}
	return refs
}

func skipVersion(mangaID, chapterID, language string) func(string, string, string) bool {
	return func(mID, cID, lang string) bool {
		return mID == mangaID && cID == chapterID && lang == language
	}
}

func catalogError(op, key string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Backend: "catalog", Key: key, Op: op, Err: err}
}
