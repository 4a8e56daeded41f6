package simplemanga

import (
	"log/slog"
	"sync/atomic"
)

// ChangeKind identifies the mutation that produced a Change.
type ChangeKind string

// Change kinds
const (
	ChangeInitialized    ChangeKind = "initialized"
	ChangeMangaAdded     ChangeKind = "manga_added"
	ChangeMangaUpdated   ChangeKind = "manga_updated"
	ChangeMangaDeleted   ChangeKind = "manga_deleted"
	ChangeVersionAdded   ChangeKind = "version_added"
	ChangeVersionUpdated ChangeKind = "version_updated"
	ChangeChapterDeleted ChangeKind = "chapter_deleted"
)

// Change describes one committed mutation of the in-memory catalog.
//
// Seq increases by one per commit. Mangas is a deep copy of the full catalog
// as of this commit.
type Change struct {
	Seq       uint64
	Kind      ChangeKind
	MangaID   string
	ChapterID string
	Language  string
	Mangas    []*Manga
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Change)

// OnChange calls f(change).
func (f ObserverFunc) OnChange(change Change) {
	f(change)
}

// NoopObserver discards changes.
type NoopObserver struct{}

func (NoopObserver) OnChange(Change) {}

// ChannelObserver forwards changes to a channel without blocking the
// committing operation. Changes that do not fit in the channel are dropped and
// counted; the receiver checks Dropped and resynchronizes from Mangas.
type ChannelObserver struct {
	ch      chan<- Change
	dropped atomic.Uint64
}

// NewChannelObserver creates a channel-based observer.
func NewChannelObserver(ch chan<- Change) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnChange sends the change to the channel (non-blocking if full).
func (o *ChannelObserver) OnChange(change Change) {
	select {
	case o.ch <- change:
	default:
		o.dropped.Add(1)
	}
}

// Dropped returns the number of changes dropped since the previous call.
func (o *ChannelObserver) Dropped() uint64 {
	return o.dropped.Swap(0)
}

// LogObserver logs every change.
type LogObserver struct {
	Logger *slog.Logger
}

// OnChange logs the change at debug level.
func (o LogObserver) OnChange(change Change) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Catalog changed",
		"seq", change.Seq,
		"kind", string(change.Kind),
		"manga_id", change.MangaID,
		"chapter_id", change.ChapterID,
		"language", change.Language,
		"mangas", len(change.Mangas))
}
