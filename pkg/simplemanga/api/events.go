package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

// eventBuffer is the number of changes a slow event stream may fall behind
// before it is resynchronized with a snapshot.
const eventBuffer = 16

// snapshotKind marks events carrying the current catalog rather than a commit
const snapshotKind simplemanga.ChangeKind = "snapshot"

// ChangeEvent is the payload of one server-sent catalog event
type ChangeEvent struct {
	Seq       uint64               `json:"seq"`
	Kind      string               `json:"kind"`
	MangaID   string               `json:"manga_id,omitempty"`
	ChapterID string               `json:"chapter_id,omitempty"`
	Language  string               `json:"language,omitempty"`
	Mangas    []*simplemanga.Manga `json:"mangas"`
}

// StreamEvents streams every committed catalog change as server-sent events
// until the client disconnects. The first event is a snapshot of the current
// catalog with seq 0. A client that falls more than eventBuffer changes behind
// misses them and receives a fresh snapshot instead.
func (h *MangaHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	changes := make(chan simplemanga.Change, eventBuffer)
	observer := simplemanga.NewChannelObserver(changes)
	unsubscribe := h.service.Subscribe(observer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := h.writeEvent(w, h.snapshot()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case change := <-changes:
			if n := observer.Dropped(); n > 0 {
				h.logger.Warn("Event stream fell behind, resending snapshot", "request_id", RequestID(r.Context()), "dropped", n)
				for len(changes) > 0 {
					<-changes
				}
				change = h.snapshot()
			}
			if err := h.writeEvent(w, change); err != nil {
				h.logger.Debug("Event stream closed", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *MangaHandler) snapshot() simplemanga.Change {
	return simplemanga.Change{Kind: snapshotKind, Mangas: h.service.Mangas()}
}

func (h *MangaHandler) writeEvent(w http.ResponseWriter, change simplemanga.Change) error {
	// Change snapshots are shared between observers.
	mangas := make([]*simplemanga.Manga, len(change.Mangas))
	for i, m := range change.Mangas {
		mangas[i] = m.Clone()
		h.exposeHandles(mangas[i])
	}
	data, err := json.Marshal(ChangeEvent{
		Seq:       change.Seq,
		Kind:      string(change.Kind),
		MangaID:   change.MangaID,
		ChapterID: change.ChapterID,
		Language:  change.Language,
		Mangas:    mangas,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", change.Seq, change.Kind, data)
	return err
}
