package simplemanga_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

func TestChannelObserver(t *testing.T) {
	ch := make(chan simplemanga.Change, 1)
	o := simplemanga.NewChannelObserver(ch)

	o.OnChange(simplemanga.Change{Seq: 1})
	assert.Equal(t, uint64(1), (<-ch).Seq)
	assert.Zero(t, o.Dropped())

	// A full buffer drops instead of blocking.
	ch <- simplemanga.Change{Seq: 2}
	finished := make(chan struct{})
	go func() {
		o.OnChange(simplemanga.Change{Seq: 3})
		o.OnChange(simplemanga.Change{Seq: 4})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("OnChange blocked on a full channel")
	}
	assert.Equal(t, uint64(2), (<-ch).Seq)
	assert.Equal(t, uint64(2), o.Dropped())
	assert.Zero(t, o.Dropped(), "Dropped resets the count")
}

func TestChannelObserverWithService(t *testing.T) {
	ch := make(chan simplemanga.Change, 4)
	f := newFixture(t, simplemanga.WithObserver(simplemanga.NewChannelObserver(ch)))

	m := f.addManga(t, "A")
	change := <-ch
	assert.Equal(t, simplemanga.ChangeMangaAdded, change.Kind)
	assert.Equal(t, m.ID, change.MangaID)
	require.Len(t, change.Mangas, 1)
}

func TestChannelObserverStalledReceiver(t *testing.T) {
	ch := make(chan simplemanga.Change, 16)
	o := simplemanga.NewChannelObserver(ch)
	f := newFixture(t, simplemanga.WithObserver(o))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 20; i++ {
			_, err := f.svc.AddManga(context.Background(), simplemanga.AddMangaRequest{Title: "Stalled"})
			assert.NoError(t, err)
		}
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("a receiver that never reads blocked the service")
	}

	assert.Len(t, ch, 16)
	assert.Equal(t, uint64(4), o.Dropped())
	assert.Len(t, f.svc.Mangas(), 20)
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	simplemanga.LogObserver{Logger: logger}.OnChange(simplemanga.Change{
		Seq:     7,
		Kind:    simplemanga.ChangeVersionAdded,
		MangaID: "m1",
	})

	assert.Contains(t, buf.String(), "seq=7")
	assert.Contains(t, buf.String(), "kind=version_added")
	assert.Contains(t, buf.String(), "manga_id=m1")
}

func TestNoopObserver(t *testing.T) {
	assert.NotPanics(t, func() {
		simplemanga.NoopObserver{}.OnChange(simplemanga.Change{})
	})
}
