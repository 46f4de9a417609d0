package serve

import (
	"context"
	"sync"

	"github.com/zsiec/moqt/internal/wire"
)

// trackEntry pairs a track's reader with a pending flag: a track is
// pending until its publisher actually creates it, so that a subscriber
// asking for a not-yet-announced track can park instead of failing.
type trackEntry struct {
	reader  *TrackReader
	writer  *TrackWriter
	ready   chan struct{} // closed once writer/reader are installed
}

// Broadcast is a namespace's collection of named tracks, published by
// one producer and readable by any number of subscribers. Tracks may be
// requested before they exist; the request is queued until a matching
// CreateTrack arrives or the broadcast closes.
type Broadcast struct {
	Namespace []string

	mu     sync.Mutex
	tracks map[string]*trackEntry
	closed bool
}

// NewBroadcast creates an empty broadcast for namespace ns.
func NewBroadcast(ns []string) (*BroadcastWriter, *BroadcastReader) {
	b := &Broadcast{Namespace: ns, tracks: make(map[string]*trackEntry)}
	return &BroadcastWriter{bcast: b}, &BroadcastReader{bcast: b}
}

func (b *Broadcast) entry(name string) *trackEntry {
	e, ok := b.tracks[name]
	if !ok {
		e = &trackEntry{ready: make(chan struct{})}
		b.tracks[name] = e
	}
	return e
}

// BroadcastWriter is the publisher side: it installs tracks as they
// become available.
type BroadcastWriter struct {
	bcast *Broadcast
}

// CreateTrack installs a new track under name, returning its writer.
// Fails with KindDuplicate if the name is already installed, and with
// KindDone if the broadcast has closed.
func (w *BroadcastWriter) CreateTrack(name string) (*TrackWriter, error) {
	b := w.bcast
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, wire.ErrDone
	}
	e := b.entry(name)
	if e.writer != nil {
		return nil, wire.NewError(wire.KindDuplicate, "track already exists: "+name)
	}
	tw, tr := NewTrack()
	e.writer = tw
	e.reader = tr
	close(e.ready)
	return tw, nil
}

// Close terminates the broadcast and every track within it that the
// publisher never closed individually.
func (w *BroadcastWriter) Close(err error) {
	b := w.bcast
	b.mu.Lock()
	b.closed = true
	entries := make([]*trackEntry, 0, len(b.tracks))
	for _, e := range b.tracks {
		entries = append(entries, e)
	}
	b.mu.Unlock()

	for _, e := range entries {
		select {
		case <-e.ready:
			if e.writer != nil {
				e.writer.Close(err)
			}
		default:
			close(e.ready) // wake anyone waiting on a track that never arrived
		}
	}
}

// BroadcastReader is the subscriber side: it requests tracks by name,
// waiting if necessary for the publisher to create them.
type BroadcastReader struct {
	bcast *Broadcast
}

// Namespace returns the broadcast's namespace tuple.
func (r *BroadcastReader) Namespace() []string { return r.bcast.Namespace }

// Track returns a reader for name, blocking until the publisher creates
// it or the broadcast closes without ever doing so (KindNotFound).
func (r *BroadcastReader) Track(ctx context.Context, name string) (*TrackReader, error) {
	b := r.bcast
	b.mu.Lock()
	if b.closed {
		if e, ok := b.tracks[name]; ok && e.reader != nil {
			tr := e.reader.Clone()
			b.mu.Unlock()
			return tr, nil
		}
		b.mu.Unlock()
		return nil, wire.NewError(wire.KindNotFound, "track never published: "+name)
	}
	e := b.entry(name)
	b.mu.Unlock()

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.reader == nil {
		return nil, wire.NewError(wire.KindNotFound, "track never published: "+name)
	}
	return e.reader.Clone(), nil
}
