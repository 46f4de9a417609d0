package serve

import (
	"context"
	"sync"

	"github.com/zsiec/moqt/internal/wire"
)

// Group is a sequence of Objects sharing a group ID, delivered in
// monotonically increasing object-ID order. A Group is itself a single
// write-once, multi-read handle: CreateObject is the only way to add to
// it, and it is mutually exclusive per object ID (the spec never lets
// two writers race on the same object within a group).
type Group struct {
	ID       uint64
	Priority byte

	mu      sync.Mutex
	objects []*ObjectReader
	nextID  uint64
	closed  error
	waiters []chan struct{}
}

// NewGroup creates an empty group ready to accept objects in order.
func NewGroup(id uint64, priority byte) (*GroupWriter, *GroupReader) {
	g := &Group{ID: id, Priority: priority}
	return &GroupWriter{group: g}, &GroupReader{group: g}
}

// GroupWriter appends objects to a Group in increasing object-ID order.
type GroupWriter struct {
	group *Group
}

// CreateObject opens a new object at the next sequential object ID.
// It fails with KindDone if the group has already been closed.
func (w *GroupWriter) CreateObject(size *uint64) (*ObjectWriter, error) {
	g := w.group
	g.mu.Lock()
	if g.closed != nil {
		g.mu.Unlock()
		return nil, wire.ErrDone
	}
	id := g.nextID
	g.nextID++
	ow, or := NewObject(ObjectHeader{GroupID: g.ID, ObjectID: id, Priority: g.Priority, Size: size})
	g.objects = append(g.objects, or)
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	return ow, nil
}

// Close terminates the group. A nil err marks a clean end; otherwise
// pending readers observe err.
func (w *GroupWriter) Close(err error) {
	g := w.group
	g.mu.Lock()
	if g.closed != nil {
		g.mu.Unlock()
		return
	}
	if err == nil {
		err = wire.ErrDone
	}
	g.closed = err
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// GroupReader reads a Group's objects in order from its own cursor.
type GroupReader struct {
	group  *Group
	cursor int
}

// ID returns the group's identity.
func (r *GroupReader) ID() uint64 { return r.group.ID }

// Clone returns an independent reader positioned at r's current cursor.
func (r *GroupReader) Clone() *GroupReader {
	return &GroupReader{group: r.group, cursor: r.cursor}
}

// Next blocks until the next object is available, the group ends
// cleanly (returns nil, nil), or closes with an error.
func (r *GroupReader) Next(ctx context.Context) (*ObjectReader, error) {
	g := r.group
	for {
		g.mu.Lock()
		if r.cursor < len(g.objects) {
			obj := g.objects[r.cursor]
			r.cursor++
			g.mu.Unlock()
			return obj, nil
		}
		if g.closed != nil {
			err := g.closed
			g.mu.Unlock()
			if wire.IsDone(err) {
				return nil, nil
			}
			return nil, err
		}
		ch := make(chan struct{})
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
