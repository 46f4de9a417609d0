package serve

import (
	"context"

	"github.com/zsiec/moqt/internal/watch"
	"github.com/zsiec/moqt/internal/wire"
)

// ObjectHeader is the static, immutable identity of an object: which
// group and position within it, its relative priority, and (optionally)
// its declared total size.
type ObjectHeader struct {
	GroupID  uint64
	ObjectID uint64
	Priority byte
	Size     *uint64 // nil if the size was not declared up front
}

type objectState struct {
	chunks [][]byte
	sent   uint64 // bytes already appended, for remain accounting
	closed error  // nil while open; a *wire.Error once closed
}

// Object is a byte payload accumulated as a sequence of chunks, split
// into a writer (appends chunks, eventually closes) and a freely
// cloneable reader (consumes chunks in arrival order from its own
// cursor). A declared Size that isn't fully written by the time the
// writer closes yields a KindSize error instead of KindDone.
type Object struct {
	Header ObjectHeader
	cell   *watch.Cell[objectState]
}

// NewObject creates a fresh Object in the Init-writer state with one
// live writer.
func NewObject(h ObjectHeader) (*ObjectWriter, *ObjectReader) {
	o := &Object{Header: h, cell: watch.New(objectState{})}
	return &ObjectWriter{obj: o}, &ObjectReader{obj: o}
}

// ObjectWriter appends chunks to an Object's payload, in order.
type ObjectWriter struct {
	obj *Object
}

// Write appends a chunk of payload. It fails with KindDone if the
// object has already been closed.
func (w *ObjectWriter) Write(chunk []byte) error {
	var writeErr error
	ok := w.obj.cell.Write(func(s *objectState) {
		if w.obj.Header.Size != nil && s.sent+uint64(len(chunk)) > *w.obj.Header.Size {
			writeErr = wire.NewError(wire.KindSize, "write exceeds declared size")
			return
		}
		s.chunks = append(s.chunks, chunk)
		s.sent += uint64(len(chunk))
	})
	if !ok {
		return wire.ErrDone
	}
	return writeErr
}

// Close terminates the object. If err is nil and the declared size
// (when present) was not fully written, the object closes with
// KindSize instead of the benign Done marker; a size of zero with no
// chunks written closes cleanly.
func (w *ObjectWriter) Close(err error) {
	w.obj.cell.Write(func(s *objectState) {
		if s.closed != nil {
			return
		}
		if err != nil {
			s.closed = err
			return
		}
		if w.obj.Header.Size != nil && s.sent != *w.obj.Header.Size {
			s.closed = wire.NewError(wire.KindSize, "closed before declared size was written")
			return
		}
		s.closed = wire.ErrDone
	})
	w.obj.cell.DropWriter()
}

// ObjectReader reads an Object's chunks in order from its own cursor.
// Clones share the underlying Object but diverge from the clone point.
type ObjectReader struct {
	obj    *Object
	cursor int
}

// Header returns the object's static identity.
func (r *ObjectReader) Header() ObjectHeader { return r.obj.Header }

// Clone returns an independent reader positioned at r's current cursor.
func (r *ObjectReader) Clone() *ObjectReader {
	return &ObjectReader{obj: r.obj, cursor: r.cursor}
}

// Next blocks until the next chunk is available, the object closes
// normally (returns nil, nil), or closes with an error.
func (r *ObjectReader) Next(ctx context.Context) ([]byte, error) {
	for {
		snap := r.obj.cell.Read()
		if r.cursor < len(snap.Value.chunks) {
			chunk := snap.Value.chunks[r.cursor]
			r.cursor++
			return chunk, nil
		}
		if snap.Value.closed != nil {
			if wire.IsDone(snap.Value.closed) {
				return nil, nil
			}
			return nil, snap.Value.closed
		}
		select {
		case <-snap.Notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
