package serve

// Stream mode carries an entire track as one open-ended, ordered byte
// stream (group_id and object_id are always 0; no declared size). Rather
// than a parallel type, it reuses Object's chunk accumulation and
// fanout wholesale — a Stream is exactly an Object with that fixed
// header, following the same reuse the teacher's GOP-cache writer gives
// its video and audio paths instead of duplicating them.

// NewStream creates the single Object that backs a track's whole-track
// Stream mode.
func NewStream() (*ObjectWriter, *ObjectReader) {
	return NewObject(ObjectHeader{GroupID: 0, ObjectID: 0, Size: nil})
}

// StreamWriter is the writer half of a Stream-mode track. It is a type
// alias, so it is the same type as ObjectWriter; the name only marks
// Stream-mode use.
type StreamWriter = ObjectWriter

// StreamReader is the reader half of a Stream-mode track.
type StreamReader = ObjectReader
