package serve

import (
	"context"

	"github.com/zsiec/moqt/internal/watch"
	"github.com/zsiec/moqt/internal/wire"
)

// TrackMode identifies which of the four delivery shapes a track has
// committed to. A track starts in ModeInit and may move to exactly one
// of the other modes; once committed, every later write must stay in
// that same family, or it is a protocol error (KindMode).
type TrackMode int

const (
	ModeInit TrackMode = iota
	ModeStream
	ModeGroup
	ModeObject
	ModeDatagram
)

func (m TrackMode) String() string {
	switch m {
	case ModeInit:
		return "init"
	case ModeStream:
		return "stream"
	case ModeGroup:
		return "group"
	case ModeObject:
		return "object"
	case ModeDatagram:
		return "datagram"
	default:
		return "unknown"
	}
}

// DatagramInfo is the most recently published datagram-mode object.
type DatagramInfo struct {
	GroupID  uint64
	ObjectID uint64
	Priority byte
	Payload  []byte
}

// trackState is the track's mode cache. Group and Object modes share the
// same single-latest-group retention: a newly installed group entirely
// replaces the old one (latest-group-wins), and epoch counts
// installations so readers can tell a stale clone from the current one.
// This is a deliberate simplification of a multi-group ring buffer down
// to a one-slot cache, since nothing downstream needs to resume a group
// that a strictly newer one has already superseded.
type trackState struct {
	mode TrackMode

	stream *ObjectReader

	group      *GroupReader
	groupID    uint64
	hasGroup   bool
	groupEpoch uint64

	datagram      *DatagramInfo
	datagramEpoch uint64

	closed error
}

// Track is a named cache of a publisher's output, read by zero or more
// independent subscribers.
type Track struct {
	cell *watch.Cell[trackState]
}

// NewTrack creates an empty track in ModeInit.
func NewTrack() (*TrackWriter, *TrackReader) {
	t := &Track{cell: watch.New(trackState{mode: ModeInit})}
	return &TrackWriter{track: t}, &TrackReader{track: t}
}

// TrackWriter is the single producer side of a Track. All of its methods
// are safe to call from one goroutine at a time; the session layer
// serializes calls per inbound stream/datagram.
type TrackWriter struct {
	track      *Track
	curGroupW  *GroupWriter
	streamW    *StreamWriter
}

// modeErr reports an attempt to use a track in a family other than the
// one it already committed to.
func modeErr(committed, attempted TrackMode) error {
	return wire.NewError(wire.KindMode, "track committed to "+committed.String()+" mode, attempted "+attempted.String())
}

// CreateStream commits the track to whole-track Stream mode (or returns
// the existing stream writer if already committed to it) and returns the
// writer for the track's single open-ended object.
func (w *TrackWriter) CreateStream() (*StreamWriter, error) {
	var result *StreamWriter
	var opErr error
	ok := w.track.cell.Write(func(s *trackState) {
		switch s.mode {
		case ModeInit:
			sw, sr := NewStream()
			s.mode = ModeStream
			s.stream = sr
			w.streamW = sw
			result = sw
		case ModeStream:
			result = w.streamW
		default:
			opErr = modeErr(s.mode, ModeStream)
		}
	})
	if !ok {
		return nil, wire.ErrDone
	}
	return result, opErr
}

// CreateGroup commits the track to Group mode (or continues it) and
// installs a new group at id. Calling with an id equal to the current
// latest is a duplicate (KindDuplicate); calling with an id older than
// the current latest is silently dropped (nil, nil) since a newer group
// has already superseded it.
func (w *TrackWriter) CreateGroup(id uint64, priority byte) (*GroupWriter, error) {
	var result *GroupWriter
	var opErr error
	var oldWriter *GroupWriter
	ok := w.track.cell.Write(func(s *trackState) {
		if s.mode != ModeInit && s.mode != ModeGroup {
			opErr = modeErr(s.mode, ModeGroup)
			return
		}
		if s.hasGroup {
			if id == s.groupID {
				opErr = wire.NewError(wire.KindDuplicate, "group already exists")
				return
			}
			if id < s.groupID {
				return // silently dropped: stale
			}
			oldWriter = w.curGroupW
		}
		gw, gr := NewGroup(id, priority)
		s.mode = ModeGroup
		s.group = gr
		s.groupID = id
		s.hasGroup = true
		s.groupEpoch++
		w.curGroupW = gw
		result = gw
	})
	if !ok {
		return nil, wire.ErrDone
	}
	if oldWriter != nil {
		oldWriter.Close(nil)
	}
	return result, opErr
}

// WriteObject publishes a single object-mode object. Object mode shares
// Group mode's latest-group-wins cache: a new, larger group id replaces
// the prior group outright; an equal or smaller one is folded into (or
// dropped from) the current group.
func (w *TrackWriter) WriteObject(groupID uint64, priority byte, payload []byte) error {
	var opErr error
	var oldWriter *GroupWriter
	var objWriter *ObjectWriter
	ok := w.track.cell.Write(func(s *trackState) {
		if s.mode != ModeInit && s.mode != ModeObject {
			opErr = modeErr(s.mode, ModeObject)
			return
		}
		if s.hasGroup && groupID < s.groupID {
			return // stale, drop
		}
		if !s.hasGroup || groupID > s.groupID {
			if s.hasGroup {
				oldWriter = w.curGroupW
			}
			gw, gr := NewGroup(groupID, priority)
			s.mode = ModeObject
			s.group = gr
			s.groupID = groupID
			s.hasGroup = true
			s.groupEpoch++
			w.curGroupW = gw
		}
		objWriter = w.curGroupW
	})
	if !ok {
		return wire.ErrDone
	}
	if opErr != nil {
		return opErr
	}
	if oldWriter != nil {
		oldWriter.Close(nil)
	}
	if objWriter == nil {
		return nil
	}
	ow, err := objWriter.CreateObject(sizePtr(uint64(len(payload))))
	if err != nil {
		return err
	}
	if err := ow.Write(payload); err != nil {
		return err
	}
	ow.Close(nil)
	return nil
}

func sizePtr(v uint64) *uint64 { return &v }

// WriteDatagram commits the track to Datagram mode (or continues it) and
// overwrites the latest published datagram.
func (w *TrackWriter) WriteDatagram(info DatagramInfo) error {
	var opErr error
	ok := w.track.cell.Write(func(s *trackState) {
		if s.mode != ModeInit && s.mode != ModeDatagram {
			opErr = modeErr(s.mode, ModeDatagram)
			return
		}
		s.mode = ModeDatagram
		s.datagram = &info
		s.datagramEpoch++
	})
	if !ok {
		return wire.ErrDone
	}
	return opErr
}

// Close terminates the track. Every reader's Next eventually observes
// Done (or err, if non-nil).
func (w *TrackWriter) Close(err error) {
	if w.streamW != nil {
		w.streamW.Close(err)
	}
	if w.curGroupW != nil {
		w.curGroupW.Close(err)
	}
	w.track.cell.Write(func(s *trackState) { s.closed = err })
	w.track.cell.DropWriter()
}

// TrackEvent is one step of a TrackReader's replay of a track's mode
// cache: the mode the track is (now) committed to, plus whichever
// payload is new for that mode.
type TrackEvent struct {
	Mode     TrackMode
	Stream   *ObjectReader
	Group    *GroupReader
	Datagram *DatagramInfo
}

// TrackReader independently replays a Track's mode cache from its own
// cursor. Clones diverge from the clone point.
type TrackReader struct {
	track *Track

	seenMode      TrackMode
	groupEpoch    uint64
	datagramEpoch uint64
}

// Clone returns an independent reader positioned at r's current cursor,
// counted as an additional live reader of the underlying track (see
// Close/OnZeroReaders).
func (r *TrackReader) Clone() *TrackReader {
	r.track.cell.AddReader()
	return &TrackReader{
		track:         r.track,
		seenMode:      r.seenMode,
		groupEpoch:    r.groupEpoch,
		datagramEpoch: r.datagramEpoch,
	}
}

// Close releases this reader's hold on the track. Only readers obtained
// from Clone are counted (the reader NewTrack returns is not), so once
// every Clone of the Track has been Closed, a callback registered via
// OnZeroReaders fires, letting an owner that exists solely to feed this
// track (e.g. a relay's dial-out subscription) tear itself down.
func (r *TrackReader) Close() {
	r.track.cell.DropReader()
}

// OnZeroReaders registers fn to run the first time every reader
// derived from this Track has been Closed.
func (r *TrackReader) OnZeroReaders(fn func()) {
	r.track.cell.OnZeroReaders(fn)
}

// Next blocks until the track's mode is established (first call), a new
// group/datagram supersedes the last one observed, the track ends
// cleanly (returns nil, nil), or it closes with an error.
func (r *TrackReader) Next(ctx context.Context) (*TrackEvent, error) {
	for {
		snap := r.track.cell.Read()
		s := snap.Value

		if r.seenMode == ModeInit && s.mode != ModeInit {
			r.seenMode = s.mode
			switch s.mode {
			case ModeStream:
				return &TrackEvent{Mode: ModeStream, Stream: s.stream.Clone()}, nil
			case ModeGroup, ModeObject:
				r.groupEpoch = s.groupEpoch
				return &TrackEvent{Mode: s.mode, Group: s.group.Clone()}, nil
			case ModeDatagram:
				r.datagramEpoch = s.datagramEpoch
				d := *s.datagram
				return &TrackEvent{Mode: ModeDatagram, Datagram: &d}, nil
			}
		}

		if r.seenMode != ModeInit {
			switch r.seenMode {
			case ModeStream:
				// Stream mode has no further transitions; the caller
				// drains the single object directly via its reader.
			case ModeGroup, ModeObject:
				if s.groupEpoch != r.groupEpoch {
					r.groupEpoch = s.groupEpoch
					return &TrackEvent{Mode: r.seenMode, Group: s.group.Clone()}, nil
				}
			case ModeDatagram:
				if s.datagramEpoch != r.datagramEpoch {
					r.datagramEpoch = s.datagramEpoch
					d := *s.datagram
					return &TrackEvent{Mode: ModeDatagram, Datagram: &d}, nil
				}
			}
		}

		if snap.Closed {
			if s.closed == nil || wire.IsDone(s.closed) {
				return nil, nil
			}
			return nil, s.closed
		}

		select {
		case <-snap.Notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
