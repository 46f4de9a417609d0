package wire

import (
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Data stream types (draft-ietf-moq-transport-15 §9). A unidirectional
// data stream carries exactly one of these framings for its lifetime.
const (
	// StreamTypeTrack carries every group of a track on a single stream,
	// in strict group/object order.
	StreamTypeTrack uint64 = 0x02
	// StreamTypeGroup carries exactly one group per stream.
	StreamTypeGroup uint64 = 0x04
	// StreamTypeSubgroup carries one subgroup (here: one group) per stream
	// with an explicit subgroup ID, matching the framing the teacher's
	// writer already produces.
	StreamTypeSubgroup uint64 = 0x0d
)

// ObjectStatus values used when an object carries no payload (e.g. to
// signal that a group ended, or that an object was intentionally skipped).
const (
	ObjectStatusNormal        uint64 = 0x0
	ObjectStatusDoesNotExist  uint64 = 0x1
	ObjectStatusGroupEnd      uint64 = 0x3
	ObjectStatusTrackEnd      uint64 = 0x4
)

// StreamHeader is the fixed preamble written once at the start of a
// unidirectional data stream, before any objects.
type StreamHeader struct {
	StreamType uint64
	TrackAlias uint64
	GroupID    uint64 // present for Group/Subgroup stream types
	SubgroupID uint64 // present for Subgroup stream type only
	Priority   byte
}

// WriteStreamHeader encodes and writes h to w.
func WriteStreamHeader(w io.Writer, h StreamHeader) error {
	var buf []byte
	buf = quicvarint.Append(buf, h.StreamType)
	buf = quicvarint.Append(buf, h.TrackAlias)

	switch h.StreamType {
	case StreamTypeGroup:
		buf = quicvarint.Append(buf, h.GroupID)
		buf = append(buf, h.Priority)
	case StreamTypeSubgroup:
		buf = quicvarint.Append(buf, h.GroupID)
		buf = quicvarint.Append(buf, h.SubgroupID)
		buf = append(buf, h.Priority)
	case StreamTypeTrack:
		buf = append(buf, h.Priority)
	default:
		return fmt.Errorf("wire: unknown stream type 0x%x", h.StreamType)
	}

	_, err := w.Write(buf)
	return err
}

// ReadStreamHeader reads and decodes a StreamHeader from r.
func ReadStreamHeader(r io.ByteReader) (StreamHeader, error) {
	var h StreamHeader

	streamType, err := quicvarint.Read(r)
	if err != nil {
		return h, &ParseError{Field: "stream_type", Err: err}
	}
	h.StreamType = streamType

	h.TrackAlias, err = quicvarint.Read(r)
	if err != nil {
		return h, &ParseError{Field: "track_alias", Err: err}
	}

	switch streamType {
	case StreamTypeGroup:
		h.GroupID, err = quicvarint.Read(r)
		if err != nil {
			return h, &ParseError{Field: "group_id", Err: err}
		}
		h.Priority, err = r.ReadByte()
		if err != nil {
			return h, &ParseError{Field: "priority", Err: err}
		}
	case StreamTypeSubgroup:
		h.GroupID, err = quicvarint.Read(r)
		if err != nil {
			return h, &ParseError{Field: "group_id", Err: err}
		}
		h.SubgroupID, err = quicvarint.Read(r)
		if err != nil {
			return h, &ParseError{Field: "subgroup_id", Err: err}
		}
		h.Priority, err = r.ReadByte()
		if err != nil {
			return h, &ParseError{Field: "priority", Err: err}
		}
	case StreamTypeTrack:
		h.Priority, err = r.ReadByte()
		if err != nil {
			return h, &ParseError{Field: "priority", Err: err}
		}
	default:
		return h, fmt.Errorf("wire: unknown stream type 0x%x", streamType)
	}

	return h, nil
}

// ObjectHeader precedes each object's payload within a data stream.
// GroupID is only present on Track-mode streams, where it isn't implied
// by the stream header.
type ObjectHeader struct {
	GroupID  uint64 // only encoded/decoded for StreamTypeTrack
	ObjectID uint64
	Status   uint64
	Payload  []byte
}

// WriteObject encodes and writes an object header plus payload for the
// given stream type.
func WriteObject(w io.Writer, streamType uint64, obj ObjectHeader) (int64, error) {
	var buf []byte
	if streamType == StreamTypeTrack {
		buf = quicvarint.Append(buf, obj.GroupID)
	}
	buf = quicvarint.Append(buf, obj.ObjectID)
	buf = quicvarint.Append(buf, uint64(len(obj.Payload)))
	if len(obj.Payload) == 0 {
		buf = quicvarint.Append(buf, obj.Status)
	}
	buf = append(buf, obj.Payload...)

	n, err := w.Write(buf)
	return int64(n), err
}

// ReadObject reads and decodes one object header plus payload for the
// given stream type. The returned payload aliases no internal buffer
// state and is safe to retain.
func ReadObject(r bufReaderIO, streamType uint64) (ObjectHeader, error) {
	var obj ObjectHeader
	var err error

	if streamType == StreamTypeTrack {
		obj.GroupID, err = quicvarint.Read(r)
		if err != nil {
			return obj, &ParseError{Field: "group_id", Err: err}
		}
	}

	obj.ObjectID, err = quicvarint.Read(r)
	if err != nil {
		return obj, &ParseError{Field: "object_id", Err: err}
	}

	length, err := quicvarint.Read(r)
	if err != nil {
		return obj, &ParseError{Field: "length", Err: err}
	}

	if length == 0 {
		obj.Status, err = quicvarint.Read(r)
		if err != nil {
			return obj, &ParseError{Field: "status", Err: err}
		}
		return obj, nil
	}

	obj.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, obj.Payload); err != nil {
		return obj, &ParseError{Field: "payload", Err: err}
	}
	return obj, nil
}

// Datagram is a single unreliable MoQ object sent as one QUIC datagram.
type Datagram struct {
	TrackAlias uint64
	GroupID    uint64
	ObjectID   uint64
	Priority   byte
	Payload    []byte
}

// EncodeDatagram serializes d for transmission via SendDatagram.
func EncodeDatagram(d Datagram) []byte {
	var buf []byte
	buf = quicvarint.Append(buf, d.TrackAlias)
	buf = quicvarint.Append(buf, d.GroupID)
	buf = quicvarint.Append(buf, d.ObjectID)
	buf = append(buf, d.Priority)
	buf = quicvarint.Append(buf, uint64(len(d.Payload)))
	buf = append(buf, d.Payload...)
	return buf
}

// DecodeDatagram parses a single QUIC datagram payload into a Datagram.
func DecodeDatagram(data []byte) (Datagram, error) {
	r := newBufReader(data)
	var d Datagram
	var err error

	d.TrackAlias, err = r.readVarint()
	if err != nil {
		return d, &ParseError{Field: "track_alias", Err: err}
	}
	d.GroupID, err = r.readVarint()
	if err != nil {
		return d, &ParseError{Field: "group_id", Err: err}
	}
	d.ObjectID, err = r.readVarint()
	if err != nil {
		return d, &ParseError{Field: "object_id", Err: err}
	}
	d.Priority, err = r.readByte()
	if err != nil {
		return d, &ParseError{Field: "priority", Err: err}
	}
	payload, err := r.readVarIntBytes()
	if err != nil {
		return d, &ParseError{Field: "payload", Err: err}
	}
	d.Payload = payload
	return d, nil
}

// bufReaderIO is the minimal reader interface ReadObject needs: a
// combined io.Reader/io.ByteReader over a buffered data stream, matching
// what bufio.Reader (used by the session's per-stream dispatch loop)
// already provides.
type bufReaderIO interface {
	io.Reader
	io.ByteReader
}
