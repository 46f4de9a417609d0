// Package wire implements the wire-protocol codec for MoQ Transport
// (draft-ietf-moq-transport-15): the QUIC varint primitive, control
// message parsing and serialization (setup, announce, subscribe, and
// terminal messages), and the per-stream/datagram data header codec
// used to discriminate Track, Group, and Subgroup data streams and
// datagrams. There is no stream type that carries a single object.
//
// This package contains no session or relay logic; those higher-level
// concerns live in [github.com/zsiec/moqt/internal/session] and
// [github.com/zsiec/moqt/internal/relay].
package wire
