package transport

import (
	"context"
	"net"
)

// Stream is a bidirectional QUIC stream, as returned by AcceptStream,
// OpenStream, and OpenStreamSync.
type Stream interface {
	ReceiveStream
	SendStream
}

// ReceiveStream is the read half of a stream.
type ReceiveStream interface {
	Read(p []byte) (int, error)
	CancelRead(code uint64)
}

// SendStream is the write half of a stream.
type SendStream interface {
	Write(p []byte) (int, error)
	Close() error
	CancelWrite(code uint64)
}

// Session abstracts over a WebTransport session and a raw QUIC
// connection: the two transports the server accepts on the same
// endpoint, distinguished by ALPN (h3/webtransport vs. the dedicated
// moqf ALPN). internal/session drives the MoQ protocol purely in terms
// of this interface.
type Session interface {
	Context() context.Context

	AcceptStream(ctx context.Context) (Stream, error)
	AcceptUniStream(ctx context.Context) (ReceiveStream, error)
	OpenStream() (Stream, error)
	OpenStreamSync(ctx context.Context) (Stream, error)
	OpenUniStream() (SendStream, error)
	OpenUniStreamSync(ctx context.Context) (SendStream, error)

	SendDatagram(b []byte) error
	ReceiveDatagram(ctx context.Context) ([]byte, error)

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// CloseWithError tears down the session, surfacing code and reason
	// to the peer (the WebTransport session close code, or the QUIC
	// connection close code on raw QUIC).
	CloseWithError(code uint64, reason string) error
}
