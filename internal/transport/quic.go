package transport

import (
	"context"
	"net"

	"github.com/quic-go/quic-go"
)

// quicSession adapts a raw quic.Connection (the dedicated moqf ALPN
// path, bypassing HTTP/3 and WebTransport entirely) to Session.
type quicSession struct {
	c *quic.Conn
}

// NewQUICSession wraps a raw QUIC connection accepted on the moqf ALPN.
func NewQUICSession(c *quic.Conn) Session {
	return &quicSession{c: c}
}

func (q *quicSession) Context() context.Context { return q.c.Context() }

func (q *quicSession) AcceptStream(ctx context.Context) (Stream, error) {
	return q.c.AcceptStream(ctx)
}

func (q *quicSession) AcceptUniStream(ctx context.Context) (ReceiveStream, error) {
	return q.c.AcceptUniStream(ctx)
}

func (q *quicSession) OpenStream() (Stream, error) {
	return q.c.OpenStream()
}

func (q *quicSession) OpenStreamSync(ctx context.Context) (Stream, error) {
	return q.c.OpenStreamSync(ctx)
}

func (q *quicSession) OpenUniStream() (SendStream, error) {
	return q.c.OpenUniStream()
}

func (q *quicSession) OpenUniStreamSync(ctx context.Context) (SendStream, error) {
	return q.c.OpenUniStreamSync(ctx)
}

func (q *quicSession) SendDatagram(b []byte) error {
	return q.c.SendDatagram(b)
}

func (q *quicSession) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return q.c.ReceiveDatagram(ctx)
}

func (q *quicSession) LocalAddr() net.Addr  { return q.c.LocalAddr() }
func (q *quicSession) RemoteAddr() net.Addr { return q.c.RemoteAddr() }

func (q *quicSession) CloseWithError(code uint64, reason string) error {
	return q.c.CloseWithError(quic.ApplicationErrorCode(code), reason)
}
