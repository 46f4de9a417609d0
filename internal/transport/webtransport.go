package transport

import (
	"context"
	"net"

	"github.com/quic-go/webtransport-go"
)

// wtSession adapts a *webtransport.Session (the h3/webtransport ALPN
// path) to Session, the same way the teacher's server.go handed a raw
// *webtransport.Session straight to its MoQ session type — here that
// binding is made explicit and interface-typed so internal/session
// never imports webtransport-go.
type wtSession struct {
	s *webtransport.Session
}

// NewWebTransportSession wraps an upgraded WebTransport session.
func NewWebTransportSession(s *webtransport.Session) Session {
	return &wtSession{s: s}
}

func (w *wtSession) Context() context.Context { return w.s.Context() }

func (w *wtSession) AcceptStream(ctx context.Context) (Stream, error) {
	return w.s.AcceptStream(ctx)
}

func (w *wtSession) AcceptUniStream(ctx context.Context) (ReceiveStream, error) {
	return w.s.AcceptUniStream(ctx)
}

func (w *wtSession) OpenStream() (Stream, error) {
	return w.s.OpenStream()
}

func (w *wtSession) OpenStreamSync(ctx context.Context) (Stream, error) {
	return w.s.OpenStreamSync(ctx)
}

func (w *wtSession) OpenUniStream() (SendStream, error) {
	return w.s.OpenUniStream()
}

func (w *wtSession) OpenUniStreamSync(ctx context.Context) (SendStream, error) {
	return w.s.OpenUniStreamSync(ctx)
}

func (w *wtSession) SendDatagram(b []byte) error {
	return w.s.SendDatagram(b)
}

func (w *wtSession) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return w.s.ReceiveDatagram(ctx)
}

func (w *wtSession) LocalAddr() net.Addr  { return w.s.LocalAddr() }
func (w *wtSession) RemoteAddr() net.Addr { return w.s.RemoteAddr() }

func (w *wtSession) CloseWithError(code uint64, reason string) error {
	return w.s.CloseWithError(webtransport.SessionErrorCode(code), reason)
}
