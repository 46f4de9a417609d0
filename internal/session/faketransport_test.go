package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/zsiec/moqt/internal/transport"
)

// pipeStream adapts a net.Conn (as returned by net.Pipe) into a
// transport.Stream for tests exercising Publisher/Subscriber without a
// real QUIC/WebTransport session.
type pipeStream struct {
	net.Conn
}

func (s pipeStream) CancelRead(uint64)  {}
func (s pipeStream) CancelWrite(uint64) {}

// fakeSession is a minimal in-memory transport.Session double. Two
// linked fakeSessions emulate a pair of MoQ endpoints: a uni-stream or
// datagram opened/sent on one side is delivered to the peer's Accept/
// Receive calls via a shared channel.
type fakeSession struct {
	ctx context.Context

	sendUni chan io.ReadCloser // written by OpenUniStream, read by the peer's AcceptUniStream
	recvUni chan io.ReadCloser

	sendDg chan []byte
	recvDg chan []byte

	mu     sync.Mutex
	closed bool
}

// newFakeSessionPair returns two fakeSessions wired to each other: a
// uni-stream or datagram sent on one arrives on the other.
func newFakeSessionPair(ctx context.Context) (*fakeSession, *fakeSession) {
	abUni := make(chan io.ReadCloser, 16)
	baUni := make(chan io.ReadCloser, 16)
	abDg := make(chan []byte, 16)
	baDg := make(chan []byte, 16)

	a := &fakeSession{ctx: ctx, sendUni: abUni, recvUni: baUni, sendDg: abDg, recvDg: baDg}
	b := &fakeSession{ctx: ctx, sendUni: baUni, recvUni: abUni, sendDg: baDg, recvDg: abDg}
	return a, b
}

var _ transport.Session = (*fakeSession)(nil)

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) AcceptStream(ctx context.Context) (transport.Stream, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSession) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	select {
	case r := <-s.recvUni:
		return fakeReceiveStream{r}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSession) OpenStream() (transport.Stream, error) { return nil, errors.New("not supported") }
func (s *fakeSession) OpenStreamSync(ctx context.Context) (transport.Stream, error) {
	return nil, errors.New("not supported")
}

func (s *fakeSession) OpenUniStream() (transport.SendStream, error) {
	r, w := io.Pipe()
	s.sendUni <- r
	return fakeSendStream{w}, nil
}

func (s *fakeSession) OpenUniStreamSync(ctx context.Context) (transport.SendStream, error) {
	return s.OpenUniStream()
}

func (s *fakeSession) SendDatagram(b []byte) error {
	cp := append([]byte(nil), b...)
	s.sendDg <- cp
	return nil
}

func (s *fakeSession) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case b := <-s.recvDg:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSession) LocalAddr() net.Addr  { return fakeAddr("local") }
func (s *fakeSession) RemoteAddr() net.Addr { return fakeAddr("remote") }

func (s *fakeSession) CloseWithError(code uint64, reason string) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

type fakeReceiveStream struct {
	io.ReadCloser
}

func (fakeReceiveStream) CancelRead(uint64) {}

type fakeSendStream struct {
	*io.PipeWriter
}

func (s fakeSendStream) Close() error     { return s.PipeWriter.Close() }
func (fakeSendStream) CancelWrite(uint64) {}
