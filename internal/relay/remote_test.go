package relay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/session"
	"github.com/zsiec/moqt/internal/transport"
	"github.com/zsiec/moqt/internal/wire"
)

// fakeRemoteSession is a minimal in-memory transport.Session standing in
// for a dial-out connection to a peer relay, just enough surface for
// session.Dial's control-stream handshake plus one inbound uni-stream
// delivery. Mirrors internal/session's own test double.
type fakeRemoteSession struct {
	ctx      context.Context
	control  net.Conn
	peerUni  chan io.ReadCloser
	ownUni   chan io.ReadCloser
}

type fakePipeStream struct{ net.Conn }

func (fakePipeStream) CancelRead(uint64)  {}
func (fakePipeStream) CancelWrite(uint64) {}

type fakeUniRead struct{ io.ReadCloser }

func (fakeUniRead) CancelRead(uint64) {}

type fakeUniWrite struct{ *io.PipeWriter }

func (s fakeUniWrite) Close() error     { return s.PipeWriter.Close() }
func (fakeUniWrite) CancelWrite(uint64) {}

func (s *fakeRemoteSession) Context() context.Context { return s.ctx }
func (s *fakeRemoteSession) AcceptStream(ctx context.Context) (transport.Stream, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (s *fakeRemoteSession) OpenStream() (transport.Stream, error) { return nil, errors.New("unsupported") }
func (s *fakeRemoteSession) OpenStreamSync(ctx context.Context) (transport.Stream, error) {
	return fakePipeStream{s.control}, nil
}
func (s *fakeRemoteSession) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	select {
	case r := <-s.peerUni:
		return fakeUniRead{r}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (s *fakeRemoteSession) OpenUniStream() (transport.SendStream, error) {
	r, w := io.Pipe()
	s.ownUni <- r
	return fakeUniWrite{w}, nil
}
func (s *fakeRemoteSession) OpenUniStreamSync(ctx context.Context) (transport.SendStream, error) {
	return s.OpenUniStream()
}
func (s *fakeRemoteSession) SendDatagram(b []byte) error { return nil }
func (s *fakeRemoteSession) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (s *fakeRemoteSession) LocalAddr() net.Addr  { return fakeAddr("local") }
func (s *fakeRemoteSession) RemoteAddr() net.Addr { return fakeAddr("remote") }
func (s *fakeRemoteSession) CloseWithError(code uint64, reason string) error { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// newFakeRemotePair returns the local side handed to Remotes' Dialer and
// the remote side a test goroutine drives directly as the peer relay.
func newFakeRemotePair(ctx context.Context) (local, remote *fakeRemoteSession) {
	connLocal, connRemote := net.Pipe()
	localToRemoteUni := make(chan io.ReadCloser, 4)
	remoteToLocalUni := make(chan io.ReadCloser, 4)

	local = &fakeRemoteSession{ctx: ctx, control: connLocal, peerUni: remoteToLocalUni, ownUni: localToRemoteUni}
	remote = &fakeRemoteSession{ctx: ctx, control: connRemote, peerUni: localToRemoteUni, ownUni: remoteToLocalUni}
	return local, remote
}

// runFakeRemoteRelay answers the client handshake as a server, then
// answers each SUBSCRIBE it reads by sending SUBSCRIBE_OK, delivering a
// single-object group on a uni stream, and recording whether it later
// sees UNSUBSCRIBE before the test's context ends.
func runFakeRemoteRelay(t *testing.T, ctx context.Context, remote *fakeRemoteSession, unsubscribed chan<- struct{}) {
	t.Helper()
	control := fakePipeStream{remote.control}
	if _, _, err := session.ServerHandshake(control, session.RolePublisher); err != nil {
		t.Errorf("remote handshake: %v", err)
		return
	}

	br := bufio.NewReader(control)
	for {
		msgType, payload, err := wire.ReadControlMsg(br)
		if err != nil {
			return
		}
		switch msgType {
		case wire.MsgSubscribe:
			sub, err := wire.ParseSubscribe(payload)
			if err != nil {
				t.Errorf("parse subscribe: %v", err)
				return
			}
			if err := wire.WriteControlMsg(control, wire.MsgSubscribeOK, wire.SerializeSubscribeOK(wire.SubscribeOK{
				RequestID:  sub.RequestID,
				TrackAlias: 1,
				GroupOrder: wire.GroupOrderAscending,
			})); err != nil {
				t.Errorf("write subscribe ok: %v", err)
				return
			}
			go func() {
				stream, err := remote.OpenUniStreamSync(ctx)
				if err != nil {
					return
				}
				defer stream.Close()
				_ = wire.WriteStreamHeader(stream, wire.StreamHeader{
					StreamType: wire.StreamTypeSubgroup,
					TrackAlias: 1,
					GroupID:    0,
				})
				_, _ = wire.WriteObject(stream, wire.StreamTypeSubgroup, wire.ObjectHeader{ObjectID: 0, Payload: []byte("hi")})
			}()
		case wire.MsgUnsubscribe:
			select {
			case unsubscribed <- struct{}{}:
			default:
			}
		}
	}
}

func TestRemotesTrackRefcountTeardown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	local, remote := newFakeRemotePair(ctx)
	unsubscribed := make(chan struct{}, 1)
	go runFakeRemoteRelay(t, ctx, remote, unsubscribed)

	dial := func(ctx context.Context, url string) (transport.Session, error) { return local, nil }
	remotes := NewRemotes(dial, nil)

	tr1, err := remotes.Track(ctx, "https://peer.example", []string{"alice"}, "video")
	if err != nil {
		t.Fatalf("first Track: %v", err)
	}
	tr2, err := remotes.Track(ctx, "https://peer.example", []string{"alice"}, "video")
	if err != nil {
		t.Fatalf("second Track: %v", err)
	}

	remotes.mu.Lock()
	entry, ok := remotes.byURL["https://peer.example"]
	remotes.mu.Unlock()
	if !ok {
		t.Fatal("expected a cached remote entry after Track")
	}
	if entry.refs != 1 {
		t.Fatalf("refs = %d, want 1 (one subscription shared by two clones)", entry.refs)
	}

	ev, err := tr1.Next(ctx)
	if err != nil {
		t.Fatalf("tr1.Next: %v", err)
	}
	if ev.Mode != serve.ModeGroup && ev.Mode != serve.ModeObject {
		t.Fatalf("unexpected mode %v", ev.Mode)
	}

	tr1.Close()
	select {
	case <-unsubscribed:
		t.Fatal("unsubscribe sent before the last clone closed")
	case <-time.After(50 * time.Millisecond):
	}

	tr2.Close()
	select {
	case <-unsubscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected unsubscribe after the last clone closed")
	}

	remotes.mu.Lock()
	_, stillCached := remotes.byURL["https://peer.example"]
	remotes.mu.Unlock()
	if stillCached {
		t.Fatal("remote entry should be released once its last track closes")
	}
}
