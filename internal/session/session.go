package session

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/moqt/internal/transport"
	"github.com/zsiec/moqt/internal/wire"
)

// Session is a single negotiated MoQ connection: a control stream plus
// the publisher and subscriber halves built on top of it. Dropping the
// session (cancelling its context) tears down every task Run spawned.
type Session struct {
	sess    transport.Session
	control transport.Stream

	Role       Role
	Path       string
	Publisher  *Publisher
	Subscriber *Subscriber

	log *slog.Logger
}

// Accept performs the server side of the handshake on an already-opened
// control stream and returns a ready Session.
func Accept(ctx context.Context, sess transport.Session, control transport.Stream, local Role) (*Session, error) {
	path, role, err := ServerHandshake(control, local)
	if err != nil {
		return nil, err
	}
	return newSession(sess, control, path, role), nil
}

// Dial opens the control stream and performs the client side of the
// handshake.
func Dial(ctx context.Context, sess transport.Session, path string, local Role) (*Session, error) {
	control, err := sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: open control stream: %w", err)
	}
	role, err := ClientHandshake(control, path, local)
	if err != nil {
		return nil, err
	}
	return newSession(sess, control, path, role), nil
}

func newSession(sess transport.Session, control transport.Stream, path string, role Role) *Session {
	return &Session{
		sess:       sess,
		control:    control,
		Role:       role,
		Path:       path,
		Publisher:  NewPublisher(sess, control),
		Subscriber: NewSubscriber(sess, control),
		log:        slog.With("role", role.String()),
	}
}

// Run drives the session until ctx is cancelled or one of its three
// tasks fails: reading and dispatching control messages, accepting and
// draining unidirectional data streams, and accepting datagrams. The
// first task to fail cancels the others, matching the teacher's
// errgroup-supervised run loop in cmd/prism/main.go.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.runControlLoop(ctx) })
	g.Go(func() error { return s.runAcceptUniLoop(ctx) })
	g.Go(func() error { return s.runDatagramLoop(ctx) })

	err := g.Wait()
	if ctx.Err() != nil && err == ctx.Err() {
		return nil
	}
	return err
}

func (s *Session) runControlLoop(ctx context.Context) error {
	br := bufio.NewReader(s.control)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgType, payload, err := wire.ReadControlMsg(br)
		if err != nil {
			return err
		}

		var handleErr error
		switch msgType {
		case wire.MsgSubscribe, wire.MsgUnsubscribe, wire.MsgAnnounceOK, wire.MsgAnnounceError, wire.MsgAnnounceCancel:
			if s.Role.CanPublish() {
				handleErr = s.Publisher.HandleControl(ctx, msgType, payload)
			}
		case wire.MsgAnnounce, wire.MsgUnannounce, wire.MsgSubscribeOK, wire.MsgSubscribeError, wire.MsgSubscribeDone:
			if s.Role.CanSubscribe() {
				handleErr = s.Subscriber.HandleControl(msgType, payload)
			}
		case wire.MsgMaxRequestID:
			s.log.Debug("peer MAX_REQUEST_ID")
		case wire.MsgGoAway:
			return wire.ErrDone
		default:
			s.log.Debug("unhandled control message", "type", msgType)
		}
		if handleErr != nil {
			s.log.Warn("control message handling failed", "type", msgType, "error", handleErr)
		}
	}
}

func (s *Session) runAcceptUniLoop(ctx context.Context) error {
	if !s.Role.CanSubscribe() {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		stream, err := s.sess.AcceptUniStream(ctx)
		if err != nil {
			return err
		}
		go func() {
			if err := s.Subscriber.HandleUniStream(ctx, stream); err != nil {
				s.log.Debug("uni stream ended", "error", err)
			}
		}()
	}
}

func (s *Session) runDatagramLoop(ctx context.Context) error {
	if !s.Role.CanSubscribe() {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		data, err := s.sess.ReceiveDatagram(ctx)
		if err != nil {
			return err
		}
		if err := s.Subscriber.HandleDatagram(data); err != nil {
			s.log.Debug("datagram handling failed", "error", err)
		}
	}
}

// Close tears down the underlying transport session with code and
// reason, e.g. derived from the error Run returned.
func (s *Session) Close(code uint64, reason string) error {
	return s.sess.CloseWithError(code, reason)
}
