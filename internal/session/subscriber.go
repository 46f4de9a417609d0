package session

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/transport"
	"github.com/zsiec/moqt/internal/wire"
)

type subscribeResult struct {
	alias uint64
	err   error
}

type pendingSubscribe struct {
	writer *serve.TrackWriter
	result chan subscribeResult
}

// Subscriber is the consuming half of a session: it tracks namespaces
// the peer has announced, issues SUBSCRIBE requests, and feeds inbound
// data streams/datagrams into the resulting tracks.
type Subscriber struct {
	sess    transport.Session
	control transport.Stream
	mu      sync.Mutex
	log     *slog.Logger

	announcedMu sync.Mutex
	announced   map[string][]string

	nextReqID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]*pendingSubscribe // requestID -> awaiting SUBSCRIBE_OK/ERROR

	tracksMu sync.Mutex
	byAlias  map[uint64]*serve.TrackWriter
}

// NewSubscriber creates a Subscriber writing SUBSCRIBE/UNSUBSCRIBE to
// control, over session sess.
func NewSubscriber(sess transport.Session, control transport.Stream) *Subscriber {
	return &Subscriber{
		sess:      sess,
		control:   control,
		log:       slog.With("component", "subscriber"),
		announced: make(map[string][]string),
		pending:   make(map[uint64]*pendingSubscribe),
		byAlias:   make(map[uint64]*serve.TrackWriter),
	}
}

func (s *Subscriber) writeControl(msgType uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wire.WriteControlMsg(s.control, msgType, payload)
}

// Announced returns a snapshot of every namespace the peer has
// currently announced.
func (s *Subscriber) Announced() [][]string {
	s.announcedMu.Lock()
	defer s.announcedMu.Unlock()
	out := make([][]string, 0, len(s.announced))
	for _, ns := range s.announced {
		out = append(out, ns)
	}
	return out
}

// Subscription is the application-facing handle for a subscription this
// Subscriber initiated: a reader over the resulting track, plus the
// means to end it explicitly.
type Subscription struct {
	Track *serve.TrackReader

	sub   *Subscriber
	reqID uint64
	alias uint64
}

// Unsubscribe ends the subscription, sending Unsubscribe to the peer so
// it can stop delivering and release the track server-side. It does not
// close the local Track, and neither does a SubscribeDone from the peer
// (that message is only logged): the Track reader keeps whatever was
// already buffered, and its Next returns only when its context ends.
func (h *Subscription) Unsubscribe() error {
	return h.sub.unsubscribe(h.reqID, h.alias)
}

// Subscribe requests trackName within namespace ns and returns a handle
// on the resulting track once the peer confirms it with SUBSCRIBE_OK.
func (s *Subscriber) Subscribe(ctx context.Context, ns []string, trackName string) (*Subscription, error) {
	reqID := s.nextReqID.Add(1)
	tw, tr := serve.NewTrack()
	resultCh := make(chan subscribeResult, 1)

	s.pendingMu.Lock()
	s.pending[reqID] = &pendingSubscribe{writer: tw, result: resultCh}
	s.pendingMu.Unlock()

	err := s.writeControl(wire.MsgSubscribe, wire.SerializeSubscribe(wire.Subscribe{
		RequestID:  reqID,
		Namespace:  ns,
		TrackName:  trackName,
		FilterType: wire.FilterLatestObject,
	}))
	if err != nil {
		s.pendingMu.Lock()
		delete(s.pending, reqID)
		s.pendingMu.Unlock()
		return nil, err
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		s.tracksMu.Lock()
		s.byAlias[res.alias] = tw
		s.tracksMu.Unlock()
		return &Subscription{Track: tr, sub: s, reqID: reqID, alias: res.alias}, nil
	case <-ctx.Done():
		s.pendingMu.Lock()
		delete(s.pending, reqID)
		s.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

// unsubscribe sends Unsubscribe for reqID and forgets the track alias
// locally, so a stray inbound stream for it after teardown is dropped
// instead of mis-delivered.
func (s *Subscriber) unsubscribe(reqID, alias uint64) error {
	s.tracksMu.Lock()
	delete(s.byAlias, alias)
	s.tracksMu.Unlock()
	return s.writeControl(wire.MsgUnsubscribe, wire.SerializeUnsubscribe(wire.Unsubscribe{RequestID: reqID}))
}

// HandleControl dispatches a control message that belongs to the
// subscriber role: the peer's ANNOUNCE family, and the responses to our
// own SUBSCRIBE requests.
func (s *Subscriber) HandleControl(msgType uint64, payload []byte) error {
	switch msgType {
	case wire.MsgAnnounce:
		a, err := wire.ParseAnnounce(payload)
		if err != nil {
			return err
		}
		s.announcedMu.Lock()
		s.announced[joinNamespace(a.Namespace)] = a.Namespace
		s.announcedMu.Unlock()
		return s.writeControl(wire.MsgAnnounceOK, wire.SerializeAnnounceOK(wire.AnnounceOK{Namespace: a.Namespace}))

	case wire.MsgUnannounce, wire.MsgAnnounceCancel:
		ns, err := parseNamespaceOnly(msgType, payload)
		if err != nil {
			return err
		}
		s.announcedMu.Lock()
		delete(s.announced, joinNamespace(ns))
		s.announcedMu.Unlock()
		return nil

	case wire.MsgSubscribeOK:
		ok, err := wire.ParseSubscribeOK(payload)
		if err != nil {
			return err
		}
		s.resolvePending(ok.RequestID, subscribeResult{alias: ok.TrackAlias})
		return nil

	case wire.MsgSubscribeError:
		se, err := wire.ParseSubscribeError(payload)
		if err != nil {
			return err
		}
		s.resolvePending(se.RequestID, subscribeResult{err: wire.NewError(wire.KindNotFound, se.ReasonPhrase)})
		return nil

	case wire.MsgSubscribeDone:
		sd, err := wire.ParseSubscribeDone(payload)
		if err != nil {
			return err
		}
		s.log.Debug("subscription done", "request_id", sd.RequestID, "reason", sd.ReasonPhrase)
		return nil

	default:
		return nil
	}
}

func parseNamespaceOnly(msgType uint64, payload []byte) ([]string, error) {
	if msgType == wire.MsgUnannounce {
		u, err := wire.ParseUnannounce(payload)
		return u.Namespace, err
	}
	ac, err := wire.ParseAnnounceCancel(payload)
	return ac.Namespace, err
}

func (s *Subscriber) resolvePending(reqID uint64, res subscribeResult) {
	s.pendingMu.Lock()
	p, ok := s.pending[reqID]
	delete(s.pending, reqID)
	s.pendingMu.Unlock()
	if ok {
		p.result <- res
	}
}

// HandleUniStream reads the stream header off an accepted unidirectional
// stream and feeds its objects into the track registered under the
// header's track alias, until the stream ends or a protocol error
// (including strict out-of-order detection within a group) aborts it.
func (s *Subscriber) HandleUniStream(ctx context.Context, stream transport.ReceiveStream) error {
	br := bufio.NewReader(stream)
	header, err := wire.ReadStreamHeader(br)
	if err != nil {
		return err
	}

	s.tracksMu.Lock()
	tw := s.byAlias[header.TrackAlias]
	s.tracksMu.Unlock()
	if tw == nil {
		return fmt.Errorf("session: unknown track alias %d", header.TrackAlias)
	}

	switch header.StreamType {
	case wire.StreamTypeTrack:
		return s.drainStreamMode(ctx, br, tw)
	case wire.StreamTypeGroup, wire.StreamTypeSubgroup:
		return s.drainGroupMode(ctx, br, tw, header)
	default:
		return fmt.Errorf("session: unknown stream type 0x%x", header.StreamType)
	}
}

func (s *Subscriber) drainStreamMode(ctx context.Context, br *bufio.Reader, tw *serve.TrackWriter) error {
	sw, err := tw.CreateStream()
	if err != nil {
		return err
	}
	for {
		obj, err := wire.ReadObject(br, wire.StreamTypeTrack)
		if err != nil {
			sw.Close(nil)
			return nil
		}
		if err := sw.Write(obj.Payload); err != nil {
			return err
		}
	}
}

func (s *Subscriber) drainGroupMode(ctx context.Context, br *bufio.Reader, tw *serve.TrackWriter, header wire.StreamHeader) error {
	gw, err := tw.CreateGroup(header.GroupID, header.Priority)
	if err != nil {
		return err
	}
	if gw == nil {
		return nil // a newer group already superseded this one
	}

	var expected uint64
	var haveExpected bool
	for {
		obj, err := wire.ReadObject(br, header.StreamType)
		if err != nil {
			gw.Close(nil)
			return nil
		}
		if haveExpected && obj.ObjectID != expected {
			err := wire.NewError(wire.KindOutOfOrder, "object id out of sequence")
			gw.Close(err)
			return err
		}
		expected = obj.ObjectID + 1
		haveExpected = true

		ow, err := gw.CreateObject(nil)
		if err != nil {
			return err
		}
		if err := ow.Write(obj.Payload); err != nil {
			return err
		}
		ow.Close(nil)
	}
}

// HandleDatagram decodes a single datagram and writes it into the track
// registered under its track alias.
func (s *Subscriber) HandleDatagram(data []byte) error {
	d, err := wire.DecodeDatagram(data)
	if err != nil {
		return err
	}
	s.tracksMu.Lock()
	tw := s.byAlias[d.TrackAlias]
	s.tracksMu.Unlock()
	if tw == nil {
		return nil
	}
	return tw.WriteDatagram(serve.DatagramInfo{
		GroupID:  d.GroupID,
		ObjectID: d.ObjectID,
		Priority: d.Priority,
		Payload:  d.Payload,
	})
}
