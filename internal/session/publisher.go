package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/transport"
	"github.com/zsiec/moqt/internal/wire"
)

func joinNamespace(ns []string) string { return strings.Join(ns, "/") }

// TrackSource resolves a track by name for an incoming SUBSCRIBE. A local
// *serve.BroadcastReader satisfies this directly; a relay substitutes its
// own proxy onto a remote origin so Publisher never has to know whether a
// namespace is served locally or fetched over another session.
type TrackSource interface {
	Track(ctx context.Context, name string) (*serve.TrackReader, error)
}

// Publisher is the producing half of a session: it answers SUBSCRIBE
// requests against the broadcasts it has published, and announces those
// broadcasts' namespaces to the peer.
type Publisher struct {
	sess    transport.Session
	control transport.Stream
	mu      sync.Mutex // guards writes to the shared control stream
	log     *slog.Logger

	registryMu sync.Mutex
	registry   map[string]TrackSource

	nextAlias atomic.Uint64

	subMu sync.Mutex
	subs  map[uint64]context.CancelFunc // requestID -> active subscription

	// resolveUnknown is consulted when a SUBSCRIBE names a namespace not
	// already in the registry, letting a relay proxy namespaces it
	// discovers ownership of only at subscribe time (see internal/relay).
	// Left nil, a SUBSCRIBE for an unpublished namespace just fails.
	resolveUnknown func(ctx context.Context, namespace []string) (TrackSource, error)
}

// NewPublisher creates a Publisher writing ANNOUNCE/SUBSCRIBE_OK/etc. to
// control, over session sess.
func NewPublisher(sess transport.Session, control transport.Stream) *Publisher {
	return &Publisher{
		sess:     sess,
		control:  control,
		log:      slog.With("component", "publisher"),
		registry: make(map[string]TrackSource),
		subs:     make(map[uint64]context.CancelFunc),
	}
}

func (p *Publisher) writeControl(msgType uint64, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return wire.WriteControlMsg(p.control, msgType, payload)
}

// Publish registers a broadcast for serving under ns and announces it to
// the peer.
func (p *Publisher) Publish(ns []string, reader TrackSource) error {
	p.registryMu.Lock()
	p.registry[joinNamespace(ns)] = reader
	p.registryMu.Unlock()

	return p.writeControl(wire.MsgAnnounce, wire.SerializeAnnounce(wire.Announce{Namespace: ns}))
}

// SetResolver installs a fallback consulted for namespaces the registry
// doesn't already hold. A relay uses this to proxy remote origins without
// pre-registering every namespace it might ever serve.
func (p *Publisher) SetResolver(fn func(ctx context.Context, namespace []string) (TrackSource, error)) {
	p.resolveUnknown = fn
}

// Unpublish withdraws a previously published namespace.
func (p *Publisher) Unpublish(ns []string) error {
	p.registryMu.Lock()
	delete(p.registry, joinNamespace(ns))
	p.registryMu.Unlock()

	return p.writeControl(wire.MsgUnannounce, wire.SerializeUnannounce(wire.Unannounce{Namespace: ns}))
}

// HandleControl dispatches a control message that belongs to the
// publisher role (SUBSCRIBE, UNSUBSCRIBE, and the peer's ANNOUNCE
// responses). ctx bounds the lifetime of any subscription spawned.
func (p *Publisher) HandleControl(ctx context.Context, msgType uint64, payload []byte) error {
	switch msgType {
	case wire.MsgSubscribe:
		sub, err := wire.ParseSubscribe(payload)
		if err != nil {
			return err
		}
		p.handleSubscribe(ctx, sub)
		return nil
	case wire.MsgUnsubscribe:
		unsub, err := wire.ParseUnsubscribe(payload)
		if err != nil {
			return err
		}
		p.handleUnsubscribe(unsub)
		return nil
	case wire.MsgAnnounceOK, wire.MsgAnnounceError, wire.MsgAnnounceCancel:
		// Informational: the peer's reaction to our own Announce. Nothing
		// further to do beyond logging, since Publish already committed.
		p.log.Debug("announce response", "type", msgType)
		return nil
	default:
		return nil
	}
}

func (p *Publisher) handleSubscribe(ctx context.Context, sub wire.Subscribe) {
	namespace := joinNamespace(sub.Namespace)
	p.registryMu.Lock()
	reader := p.registry[namespace]
	p.registryMu.Unlock()

	if reader == nil && p.resolveUnknown != nil {
		resolved, err := p.resolveUnknown(ctx, sub.Namespace)
		if err == nil && resolved != nil {
			p.registryMu.Lock()
			p.registry[namespace] = resolved
			p.registryMu.Unlock()
			reader = resolved
		}
	}

	if reader == nil {
		p.sendSubscribeError(sub.RequestID, wire.KindNotFound.Code(), "unknown namespace")
		return
	}

	alias := p.nextAlias.Add(1)
	subCtx, cancel := context.WithCancel(ctx)

	p.subMu.Lock()
	p.subs[sub.RequestID] = cancel
	p.subMu.Unlock()

	go p.serveSubscription(subCtx, sub, reader, alias)
}

func (p *Publisher) handleUnsubscribe(u wire.Unsubscribe) {
	p.subMu.Lock()
	cancel, ok := p.subs[u.RequestID]
	delete(p.subs, u.RequestID)
	p.subMu.Unlock()
	if ok {
		cancel()
	}
}

func (p *Publisher) serveSubscription(ctx context.Context, sub wire.Subscribe, bcast TrackSource, alias uint64) {
	defer func() {
		p.subMu.Lock()
		delete(p.subs, sub.RequestID)
		p.subMu.Unlock()
	}()

	track, err := bcast.Track(ctx, sub.TrackName)
	if err != nil {
		p.sendSubscribeError(sub.RequestID, wire.KindNotFound.Code(), err.Error())
		return
	}
	defer track.Close()

	if err := p.writeControl(wire.MsgSubscribeOK, wire.SerializeSubscribeOK(wire.SubscribeOK{
		RequestID:  sub.RequestID,
		TrackAlias: alias,
		GroupOrder: wire.GroupOrderAscending,
	})); err != nil {
		p.log.Debug("write SUBSCRIBE_OK failed", "error", err)
		return
	}

	progress := &deliveryProgress{}
	if err := p.deliver(ctx, alias, track, progress); err != nil {
		p.log.Debug("delivery ended", "track", sub.TrackName, "error", err)
	}

	done := wire.SubscribeDone{
		RequestID:  sub.RequestID,
		StatusCode: wire.KindDone.Code(),
	}
	done.HasLast, done.LastGroup, done.LastObject = progress.last()
	_ = p.writeControl(wire.MsgSubscribeDone, wire.SerializeSubscribeDone(done))
}

// deliveryProgress records the largest (GroupID, ObjectID) delivered
// over the lifetime of a subscription, so its eventual SubscribeDone
// can report where the peer left off.
type deliveryProgress struct {
	mu     sync.Mutex
	has    bool
	group  uint64
	object uint64
}

func (p *deliveryProgress) record(groupID, objectID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.has || groupID > p.group || (groupID == p.group && objectID > p.object) {
		p.has = true
		p.group = groupID
		p.object = objectID
	}
}

func (p *deliveryProgress) last() (hasLast bool, group, object uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.has, p.group, p.object
}

func (p *Publisher) sendSubscribeError(requestID, code uint64, reason string) {
	_ = p.writeControl(wire.MsgSubscribeError, wire.SerializeSubscribeError(wire.SubscribeError{
		RequestID:    requestID,
		ErrorCode:    code,
		ReasonPhrase: reason,
	}))
}

// deliver replays track on the transport, choosing the wire framing
// appropriate to the mode it (or its successor events) commit to, and
// records the highest (group, object) delivered into progress.
func (p *Publisher) deliver(ctx context.Context, alias uint64, track *serve.TrackReader, progress *deliveryProgress) error {
	for {
		ev, err := track.Next(ctx)
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}
		switch ev.Mode {
		case serve.ModeStream:
			if err := p.deliverStream(ctx, alias, ev.Stream, progress); err != nil {
				return err
			}
			return nil // Stream mode never transitions further
		case serve.ModeGroup, serve.ModeObject:
			if err := p.deliverGroup(ctx, alias, ev.Group, progress); err != nil {
				return err
			}
		case serve.ModeDatagram:
			if err := p.deliverDatagram(alias, ev.Datagram, progress); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) deliverStream(ctx context.Context, alias uint64, obj *serve.ObjectReader, progress *deliveryProgress) error {
	stream, err := p.sess.OpenUniStreamSync(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := wire.WriteStreamHeader(stream, wire.StreamHeader{StreamType: wire.StreamTypeTrack, TrackAlias: alias}); err != nil {
		return err
	}

	var objectID uint64
	for {
		chunk, err := obj.Next(ctx)
		if err != nil {
			return err
		}
		if chunk == nil {
			return nil
		}
		if _, err := wire.WriteObject(stream, wire.StreamTypeTrack, wire.ObjectHeader{ObjectID: objectID, Payload: chunk}); err != nil {
			return err
		}
		progress.record(0, objectID)
		objectID++
	}
}

func (p *Publisher) deliverGroup(ctx context.Context, alias uint64, grp *serve.GroupReader, progress *deliveryProgress) error {
	stream, err := p.sess.OpenUniStreamSync(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := wire.WriteStreamHeader(stream, wire.StreamHeader{
		StreamType: wire.StreamTypeSubgroup,
		TrackAlias: alias,
		GroupID:    grp.ID(),
	}); err != nil {
		return err
	}

	for {
		obj, err := grp.Next(ctx)
		if err != nil {
			return err
		}
		if obj == nil {
			return nil
		}
		if err := p.deliverObjectChunks(ctx, stream, obj, progress); err != nil {
			return err
		}
	}
}

func (p *Publisher) deliverObjectChunks(ctx context.Context, stream transport.SendStream, obj *serve.ObjectReader, progress *deliveryProgress) error {
	var payload []byte
	for {
		chunk, err := obj.Next(ctx)
		if err != nil {
			return err
		}
		if chunk == nil {
			break
		}
		payload = append(payload, chunk...)
	}
	h := obj.Header()
	_, err := wire.WriteObject(stream, wire.StreamTypeSubgroup, wire.ObjectHeader{ObjectID: h.ObjectID, Payload: payload})
	if err != nil {
		return err
	}
	progress.record(h.GroupID, h.ObjectID)
	return nil
}

func (p *Publisher) deliverDatagram(alias uint64, d *serve.DatagramInfo, progress *deliveryProgress) error {
	err := p.sess.SendDatagram(wire.EncodeDatagram(wire.Datagram{
		TrackAlias: alias,
		GroupID:    d.GroupID,
		ObjectID:   d.ObjectID,
		Priority:   d.Priority,
		Payload:    d.Payload,
	}))
	if err != nil {
		return err
	}
	progress.record(d.GroupID, d.ObjectID)
	return nil
}
