package relay

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/session"
	"github.com/zsiec/moqt/internal/wire"
)

func joinNamespace(ns []string) string { return strings.Join(ns, "/") }

// Relay is a single node's view of the whole mesh: the broadcasts it
// publishes itself, the remote origins it proxies, and the set of peer
// sessions it fans ANNOUNCE out to. One Relay is shared by every session
// a process accepts or dials.
type Relay struct {
	log      *slog.Logger
	registry *Registry
	remotes  *Remotes
	api      OriginClient
	selfURL  string

	sessionsMu sync.Mutex
	sessions   map[string]*session.Session
}

// OriginClient is satisfied by *originapi.Client; declared as an
// interface here so Relay doesn't force every caller (including tests)
// to stand up a real directory.
type OriginClient interface {
	GetOrigin(ctx context.Context, namespace string) (string, bool, error)
	SetOrigin(ctx context.Context, namespace, url string) error
	DeleteOrigin(ctx context.Context, namespace string) error
}

// NewRelay creates a Relay that announces itself to the origin directory
// as selfURL when publishing, dials peer relays via dial, and resolves
// remote ownership via api. api and dial may be nil for a relay that
// only ever serves namespaces published directly to it.
func NewRelay(selfURL string, api OriginClient, dial Dialer, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "relay")
	var remotes *Remotes
	if dial != nil {
		remotes = NewRemotes(dial, log)
	}
	return &Relay{
		log:      log,
		registry: NewRegistry(log),
		remotes:  remotes,
		api:      api,
		selfURL:  selfURL,
		sessions: make(map[string]*session.Session),
	}
}

// Publish registers reader under ns, records this relay as its owner in
// the origin directory (if configured), and announces it to every
// currently connected session.
func (rl *Relay) Publish(ctx context.Context, ns []string, reader *serve.BroadcastReader) error {
	namespace := joinNamespace(ns)
	if !rl.registry.Publish(namespace, reader) {
		return wire.NewError(wire.KindDuplicate, "namespace already published: "+namespace)
	}
	if rl.api != nil {
		if err := rl.api.SetOrigin(ctx, namespace, rl.selfURL); err != nil {
			rl.log.Warn("origin directory set failed", "namespace", namespace, "error", err)
		}
	}
	rl.fanoutAnnounce(ns, reader)
	return nil
}

// Unpublish withdraws ns from the registry and the origin directory.
func (rl *Relay) Unpublish(ctx context.Context, ns []string) {
	namespace := joinNamespace(ns)
	rl.registry.Unpublish(namespace)
	if rl.api != nil {
		if err := rl.api.DeleteOrigin(ctx, namespace); err != nil {
			rl.log.Warn("origin directory delete failed", "namespace", namespace, "error", err)
		}
	}
}

// AddSession registers a newly accepted or dialed session under id,
// announces every namespace this relay already publishes to it, and
// installs the resolver that lets its Publisher proxy namespaces owned
// by remote origins.
func (rl *Relay) AddSession(id string, sess *session.Session) {
	rl.sessionsMu.Lock()
	rl.sessions[id] = sess
	rl.sessionsMu.Unlock()

	sess.Publisher.SetResolver(rl.resolveRemote)

	for _, namespace := range rl.registry.List() {
		reader, ok := rl.registry.Lookup(namespace)
		if !ok {
			continue
		}
		if err := sess.Publisher.Publish(strings.Split(namespace, "/"), reader); err != nil {
			rl.log.Debug("announce to new session failed", "namespace", namespace, "error", err)
		}
	}
}

// RemoveSession unregisters a session that has disconnected.
func (rl *Relay) RemoveSession(id string) {
	rl.sessionsMu.Lock()
	delete(rl.sessions, id)
	rl.sessionsMu.Unlock()
}

func (rl *Relay) fanoutAnnounce(ns []string, reader *serve.BroadcastReader) {
	rl.sessionsMu.Lock()
	sessions := make([]*session.Session, 0, len(rl.sessions))
	for _, sess := range rl.sessions {
		sessions = append(sessions, sess)
	}
	rl.sessionsMu.Unlock()

	for _, sess := range sessions {
		if err := sess.Publisher.Publish(ns, reader); err != nil {
			rl.log.Debug("announce fanout failed", "namespace", joinNamespace(ns), "error", err)
		}
	}
}

// resolveRemote is installed as every accepted session's Publisher
// resolver: it asks the origin directory who owns namespace and, if
// found, returns a proxy fetching tracks from that peer relay on demand.
func (rl *Relay) resolveRemote(ctx context.Context, namespace []string) (session.TrackSource, error) {
	if rl.api == nil || rl.remotes == nil {
		return nil, wire.NewError(wire.KindNotFound, "no remote origin configured")
	}
	url, ok, err := rl.api.GetOrigin(ctx, joinNamespace(namespace))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wire.NewError(wire.KindNotFound, "no origin for namespace")
	}
	return &RemoteBroadcast{remotes: rl.remotes, url: url, namespace: namespace}, nil
}
