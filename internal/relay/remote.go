package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zsiec/moqt/internal/serve"
	"github.com/zsiec/moqt/internal/session"
	"github.com/zsiec/moqt/internal/transport"
)

// Dialer opens a transport session to a peer relay's URL. cmd/moqt-relay
// supplies one backed by webtransport-go's client dial.
type Dialer func(ctx context.Context, url string) (transport.Session, error)

type remoteEntry struct {
	sess *session.Session
	refs int
	stop context.CancelFunc

	tracksMu sync.Mutex
	tracks   map[string]*serve.TrackReader
}

// Remotes dials and caches sessions to peer relays by URL, refcounting so
// that concurrent SUBSCRIBEs for the same remote origin share one
// session and one upstream subscription per track. Grounded on
// moq-relay/src/remote.rs's RemotesProducer/RemotesConsumer dedup-by-URL
// lookup, translated from Arc/Weak bookkeeping into a refcounted map
// under a short-held mutex.
type Remotes struct {
	log  *slog.Logger
	dial Dialer

	mu    sync.Mutex
	byURL map[string]*remoteEntry
}

// NewRemotes creates a Remotes cache dialing out via dial.
func NewRemotes(dial Dialer, log *slog.Logger) *Remotes {
	if log == nil {
		log = slog.Default()
	}
	return &Remotes{
		log:   log.With("component", "relay-remotes"),
		dial:  dial,
		byURL: make(map[string]*remoteEntry),
	}
}

func (r *Remotes) acquire(ctx context.Context, url string) (*remoteEntry, error) {
	r.mu.Lock()
	if e, ok := r.byURL[url]; ok {
		e.refs++
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	sess, err := r.dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("relay: dial remote %s: %w", url, err)
	}
	moqSess, err := session.Dial(ctx, sess, url, session.RoleSubscriber)
	if err != nil {
		sess.CloseWithError(0, "handshake failed")
		return nil, fmt.Errorf("relay: handshake with %s: %w", url, err)
	}

	r.mu.Lock()
	if existing, ok := r.byURL[url]; ok {
		// Another caller dialed url while this one was handshaking:
		// share its session and drop this one.
		existing.refs++
		r.mu.Unlock()
		sess.CloseWithError(0, "duplicate remote session")
		return existing, nil
	}
	runCtx, stop := context.WithCancel(context.Background())
	e := &remoteEntry{sess: moqSess, refs: 1, stop: stop, tracks: make(map[string]*serve.TrackReader)}
	r.byURL[url] = e
	r.mu.Unlock()

	go func() {
		if err := moqSess.Run(runCtx); err != nil {
			r.log.Warn("remote session ended", "url", url, "error", err)
		}
		r.mu.Lock()
		delete(r.byURL, url)
		r.mu.Unlock()
	}()

	r.log.Info("remote origin dialed", "url", url)
	return e, nil
}

func (r *Remotes) release(url string) {
	r.mu.Lock()
	e, ok := r.byURL[url]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(r.byURL, url)
		r.mu.Unlock()
		e.stop()
		r.log.Info("remote origin released", "url", url)
		return
	}
	r.mu.Unlock()
}

// Track fetches trackName within namespace from the peer relay at url,
// reusing a cached upstream subscription if one already exists. The
// returned reader counts as one outstanding reference on that upstream
// subscription: Close it (directly, or by letting every clone taken
// from it close) once the caller is done, and the last such Close
// sends Unsubscribe upstream and releases this Remotes' hold on the
// session dialed for url.
func (r *Remotes) Track(ctx context.Context, url string, namespace []string, trackName string) (*serve.TrackReader, error) {
	key := strings.Join(namespace, "/") + "\x00" + trackName

	if tr, ok := r.lookupTrack(url, key); ok {
		return tr.Clone(), nil
	}

	e, err := r.acquire(ctx, url)
	if err != nil {
		return nil, err
	}

	e.tracksMu.Lock()
	if tr, ok := e.tracks[key]; ok {
		e.tracksMu.Unlock()
		// Lost the race: another caller already established this
		// track's subscription and counted it against e.refs.
		r.release(url)
		return tr.Clone(), nil
	}
	e.tracksMu.Unlock()

	sub, err := e.sess.Subscriber.Subscribe(ctx, namespace, trackName)
	if err != nil {
		r.release(url)
		return nil, err
	}

	sub.Track.OnZeroReaders(func() {
		e.tracksMu.Lock()
		delete(e.tracks, key)
		e.tracksMu.Unlock()
		if err := sub.Unsubscribe(); err != nil {
			r.log.Debug("remote unsubscribe failed", "url", url, "track", trackName, "error", err)
		}
		r.release(url)
	})

	// sub.Track itself is never handed out or Closed: a fresh Track starts
	// with zero readers, so the cached master holds no reader of its own
	// and the refcount tracks exactly the clones actually handed out.
	// OnZeroReaders fires once the last of those closes.
	out := sub.Track.Clone()

	e.tracksMu.Lock()
	e.tracks[key] = sub.Track
	e.tracksMu.Unlock()

	return out, nil
}

func (r *Remotes) lookupTrack(url, key string) (*serve.TrackReader, bool) {
	r.mu.Lock()
	e, ok := r.byURL[url]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.tracksMu.Lock()
	defer e.tracksMu.Unlock()
	tr, ok := e.tracks[key]
	return tr, ok
}

// RemoteBroadcast proxies a single remote namespace so it can stand in
// for a local *serve.BroadcastReader anywhere a session.TrackSource is
// expected, in particular Publisher.Publish/SetResolver.
type RemoteBroadcast struct {
	remotes   *Remotes
	url       string
	namespace []string
}

// Track implements session.TrackSource by fetching name from the remote
// origin, dialing or reusing a cached session as needed.
func (rb *RemoteBroadcast) Track(ctx context.Context, name string) (*serve.TrackReader, error) {
	return rb.remotes.Track(ctx, rb.url, rb.namespace, name)
}
