// Package session implements the MoQ session engine: the CLIENT_SETUP /
// SERVER_SETUP handshake and role negotiation, and the publisher and
// subscriber halves that drive a negotiated session's control stream,
// accepted unidirectional data streams, and datagrams. It sits on top
// of [github.com/zsiec/moqt/internal/transport] for the underlying
// connection and [github.com/zsiec/moqt/internal/serve] for the cache
// tree a publisher fills and a subscriber drains.
package session
