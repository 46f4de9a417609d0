// Package transport binds the session engine to an underlying QUIC
// transport: either a WebTransport session (tunneled over HTTP/3, the
// h3/webtransport ALPNs) or a raw QUIC connection (the dedicated moqf
// ALPN). internal/session depends only on the Session interface defined
// here, so it never imports quic-go or webtransport-go directly.
package transport
