// Package relay ties together a local broadcast registry, a dedup-by-URL
// cache of remote-origin sessions, and announce propagation to connected
// subscribers, so that a SUBSCRIBE for a namespace this node doesn't
// publish itself is transparently proxied from whichever peer relay does.
//
// Grounded on moq-relay/src/remote.rs (RemotesProducer/RemotesConsumer's
// dedup-by-URL teardown, here a refcounted map instead of Arc/Weak) and
// moq-relay/src/connection.rs (announce fan-out to connected sessions),
// translated into the teacher's stream.Manager registry idiom: a
// mutex-guarded map with Create/Remove/List and logging at each
// transition.
package relay
