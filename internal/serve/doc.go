// Package serve implements the MoQ cache/fanout model: the
// Broadcast → Track → Group → Object tree described in the data model,
// split into single-writer/multi-reader handles. It contains no wire
// codec or session logic — those live in
// [github.com/zsiec/moqt/internal/wire] and
// [github.com/zsiec/moqt/internal/session]. Every entity is built on
// top of [github.com/zsiec/moqt/internal/watch.Cell], following the
// same short-held-lock discipline the teacher's relay and session code
// use around their own maps (lock, clone, unlock, then block).
package serve
