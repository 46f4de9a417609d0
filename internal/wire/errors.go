package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for MoQ session handling. These enable callers to
// programmatically distinguish failure modes using errors.Is.
var (
	ErrVersionMismatch   = errors.New("moq: no compatible version")
	ErrUnknownTrack      = errors.New("moq: unknown track")
	ErrUnsupportedFilter = errors.New("moq: unsupported filter type")
	ErrUnknownNamespace  = errors.New("moq: unknown namespace")
)

// ParseError indicates a failure to parse a MoQ control message field.
// It wraps the underlying I/O or format error and records which field
// was being parsed when the error occurred.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("moq: parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Kind identifies a class of MoQ session/track failure, independent of
// the Go error value carrying it. Every Kind has a stable numeric Code
// that is put on the wire in SUBSCRIBE_ERROR, SUBSCRIBE_DONE, and
// ANNOUNCE_ERROR bodies, and used as the WebTransport session close code.
type Kind int

const (
	KindClosed Kind = iota
	KindReset
	KindStop
	KindNotFound
	KindDuplicate
	KindRoleViolation
	KindRoleIncompatible
	KindVersion
	KindMode
	KindSize
	KindOutOfOrder
	KindCancel
	KindDone
	KindRead
	KindWrite
	KindDecode
)

// Code returns the stable numeric error code for k, as carried on the wire.
func (k Kind) Code() uint64 {
	switch k {
	case KindClosed:
		return 0
	case KindNotFound:
		return 404
	case KindRoleViolation:
		return 405
	case KindRoleIncompatible:
		return 405
	case KindDuplicate:
		return 409
	case KindVersion:
		return 406
	case KindMode:
		return 407
	case KindSize:
		return 408
	case KindOutOfOrder:
		return 410
	case KindCancel:
		return 411
	case KindDone:
		return 0
	case KindReset:
		return 412
	case KindStop:
		return 413
	case KindRead, KindWrite:
		return 500
	case KindDecode:
		return 500
	default:
		return 500
	}
}

func (k Kind) String() string {
	switch k {
	case KindClosed:
		return "closed"
	case KindReset:
		return "reset"
	case KindStop:
		return "stop"
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindRoleViolation:
		return "role_violation"
	case KindRoleIncompatible:
		return "role_incompatible"
	case KindVersion:
		return "version"
	case KindMode:
		return "mode"
	case KindSize:
		return "size"
	case KindOutOfOrder:
		return "out_of_order"
	case KindCancel:
		return "cancel"
	case KindDone:
		return "done"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a MoQ error carrying a Kind (and thus a stable wire code) plus
// an optional human-readable reason. It is the common currency between
// the serve tree, the session engine, and the relay: per-track Errors
// close only that track, while per-session Errors (Decode, RoleViolation,
// Read, Write) tear down the whole session.
type Error struct {
	Kind   Kind
	Reason string
}

func NewError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("moq: %s", e.Kind)
	}
	return fmt.Sprintf("moq: %s: %s", e.Kind, e.Reason)
}

// Code returns the stable numeric wire code for e's Kind.
func (e *Error) Code() uint64 {
	return e.Kind.Code()
}

// IsDone reports whether err is the benign Done marker, which is
// suppressed whenever any other error has already closed the same state.
func IsDone(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == KindDone
	}
	return false
}

// ErrDone is the canonical benign "done" marker generated by drop handlers.
var ErrDone = &Error{Kind: KindDone}

// IsError reports whether err is a *Error of the given Kind.
func IsError(err error, kind Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}
