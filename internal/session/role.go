package session

import "github.com/zsiec/moqt/internal/wire"

// Role is the set of operations a session endpoint may perform, carried
// on the wire as the bitmask wire.RolePublisher | wire.RoleSubscriber.
type Role uint64

const (
	RolePublisher  Role = Role(wire.RolePublisher)
	RoleSubscriber Role = Role(wire.RoleSubscriber)
	RoleBoth       Role = RolePublisher | RoleSubscriber
)

func (r Role) CanPublish() bool  { return r&RolePublisher != 0 }
func (r Role) CanSubscribe() bool { return r&RoleSubscriber != 0 }

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	case RoleBoth:
		return "both"
	default:
		return "none"
	}
}

// Negotiate combines a local endpoint's declared role with its peer's
// declared role into the role this session actually operates under. A
// side declaring Both downgrades to whichever single capability the
// peer doesn't already cover: against a publisher-only peer it only
// subscribes, against a subscriber-only peer it only publishes, since
// there is nothing to gain from keeping a capability the peer can't
// use. Both against Both stays Both. Otherwise the local role carries
// through unchanged; two subscriber-only or two publisher-only
// declarations are RoleIncompatible, since nothing could ever flow
// either direction.
func Negotiate(local, remote Role) (Role, error) {
	if local == RoleBoth && remote == RoleBoth {
		return RoleBoth, nil
	}
	if local == RoleBoth {
		if remote == RolePublisher {
			return RoleSubscriber, nil
		}
		return RolePublisher, nil
	}
	if remote == RoleBoth {
		return local, nil
	}
	if local == remote {
		return 0, wire.NewError(wire.KindRoleIncompatible, "both endpoints declared "+local.String()+" only")
	}
	return local, nil
}
