package session

import (
	"bufio"
	"fmt"
	"io"

	"github.com/zsiec/moqt/internal/wire"
)

// defaultMaxRequestID is the request ID quota each side grants the
// other at setup time. Concurrency beyond this bound isn't enforced;
// it exists purely so the handshake carries a realistic value.
const defaultMaxRequestID = 100

// ClientHandshake sends CLIENT_SETUP and reads back SERVER_SETUP,
// returning the negotiated role. path is sent as the setup PATH
// parameter for WebTransport sessions that didn't already encode the
// namespace in the connect URL; pass "" to omit it.
func ClientHandshake(control io.ReadWriter, path string, local Role) (Role, error) {
	r := bufio.NewReader(control)

	cs := wire.ClientSetup{
		Versions:     []uint64{wire.Version},
		Path:         path,
		HasPath:      path != "",
		MaxRequestID: defaultMaxRequestID,
		Role:         uint64(local),
		HasRole:      true,
	}
	if err := wire.WriteControlMsg(control, wire.MsgClientSetup, wire.SerializeClientSetup(cs)); err != nil {
		return 0, fmt.Errorf("session: write CLIENT_SETUP: %w", err)
	}

	msgType, payload, err := wire.ReadControlMsg(r)
	if err != nil {
		return 0, fmt.Errorf("session: read SERVER_SETUP: %w", err)
	}
	if msgType != wire.MsgServerSetup {
		return 0, fmt.Errorf("session: expected SERVER_SETUP (0x%x), got 0x%x", wire.MsgServerSetup, msgType)
	}
	ss, err := wire.ParseServerSetup(payload)
	if err != nil {
		return 0, fmt.Errorf("session: parse SERVER_SETUP: %w", err)
	}
	if ss.SelectedVersion != wire.Version {
		return 0, wire.ErrVersionMismatch
	}

	remote := RoleBoth
	if ss.HasRole {
		remote = Role(ss.Role)
	}
	return Negotiate(local, remote)
}

// ServerHandshake reads CLIENT_SETUP, validates the offered version,
// and replies with SERVER_SETUP (plus MAX_REQUEST_ID). It returns the
// client's requested path (for namespace routing) and the negotiated
// role.
func ServerHandshake(control io.ReadWriter, local Role) (path string, role Role, err error) {
	r := bufio.NewReader(control)

	msgType, payload, err := wire.ReadControlMsg(r)
	if err != nil {
		return "", 0, fmt.Errorf("session: read CLIENT_SETUP: %w", err)
	}
	if msgType != wire.MsgClientSetup {
		return "", 0, fmt.Errorf("session: expected CLIENT_SETUP (0x%x), got 0x%x", wire.MsgClientSetup, msgType)
	}
	cs, err := wire.ParseClientSetup(payload)
	if err != nil {
		return "", 0, fmt.Errorf("session: parse CLIENT_SETUP: %w", err)
	}

	versionOK := false
	for _, v := range cs.Versions {
		if v == wire.Version {
			versionOK = true
			break
		}
	}
	if !versionOK {
		return "", 0, fmt.Errorf("%w (client offered %v)", wire.ErrVersionMismatch, cs.Versions)
	}

	remote := RoleBoth
	if cs.HasRole {
		remote = Role(cs.Role)
	}
	role, err = Negotiate(local, remote)
	if err != nil {
		return "", 0, err
	}

	ss := wire.ServerSetup{SelectedVersion: wire.Version, MaxRequestID: defaultMaxRequestID, Role: uint64(local), HasRole: true}
	if err := wire.WriteControlMsg(control, wire.MsgServerSetup, wire.SerializeServerSetup(ss)); err != nil {
		return "", 0, fmt.Errorf("session: write SERVER_SETUP: %w", err)
	}
	if err := wire.WriteControlMsg(control, wire.MsgMaxRequestID, wire.SerializeMaxRequestID(defaultMaxRequestID)); err != nil {
		return "", 0, fmt.Errorf("session: write MAX_REQUEST_ID: %w", err)
	}

	if cs.HasPath {
		path = cs.Path
	}
	return path, role, nil
}
