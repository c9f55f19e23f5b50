// Package session drives the handshake, authentication, parameter
// exchange, keep-alive bookkeeping, and teardown signalling shared by
// all three roles, over an already-established (and optionally
// TLS-wrapped) net.Conn and the in-band control codec.
package session

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soebridge/soe/internal/codec"
	"github.com/soebridge/soe/internal/logging"
	"github.com/soebridge/soe/internal/serialendpoint"
	"github.com/soebridge/soe/internal/status"
)

// badPasswordDelay is the minimum pause between sending BADPWD and
// closing, so the peer has a chance to read it off the wire.
const badPasswordDelay = 220 * time.Millisecond

// Config configures a Machine for one connection.
type Config struct {
	Role           codec.Role
	LocalVersion   string
	Password       string // empty disables authentication
	LocalSerial    serialendpoint.Config
	KeepaliveLocal time.Duration
	Log            logging.Sink
	Status         status.Updater
}

// Machine owns one session's protocol state and the single net.Conn it
// runs over. All writes to conn are serialised through writeMu so the
// serial→network relay and the control-frame responder (driven by the
// network→serial relay) can share the connection safely.
type Machine struct {
	conn    net.Conn
	reader  *frameReader
	writeMu sync.Mutex

	role           codec.Role
	localVersion   string
	password       string
	localSerial    serialendpoint.Config
	keepaliveLocal time.Duration

	log    logging.Sink
	status status.Updater

	mu                    sync.Mutex
	phase                 Phase
	authorized            bool
	peer                  *PeerIdentity
	remoteSerial          *serialendpoint.Config
	keepaliveRemote       time.Duration
	lastActivity          time.Time
	clientQueriesSent     bool
	respondedVersionReq   bool
	respondedKATimeoutReq bool

	inBytes  atomic.Uint64
	outBytes atomic.Uint64
}

// NewMachine wraps conn (already TLS-wrapped if applicable) in a fresh
// Machine, phase AwaitingConnect.
func NewMachine(conn net.Conn, cfg Config) *Machine {
	if cfg.Log == nil {
		cfg.Log = logging.NopSink{}
	}
	if cfg.Status == nil {
		cfg.Status = status.Nop{}
	}
	return &Machine{
		conn:           conn,
		reader:         newFrameReader(conn),
		role:           cfg.Role,
		localVersion:   cfg.LocalVersion,
		password:       cfg.Password,
		localSerial:    cfg.LocalSerial,
		keepaliveLocal: cfg.KeepaliveLocal,
		log:            cfg.Log,
		status:         cfg.Status,
		phase:          PhaseAwaitingConnect,
		lastActivity:   time.Now(),
	}
}

// Negotiate runs the role-appropriate handshake/auth sequence (spec
// §4.4) to completion, returning nil once the session reaches
// Authorized. The caller then hands the Machine to the byte pump.
func (m *Machine) Negotiate(ctx context.Context) error {
	m.setPhase(PhaseHandshake)
	if m.role == codec.RoleServer {
		if err := m.WriteFrame(codec.Frame{Token: codec.TokenGetVer}); err != nil {
			return err
		}
		if err := m.WriteFrame(codec.Frame{Token: codec.TokenGetKATimeout}); err != nil {
			return err
		}
	}
	return m.negotiateLoop(ctx)
}

func (m *Machine) negotiateLoop(ctx context.Context) error {
	for {
		if m.Phase() == PhaseAuthorized {
			return nil
		}
		ev, err := m.ReadNext(ctx)
		if err != nil {
			return err
		}
		if ev.Kind == codec.EventPayload {
			return fmt.Errorf("%w: payload received before authorization", ErrProtocolViolation)
		}
		f, ok := codec.Parse(string(ev.Data))
		if !ok {
			continue // unknown control token: ignored
		}
		disconnect, err := m.HandleFrame(f)
		if err != nil {
			return err
		}
		if disconnect {
			return ErrDisconnected
		}
	}
}

// ReadNext returns the next Event from the connection, short-timeout
// polling under the hood so ctx cancellation is honoured promptly.
func (m *Machine) ReadNext(ctx context.Context) (codec.Event, error) {
	return m.reader.next(ctx)
}

// HandleFrame dispatches one already-parsed control frame. It is used
// both by the negotiation loop above and by the byte pump's
// network→serial relay once the session is Authorized (step
// 6: the same responses apply regardless of how long the session has
// been running).
func (m *Machine) HandleFrame(f codec.Frame) (disconnect bool, err error) {
	switch f.Token {
	case codec.TokenGetVer:
		if err := m.WriteFrame(codec.Frame{Token: codec.TokenVersion, Role: m.role, Arg: m.localVersion}); err != nil {
			return false, err
		}
		if m.role != codec.RoleServer {
			m.mu.Lock()
			m.respondedVersionReq = true
			m.mu.Unlock()
			return false, m.maybeSendClientQueries()
		}
		return false, nil

	case codec.TokenGetKATimeout:
		secs := strconv.Itoa(int(m.keepaliveLocal.Seconds()))
		if err := m.WriteFrame(codec.Frame{Token: codec.TokenMyKATimeout, Arg: secs}); err != nil {
			return false, err
		}
		if m.role != codec.RoleServer {
			m.mu.Lock()
			m.respondedKATimeoutReq = true
			m.mu.Unlock()
			return false, m.maybeSendClientQueries()
		}
		return false, nil

	case codec.TokenAskComParams:
		return false, m.WriteFrame(comParamsFrame(m.localSerial))

	case codec.TokenComParams:
		cfg, decErr := serialendpoint.DecodeComParams(f.ComParamsBody)
		if decErr == nil {
			m.setRemoteSerial(cfg)
		}
		return false, nil

	case codec.TokenMyKATimeout:
		secs, ok := codec.MyKATimeoutSeconds(f)
		if !ok {
			return false, nil
		}
		remote := time.Duration(secs) * time.Second
		m.setKeepaliveRemote(remote)
		if remote > m.keepaliveLocal {
			m.log.Log(logging.LevelWarn, logging.DirPeerToSelf, fmt.Sprintf(
				"peer keep-alive interval %s exceeds local %s; continuing, inactivity timeout is a transport concern",
				remote, m.keepaliveLocal))
		}
		return false, nil

	case codec.TokenKeepalive:
		m.touchActivity()
		return false, nil

	case codec.TokenVersion:
		m.setPeer(PeerIdentity{Role: f.Role, Version: f.Arg})
		if m.role == codec.RoleServer {
			if m.password == "" {
				m.setAuthorized(true)
				m.setPhase(PhaseAuthorized)
			} else {
				m.setPhase(PhaseAwaitingAuth)
			}
		}
		return false, nil

	case codec.TokenPwd:
		if m.role != codec.RoleServer {
			return false, nil
		}
		if f.Arg == m.password {
			m.setAuthorized(true)
			m.setPhase(PhaseAuthorized)
			if err := m.WriteFrame(comParamsFrame(m.localSerial)); err != nil {
				return false, err
			}
			return false, m.WriteFrame(codec.Frame{Token: codec.TokenAskComParams})
		}
		_ = m.WriteFrame(codec.Frame{Token: codec.TokenBadPwd})
		time.Sleep(badPasswordDelay)
		return true, ErrAuthFailed

	case codec.TokenBadPwd:
		return true, ErrAuthFailed

	case codec.TokenSecError:
		return true, ErrSecurityError

	case codec.TokenIPBlocked:
		return true, ErrIPBlocked

	case codec.TokenDisconnect:
		m.setPhase(PhaseDisconnecting)
		return true, nil

	default:
		return false, nil
	}
}

// maybeSendClientQueries implements the bridge/client sequence
// steps 3-4: once both of the server's initial GETVER/GET_KA_TIMEOUT
// requests have been answered, send our password (if configured) and
// our own GETVER/ASK_COM_PARAMS queries, then proceed straight to the
// byte pump (a later BADPWD/SECERROR/IPBLOCKED still aborts the
// session; this role never waits for an explicit "auth accepted").
func (m *Machine) maybeSendClientQueries() error {
	m.mu.Lock()
	ready := !m.clientQueriesSent && m.respondedVersionReq && m.respondedKATimeoutReq
	if ready {
		m.clientQueriesSent = true
	}
	m.mu.Unlock()
	if !ready {
		return nil
	}
	if m.password != "" {
		if err := m.WriteFrame(codec.Frame{Token: codec.TokenPwd, Arg: m.password}); err != nil {
			return err
		}
	}
	if err := m.WriteFrame(codec.Frame{Token: codec.TokenGetVer}); err != nil {
		return err
	}
	if err := m.WriteFrame(codec.Frame{Token: codec.TokenAskComParams}); err != nil {
		return err
	}
	m.setAuthorized(true)
	m.setPhase(PhaseAuthorized)
	return nil
}

func comParamsFrame(cfg serialendpoint.Config) codec.Frame {
	return codec.Frame{Token: codec.TokenComParams, ComParamsBody: serialendpoint.EncodeComParams(cfg)}
}

// WriteFrame encodes and sends one control frame.
func (m *Machine) WriteFrame(f codec.Frame) error {
	return m.WriteRaw(codec.WrapFrame(f))
}

// WriteRaw writes raw bytes (a control frame or forwarded payload) to
// the connection, serialised against concurrent writers.
func (m *Machine) WriteRaw(data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	for len(data) > 0 {
		n, err := m.conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// SoftDisconnect sends DISCONNECT and moves the phase forward; the
// caller is responsible for closing the connection shortly after, per
// a mid-session interrupt.
func (m *Machine) SoftDisconnect() error {
	m.setPhase(PhaseDisconnecting)
	return m.WriteFrame(codec.Frame{Token: codec.TokenDisconnect})
}

// Close closes the underlying connection.
func (m *Machine) Close() error {
	m.setPhase(PhaseClosed)
	return m.conn.Close()
}

func (m *Machine) setPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p > m.phase {
		m.phase = p
	}
}

// Phase reports the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) setAuthorized(v bool) {
	m.mu.Lock()
	m.authorized = v
	m.mu.Unlock()
}

// Authorized reports whether payload bytes may now be forwarded.
func (m *Machine) Authorized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authorized
}

func (m *Machine) setPeer(p PeerIdentity) {
	m.mu.Lock()
	m.peer = &p
	m.mu.Unlock()
}

// Peer returns the peer identity learned from its version frame, or nil
// if none has arrived yet.
func (m *Machine) Peer() *PeerIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peer
}

func (m *Machine) setRemoteSerial(cfg serialendpoint.Config) {
	m.mu.Lock()
	m.remoteSerial = &cfg
	m.mu.Unlock()
}

// RemoteSerial returns the peer's reported serial config, if known.
func (m *Machine) RemoteSerial() *serialendpoint.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remoteSerial
}

func (m *Machine) setKeepaliveRemote(d time.Duration) {
	m.mu.Lock()
	m.keepaliveRemote = d
	m.mu.Unlock()
}

// KeepaliveRemote returns the peer's reported keep-alive interval, or 0
// if unknown.
func (m *Machine) KeepaliveRemote() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepaliveRemote
}

func (m *Machine) touchActivity() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// LastActivity returns the time of the most recent received frame.
func (m *Machine) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// AddInBytes accounts payload bytes written to the local serial
// endpoint (network→serial direction).
func (m *Machine) AddInBytes(n int) { m.inBytes.Add(uint64(n)) }

// AddOutBytes accounts payload bytes read from the local serial
// endpoint and forwarded to the network (serial→network direction).
func (m *Machine) AddOutBytes(n int) { m.outBytes.Add(uint64(n)) }

// InBytes returns the running network→serial payload byte count.
func (m *Machine) InBytes() uint64 { return m.inBytes.Load() }

// OutBytes returns the running serial→network payload byte count.
func (m *Machine) OutBytes() uint64 { return m.outBytes.Load() }

// Role reports which of Server/Bridge/Client this Machine plays.
func (m *Machine) Role() codec.Role { return m.role }

// KeepaliveLocal returns the configured local keep-alive interval.
func (m *Machine) KeepaliveLocal() time.Duration { return m.keepaliveLocal }

// LocalSerial returns the local serial config reported in COM_PARAMS.
func (m *Machine) LocalSerial() serialendpoint.Config { return m.localSerial }
