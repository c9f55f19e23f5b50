package session

import "errors"

var (
	// ErrAuthFailed is returned to the caller that sent (server) or
	// received (bridge/client) a failing password exchange.
	ErrAuthFailed = errors.New("session: authentication failed")

	// ErrSecurityError is returned when the peer sends SECERROR.
	ErrSecurityError = errors.New("session: peer reported a security error")

	// ErrIPBlocked is returned when the peer sends IPBLOCKED.
	ErrIPBlocked = errors.New("session: peer address is blocked")

	// ErrDisconnected is returned when the peer sends DISCONNECT.
	ErrDisconnected = errors.New("session: peer disconnected")

	// ErrProtocolViolation is returned when payload bytes arrive before
	// the session has reached the Authorized phase.
	ErrProtocolViolation = errors.New("session: protocol violation")
)
