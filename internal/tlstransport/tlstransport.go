// Package tlstransport wraps a net.Conn in optional TLS. Peer
// verification is disabled on both sides unconditionally: the shared
// password carried in the session handshake is the real authenticator
// here, not the certificate chain. This is documented, not hidden —
// operators relying on this package must know that a TLS MITM only
// needs to observe or brute-force the shared secret, not forge a
// certificate.
package tlstransport

import (
	"crypto/tls"
	"fmt"
	"net"
)

// Mode selects how (or whether) a connection is wrapped in TLS.
type Mode int

const (
	ModeOff Mode = iota
	ModeAuto
	ModeCustom
)

// ParseMode maps the --sec/--secauto CLI flags onto a Mode.
func ParseMode(secure, auto bool) Mode {
	switch {
	case auto:
		return ModeAuto
	case secure:
		return ModeCustom
	default:
		return ModeOff
	}
}

// ServerConfig describes how the Server side should wrap its listener.
type ServerConfig struct {
	Mode Mode
	// CertFile/KeyFile are used when Mode == ModeCustom.
	CertFile string
	KeyFile  string
}

// ClientConfig describes how the Bridge/Client side should wrap its
// dial. Unlike the server, client mode never generates a certificate;
// if CertFile/KeyFile are supplied they are presented as a client
// certificate, without generating one of its own.
type ClientConfig struct {
	Mode     Mode
	CertFile string
	KeyFile  string
}

// WrapServer upgrades an accepted net.Conn to TLS, generating an
// ephemeral self-signed certificate in ModeAuto or loading
// CertFile/KeyFile in ModeCustom. ModeOff returns conn unchanged.
func WrapServer(conn net.Conn, cfg ServerConfig) (net.Conn, error) {
	switch cfg.Mode {
	case ModeOff:
		return conn, nil
	case ModeAuto:
		cert, err := GenerateEphemeralCert()
		if err != nil {
			return nil, fmt.Errorf("tlstransport: generate ephemeral cert: %w", err)
		}
		return tlsServerHandshake(conn, &tls.Config{Certificates: []tls.Certificate{cert}})
	case ModeCustom:
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tlstransport: load cert/key: %w", err)
		}
		return tlsServerHandshake(conn, &tls.Config{Certificates: []tls.Certificate{cert}})
	default:
		return conn, nil
	}
}

// WrapClient upgrades a dialled net.Conn to TLS. Peer verification is
// always disabled.
func WrapClient(conn net.Conn, cfg ClientConfig) (net.Conn, error) {
	if cfg.Mode == ModeOff {
		return conn, nil
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: true} //nolint:gosec // intentional: the shared password is the real authenticator, not the certificate chain
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tlstransport: load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	tlsConn := tls.Client(conn, tlsCfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("tlstransport: client handshake: %w", err)
	}
	return tlsConn, nil
}

func tlsServerHandshake(conn net.Conn, cfg *tls.Config) (net.Conn, error) {
	cfg.ClientAuth = tls.NoClientCert
	tlsConn := tls.Server(conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("tlstransport: server handshake: %w", err)
	}
	return tlsConn, nil
}
