//go:build windows

package serialendpoint

/*------------------------------------------------------------------
 *
 * Purpose:	Windows named-pipe endpoint: a duplex message-mode pipe
 *		created by the endpoint that "owns" the virtual port, with
 *		one maximum instance.
 *
 * Grounded on:	kryptco-kr's src/common/socket/socket_windows.go, which
 *		uses winio.ListenPipe(AGENT_PIPE, nil) to publish a named
 *		pipe and accept exactly this kind of duplex client. This
 *		generalizes that one hard-coded agent pipe into an
 *		arbitrary requested pipe name, and wraps the accepted
 *		net.Conn in the Endpoint interface instead of a raw
 *		net.Listener.
 *
 *------------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	winio "github.com/Microsoft/go-winio"
)

const pipeNamespacePrefix = `\\.\pipe\`

type namedPipe struct {
	name     string
	listener net.Listener
	conn     net.Conn

	chunks  chan []byte
	rerr    chan error
	closed  chan struct{}
	pending []byte // unread tail of the last chunk, carried to the next call
}

// OpenNamedPipe creates (and waits for one client to connect to) a
// message-mode named pipe. cfg.PortName is a short string; the OS
// namespace prefix \\.\pipe\ is applied here.
func OpenNamedPipe(cfg Config) (Endpoint, error) {
	full := pipeNamespacePrefix + cfg.PortName

	pipeCfg := &winio.PipeConfig{
		MessageMode:      true,
		InputBufferSize:  64 * 1024,
		OutputBufferSize: 64 * 1024,
	}

	l, err := winio.ListenPipe(full, pipeCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: listen on pipe %s: %v", ErrIO, full, err)
	}

	conn, err := l.Accept()
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("%w: accept on pipe %s: %v", ErrIO, full, err)
	}

	p := &namedPipe{
		name:     cfg.PortName,
		listener: l,
		conn:     conn,
		chunks:   make(chan []byte, 64),
		rerr:     make(chan error, 1),
		closed:   make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

func (p *namedPipe) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.chunks <- chunk:
			case <-p.closed:
				return
			}
		}
		if err != nil {
			select {
			case p.rerr <- err:
			case <-p.closed:
			}
			return
		}
	}
}

func (p *namedPipe) Name() string { return p.name }

func (p *namedPipe) ReadAvailable(buf []byte) (int, error) {
	if len(p.pending) > 0 {
		n := copy(buf, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}
	select {
	case chunk := <-p.chunks:
		n := copy(buf, chunk)
		if n < len(chunk) {
			p.pending = chunk[n:]
		}
		return n, nil
	case err := <-p.rerr:
		if errors.Is(err, io.EOF) {
			return 0, ErrDisconnected
		}
		return 0, fmt.Errorf("%w: read pipe %s: %v", ErrIO, p.name, err)
	case <-time.After(readTimeout):
		return 0, nil
	case <-p.closed:
		return 0, ErrDisconnected
	}
}

func (p *namedPipe) WriteAll(data []byte) error {
	for len(data) > 0 {
		n, err := p.conn.Write(data)
		if err != nil {
			return fmt.Errorf("%w: write pipe %s: %v", ErrIO, p.name, err)
		}
		data = data[n:]
	}
	return nil
}

func (p *namedPipe) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	connErr := p.conn.Close()
	listenErr := p.listener.Close()
	if connErr != nil {
		return connErr
	}
	return listenErr
}
