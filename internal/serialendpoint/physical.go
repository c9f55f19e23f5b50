package serialendpoint

/*------------------------------------------------------------------
 *
 * Purpose:	Interface to a physical serial port, hiding operating
 *		system differences.
 *
 * Description:	Mirrors the open/write/get/close shape of the
 *		teacher's serial_port.go, generalized to the non-blocking
 *		ReadAvailable contract this package defines. Only the baud
 *		rate from Config is applied to the device; its data bits,
 *		parity, stop bits and flow settings are not. The port is
 *		opened in raw mode. github.com/pkg/term's Read blocks for at least
 *		one byte in raw mode (same VMIN=1/VTIME=0 behaviour the
 *		teacher left as a TODO in serial_port.go), so a background
 *		reader goroutine feeds a channel and ReadAvailable applies
 *		a short timeout on top of that.
 *
 *------------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/term"
)

// readTimeout bounds every ReadAvailable call so the pump's stop flag is
// re-checked promptly.
const readTimeout = 100 * time.Millisecond

type physical struct {
	name string
	t    *term.Term

	chunks  chan []byte
	rerr    chan error
	closed  chan struct{}
	pending []byte // unread tail of the last chunk, carried to the next call
}

// OpenPhysical opens a real serial device (e.g. /dev/ttyUSB0 or COM5).
func OpenPhysical(cfg Config) (Endpoint, error) {
	t, err := term.Open(cfg.PortName, term.RawMode)
	if err != nil {
		return nil, translateOpenErr(cfg.PortName, err)
	}

	if cfg.Baud != 0 {
		if err := t.SetSpeed(cfg.Baud); err != nil {
			t.Close()
			return nil, fmt.Errorf("%w: set speed %d on %s: %v", ErrIO, cfg.Baud, cfg.PortName, err)
		}
	}

	p := &physical{
		name:   cfg.PortName,
		t:      t,
		chunks: make(chan []byte, 64),
		rerr:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

func (p *physical) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := p.t.Read(buf)
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

func (p *physical) Name() string { return p.name }

func (p *physical) ReadAvailable(buf []byte) (int, error) {
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
		return 0, fmt.Errorf("%w: read %s: %v", ErrIO, p.name, err)
	case <-time.After(readTimeout):
		return 0, nil
	case <-p.closed:
		return 0, ErrDisconnected
	}
}

func (p *physical) WriteAll(data []byte) error {
	for len(data) > 0 {
		n, err := p.t.Write(data)
		if err != nil {
			return fmt.Errorf("%w: write %s: %v", ErrIO, p.name, err)
		}
		data = data[n:]
	}
	return nil
}

func (p *physical) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return p.t.Close()
}

func translateOpenErr(name string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, name, err)
	}
	return fmt.Errorf("%w: open %s: %v", ErrIO, name, err)
}
