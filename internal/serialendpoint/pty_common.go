//go:build linux || darwin

package serialendpoint

/*------------------------------------------------------------------
 *
 * Purpose:	POSIX pseudo-terminal endpoint. When a name beginning
 *		with "COM" is requested, open a PTY master/slave pair,
 *		keep the master for the pump, and publish the slave as a
 *		symlink named after the requested port in the working
 *		directory.
 *
 * Grounded on:	src/kiss.go's kisspt_open_pt, which does exactly this
 *		(pty.Open(), then os.Symlink(pt_slave.Name(),
 *		"/tmp/kisstnc")) for its single hard-coded virtual KISS
 *		TNC name; this generalizes the symlink target to an
 *		arbitrary requested port name and adds raw-mode setup on
 *		the slave so bytes pass through verbatim (the contract requires
 *		"no echo, no line discipline").
 *
 *------------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

type posixPTY struct {
	requestedName string
	symlinkPath   string
	master        *os.File
	slave         *os.File

	chunks  chan []byte
	rerr    chan error
	closed  chan struct{}
	pending []byte // unread tail of the last chunk, carried to the next call
}

// OpenPTY opens a new pseudo-terminal pair and publishes a symlink named
// after cfg.PortName (with any leading "COM" kept verbatim, so "COM1"
// yields a symlink literally named "./COM1") pointing at the slave.
func OpenPTY(cfg Config) (Endpoint, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open pty for %s: %v", ErrIO, cfg.PortName, err)
	}

	if err := setRawMode(slave); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("%w: set raw mode on %s: %v", ErrIO, slave.Name(), err)
	}

	symlinkPath := "./" + cfg.PortName
	os.Remove(symlinkPath)
	if err := os.Symlink(slave.Name(), symlinkPath); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("%w: symlink %s -> %s: %v", ErrIO, symlinkPath, slave.Name(), err)
	}

	p := &posixPTY{
		requestedName: cfg.PortName,
		symlinkPath:   symlinkPath,
		master:        master,
		slave:         slave,
		chunks:        make(chan []byte, 64),
		rerr:          make(chan error, 1),
		closed:        make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

// setRawMode puts the slave side into raw mode: no echo, no line
// discipline, byte-at-a-time delivery. This is what a real serial line's
// other end would see; bytes must pass through verbatim.
func setRawMode(f *os.File) error {
	getReq, setReq := termiosIoctls()
	termios, err := unix.IoctlGetTermios(int(f.Fd()), getReq)
	if err != nil {
		return err
	}
	unix.CfmakeRaw(termios)
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(int(f.Fd()), setReq, termios)
}

func (p *posixPTY) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := p.master.Read(buf)
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

func (p *posixPTY) Name() string { return p.requestedName }

func (p *posixPTY) ReadAvailable(buf []byte) (int, error) {
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
		if errors.Is(err, io.EOF) || errors.Is(err, unix.EIO) {
			return 0, ErrDisconnected
		}
		return 0, fmt.Errorf("%w: read pty %s: %v", ErrIO, p.requestedName, err)
	case <-time.After(readTimeout):
		return 0, nil
	case <-p.closed:
		return 0, ErrDisconnected
	}
}

func (p *posixPTY) WriteAll(data []byte) error {
	for len(data) > 0 {
		n, err := p.master.Write(data)
		if err != nil {
			if errors.Is(err, unix.EIO) {
				return fmt.Errorf("%w: write pty %s: %v", ErrDisconnected, p.requestedName, err)
			}
			return fmt.Errorf("%w: write pty %s: %v", ErrIO, p.requestedName, err)
		}
		data = data[n:]
	}
	return nil
}

func (p *posixPTY) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	os.Remove(p.symlinkPath)
	slaveErr := p.slave.Close()
	masterErr := p.master.Close()
	if masterErr != nil {
		return masterErr
	}
	return slaveErr
}
