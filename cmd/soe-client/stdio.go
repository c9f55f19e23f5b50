package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"time"

	"github.com/soebridge/soe/internal/keytranslate"
	"github.com/soebridge/soe/internal/serialendpoint"
)

// readTimeout matches the short-poll contract serialendpoint.Endpoint
// documents, so the byte pump re-checks its stop condition promptly.
const readTimeout = 100 * time.Millisecond

// stdio adapts the process's keyboard (stdin) and screen (stdout) to the
// serialendpoint.Endpoint contract, so the Client driver can hand it to
// the same byte pump a Server or Bridge uses over a real serial line.
// Windows extended-key sequences are translated to ANSI escapes before
// being counted as read.
type stdio struct {
	out *bufio.Writer
	tr  keytranslate.Translator

	chunks  chan []byte
	rerr    chan error
	closed  chan struct{}
	pending []byte // unread tail of the last chunk, carried to the next call
}

func newStdio() *stdio {
	s := &stdio{
		out:    bufio.NewWriter(os.Stdout),
		chunks: make(chan []byte, 64),
		rerr:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *stdio) Name() string { return "stdio" }

func (s *stdio) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			translated := s.tr.FeedAll(buf[:n])
			if len(translated) > 0 {
				select {
				case s.chunks <- translated:
				case <-s.closed:
					return
				}
			}
		}
		if err != nil {
			select {
			case s.rerr <- err:
			case <-s.closed:
			}
			return
		}
	}
}

func (s *stdio) ReadAvailable(buf []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(buf, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	select {
	case chunk := <-s.chunks:
		n := copy(buf, chunk)
		if n < len(chunk) {
			s.pending = chunk[n:]
		}
		return n, nil
	case err := <-s.rerr:
		if errors.Is(err, io.EOF) {
			return 0, serialendpoint.ErrDisconnected
		}
		return 0, err
	case <-time.After(readTimeout):
		return 0, nil
	case <-s.closed:
		return 0, serialendpoint.ErrDisconnected
	}
}

func (s *stdio) WriteAll(data []byte) error {
	if _, err := s.out.Write(data); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *stdio) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}
