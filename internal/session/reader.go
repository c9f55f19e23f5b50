package session

import (
	"context"
	"net"
	"time"

	"github.com/soebridge/soe/internal/codec"
)

// readTimeout bounds every individual conn.Read call so that the caller
// can re-check ctx/the stop flag promptly, per the ≤100ms suspension
// rule.
const readTimeout = 100 * time.Millisecond

// frameReader turns a net.Conn into a sequence of codec.Events,
// buffering any events decoded from a read that produced more than one.
type frameReader struct {
	conn    net.Conn
	scanner *codec.Scanner
	pending []codec.Event
	readBuf []byte
}

func newFrameReader(conn net.Conn) *frameReader {
	return &frameReader{
		conn:    conn,
		scanner: codec.NewScanner(),
		readBuf: make([]byte, 4096),
	}
}

// next blocks until an Event is available, ctx is cancelled, or the
// connection errors out (excluding read timeouts, which are retried).
func (r *frameReader) next(ctx context.Context) (codec.Event, error) {
	for {
		if len(r.pending) > 0 {
			ev := r.pending[0]
			r.pending = r.pending[1:]
			return ev, nil
		}
		select {
		case <-ctx.Done():
			return codec.Event{}, ctx.Err()
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := r.conn.Read(r.readBuf)
		if n > 0 {
			r.scanner.Feed(r.readBuf[:n], func(e codec.Event) {
				r.pending = append(r.pending, e)
			})
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return codec.Event{}, err
		}
	}
}
