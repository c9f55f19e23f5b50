package serialendpoint

/*------------------------------------------------------------------
 *
 * Purpose:	Uniform handle over a physical serial port, a Windows
 *		named pipe, or a POSIX pseudo-terminal, so the byte pump
 *		is generic over whichever one is in play.
 *
 *------------------------------------------------------------------*/

// Endpoint is the four-operation contract every concrete serial-like
// transport implements. ReadAvailable must never block for more than a
// short, implementation-defined interval; it returns (0, nil) when there
// is nothing to read right now, not an error.
type Endpoint interface {
	// ReadAvailable reads whatever is available right now into buf and
	// returns the number of bytes read. It returns ErrDisconnected once
	// the peer end of the transport has gone away, and ErrIO for any
	// other read failure.
	ReadAvailable(buf []byte) (int, error)

	// WriteAll writes every byte of data, retrying partial writes
	// internally; no payload bytes may be silently dropped.
	WriteAll(data []byte) error

	// Close releases the underlying OS resource. Close is idempotent.
	Close() error

	// Name reports the port/pipe/pty name this endpoint was opened as,
	// for logging and status display.
	Name() string
}

// Opener constructs an Endpoint from a Config. Each concrete
// implementation (physical, pty, namedpipe) provides one.
type Opener func(cfg Config) (Endpoint, error)
