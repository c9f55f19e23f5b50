package serialendpoint

import "errors"

// Sentinel error kinds every Endpoint implementation returns. Disconnected is the only one the
// byte pump treats as terminal-but-recoverable; the rest are fatal to
// the owning session.
var (
	ErrNotFound         = errors.New("serialendpoint: not found")
	ErrInUse            = errors.New("serialendpoint: in use")
	ErrPermissionDenied = errors.New("serialendpoint: permission denied")
	ErrDisconnected     = errors.New("serialendpoint: disconnected")
	ErrIO               = errors.New("serialendpoint: i/o error")
)
