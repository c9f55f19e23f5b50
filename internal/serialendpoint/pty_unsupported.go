//go:build !linux && !darwin

package serialendpoint

import "fmt"

// OpenPTY is only available on POSIX hosts. On Windows, use the named
// pipe endpoint instead.
func OpenPTY(cfg Config) (Endpoint, error) {
	return nil, fmt.Errorf("%w: pseudo-terminals are not available on this platform, use --namedpipe", ErrIO)
}
