//go:build !windows

package serialendpoint

import "fmt"

// OpenNamedPipe is only available on Windows. On POSIX
// hosts, use the pseudo-terminal endpoint instead.
func OpenNamedPipe(cfg Config) (Endpoint, error) {
	return nil, fmt.Errorf("%w: named pipes are not available on this platform, use --comport", ErrIO)
}
