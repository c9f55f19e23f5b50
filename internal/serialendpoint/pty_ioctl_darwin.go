//go:build darwin

package serialendpoint

import "golang.org/x/sys/unix"

func termiosIoctls() (get, set uint) {
	return unix.TIOCGETA, unix.TIOCSETA
}
