//go:build linux

package serialendpoint

import "golang.org/x/sys/unix"

func termiosIoctls() (get, set uint) {
	return unix.TCGETS, unix.TCSETS
}
