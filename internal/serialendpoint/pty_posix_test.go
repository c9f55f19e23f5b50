//go:build linux || darwin

package serialendpoint

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPTYLoopback(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	ep, err := OpenPTY(Config{PortName: "COM7", Baud: 9600})
	require.NoError(t, err)
	defer ep.Close()

	_, statErr := os.Lstat("./COM7")
	assert.NoError(t, statErr, "symlink should be published")

	slave, err := os.OpenFile("./COM7", os.O_RDWR, 0)
	require.NoError(t, err)
	defer slave.Close()

	_, err = slave.Write([]byte("hello\n"))
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	var got []byte
	for time.Now().Before(deadline) && len(got) < 6 {
		buf := make([]byte, 64)
		n, err := ep.ReadAvailable(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, "hello\n", string(got))
}

func TestPTYDisconnectDetected(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	ep, err := OpenPTY(Config{PortName: "COM8"})
	require.NoError(t, err)
	defer ep.Close()

	slave, err := os.OpenFile("./COM8", os.O_RDWR, 0)
	require.NoError(t, err)
	require.NoError(t, slave.Close())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		buf := make([]byte, 64)
		_, err := ep.ReadAvailable(buf)
		if err != nil {
			assert.ErrorIs(t, err, ErrDisconnected)
			return
		}
	}
	t.Fatal("expected disconnect to be detected within 5s")
}
