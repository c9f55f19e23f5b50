package pump

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/soebridge/soe/internal/codec"
	"github.com/soebridge/soe/internal/serialendpoint"
	"github.com/soebridge/soe/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpoint is an in-memory serialendpoint.Endpoint for pump tests —
// the pump is generic over the interface, so a real PTY
// is not needed to exercise its relay logic.
type fakeEndpoint struct {
	mu       sync.Mutex
	readBuf  []byte
	writeBuf []byte
	closed   bool
}

func (f *fakeEndpoint) ReadAvailable(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, serialendpoint.ErrDisconnected
	}
	if len(f.readBuf) == 0 {
		return 0, nil
	}
	n := copy(buf, f.readBuf)
	f.readBuf = f.readBuf[n:]
	return n, nil
}

func (f *fakeEndpoint) WriteAll(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return serialendpoint.ErrDisconnected
	}
	f.writeBuf = append(f.writeBuf, data...)
	return nil
}

func (f *fakeEndpoint) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeEndpoint) Name() string { return "fake" }

func (f *fakeEndpoint) Feed(data []byte) {
	f.mu.Lock()
	f.readBuf = append(f.readBuf, data...)
	f.mu.Unlock()
}

func (f *fakeEndpoint) Written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.writeBuf...)
}

func negotiatedPair(t *testing.T) (*session.Machine, *session.Machine) {
	t.Helper()
	// Loopback TCP rather than net.Pipe: in the handshake both peers
	// write frames before reading any, which needs the socket's buffering.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	brConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	srvConn := <-accepted
	srv := session.NewMachine(srvConn, session.Config{
		Role:           codec.RoleServer,
		LocalVersion:   "0.0.53",
		LocalSerial:    serialendpoint.Config{PortName: "SRV-A", Baud: 9600, DataBits: 8, Parity: serialendpoint.ParityNone, StopBits: serialendpoint.StopBits1, Flow: serialendpoint.FlowNone},
		KeepaliveLocal: 120 * time.Second,
	})
	br := session.NewMachine(brConn, session.Config{
		Role:           codec.RoleBridge,
		LocalVersion:   "0.0.70",
		LocalSerial:    serialendpoint.Config{PortName: "BR-A", Baud: 9600, DataBits: 8, Parity: serialendpoint.ParityNone, StopBits: serialendpoint.StopBits1, Flow: serialendpoint.FlowNone},
		KeepaliveLocal: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Negotiate(ctx) }()
	require.NoError(t, br.Negotiate(ctx))
	require.NoError(t, <-srvErr)
	return srv, br
}

// Property 1: byte transparency between a Bridge's serial port
// and the Server's serial port under the pump.
func TestByteTransparency(t *testing.T) {
	srv, br := negotiatedPair(t)
	srvSerial := &fakeEndpoint{}
	brSerial := &fakeEndpoint{}

	srvPump := New(srvSerial, srv, nil, nil)
	brPump := New(brSerial, br, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srvPump.Run(ctx)
	go brPump.Run(ctx)

	brSerial.Feed([]byte("hello\n"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if string(srvSerial.Written()) == "hello\n" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, "hello\n", string(srvSerial.Written()))

	// Property 4: counters are monotonically non-decreasing and agree
	// with the bytes actually moved.
	assert.Equal(t, uint64(6), br.OutBytes())
	assert.Equal(t, uint64(6), srv.InBytes())
}

// Property 3: before Authorized, no bytes cross the pump.
func TestPreAuthSilence(t *testing.T) {
	srvConn, brConn := net.Pipe()
	defer srvConn.Close()
	defer brConn.Close()

	srv := session.NewMachine(srvConn, session.Config{
		Role:           codec.RoleServer,
		LocalVersion:   "0.0.53",
		Password:       "secret",
		LocalSerial:    serialendpoint.Config{PortName: "SRV-A", Baud: 9600, DataBits: 8, Parity: serialendpoint.ParityNone, StopBits: serialendpoint.StopBits1, Flow: serialendpoint.FlowNone},
		KeepaliveLocal: 120 * time.Second,
	})

	assert.False(t, srv.Authorized())
	assert.Zero(t, srv.InBytes())
	assert.Zero(t, srv.OutBytes())

	srvSerial := &fakeEndpoint{}
	srvPump := New(srvSerial, srv, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go srvPump.Run(ctx)

	<-ctx.Done()
	assert.Empty(t, srvSerial.Written())
	assert.Zero(t, srv.InBytes())
	assert.Zero(t, srv.OutBytes())
}

// S5 + property 6: soft disconnect unblocks both relays
// promptly.
func TestSoftDisconnectUnblocksPump(t *testing.T) {
	srv, br := negotiatedPair(t)
	srvSerial := &fakeEndpoint{}
	brSerial := &fakeEndpoint{}

	srvPump := New(srvSerial, srv, nil, nil)
	brPump := New(brSerial, br, nil, nil)

	ctx := context.Background()
	srvDone := make(chan error, 1)
	brDone := make(chan error, 1)
	go func() { srvDone <- srvPump.Run(ctx) }()
	go func() { brDone <- brPump.Run(ctx) }()

	require.NoError(t, br.SoftDisconnect())

	select {
	case <-srvDone:
	case <-time.After(1 * time.Second):
		t.Fatal("server pump did not unblock within cancellation bound")
	}
	select {
	case <-brDone:
	case <-time.After(1 * time.Second):
		t.Fatal("bridge pump did not unblock")
	}
}
