// Package pump implements the two-directional byte relay that moves
// payload between a serial endpoint and a session's network connection
// once the session is Authorized.
package pump

import (
	"context"
	"time"

	"github.com/soebridge/soe/internal/codec"
	"github.com/soebridge/soe/internal/logging"
	"github.com/soebridge/soe/internal/serialendpoint"
	"github.com/soebridge/soe/internal/session"
)

// idlePoll is how long the serial→network relay waits before rechecking
// authorization state while the session hasn't reached Authorized yet.
const idlePoll = 10 * time.Millisecond

// Pump relays bytes between a serialendpoint.Endpoint and a
// session.Machine's connection. The network→serial goroutine also
// drives the session's control-frame dispatch.
type Pump struct {
	serial  serialendpoint.Endpoint
	machine *session.Machine
	log     logging.Sink
	data    logging.DataSink
}

// New builds a Pump over an already-open serial endpoint and a
// session.Machine that has completed (or is completing) negotiation.
func New(serial serialendpoint.Endpoint, machine *session.Machine, log logging.Sink, data logging.DataSink) *Pump {
	if log == nil {
		log = logging.NopSink{}
	}
	if data == nil {
		data = logging.NopSink{}
	}
	return &Pump{serial: serial, machine: machine, log: log, data: data}
}

// Run blocks until one direction terminates (error, DISCONNECT, ctx
// cancellation) and then unblocks the other within the cancellation
// bound by closing the serial endpoint and the session's connection,
// within a short, bounded delay.
func (p *Pump) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- p.serialToNetwork(runCtx) }()
	go func() { errCh <- p.networkToSerial(runCtx) }()

	first := <-errCh
	cancel()
	_ = p.serial.Close()
	_ = p.machine.Close()
	second := <-errCh

	if first != nil {
		return first
	}
	return second
}

// serialToNetwork reads whatever is available from the serial endpoint
// and forwards it as raw payload, no framing, accounting out_bytes.
func (p *Pump) serialToNetwork(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if p.machine.Phase() != session.PhaseAuthorized {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(idlePoll):
			}
			continue
		}

		n, err := p.serial.ReadAvailable(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if err := p.machine.WriteRaw(buf[:n]); err != nil {
			return err
		}
		p.machine.AddOutBytes(n)
		p.data.LogTransfer(logging.TransferOut, buf[:n], logging.ModeASCII)
	}
}

// networkToSerial consumes codec events from the connection: control
// frames are handed to the session's dispatcher, payload is written to
// the serial endpoint (only once Authorized) and accounted as in_bytes.
func (p *Pump) networkToSerial(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev, err := p.machine.ReadNext(ctx)
		if err != nil {
			return err
		}

		switch ev.Kind {
		case codec.EventControl:
			f, ok := codec.Parse(string(ev.Data))
			if !ok {
				continue // unknown token: ignored
			}
			disconnect, err := p.machine.HandleFrame(f)
			if err != nil {
				return err
			}
			if disconnect {
				return session.ErrDisconnected
			}
		case codec.EventPayload:
			if !p.machine.Authorized() {
				return session.ErrProtocolViolation
			}
			if err := p.serial.WriteAll(ev.Data); err != nil {
				return err
			}
			p.machine.AddInBytes(len(ev.Data))
			p.data.LogTransfer(logging.TransferIn, ev.Data, logging.ModeASCII)
		}
	}
}
