package session

import (
	"context"
	"time"

	"github.com/soebridge/soe/internal/codec"
)

// RunKeepaliveTicker emits KEEPALIVE every m.KeepaliveLocal() while the
// session is Authorized, until ctx is cancelled or a write fails (spec
// §4.4 "each side independently emits KEEPALIVE"). It is meant to run in
// its own goroutine, one of the "multiple independent tasks" of §5.
func (m *Machine) RunKeepaliveTicker(ctx context.Context) error {
	interval := m.KeepaliveLocal()
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.Phase() != PhaseAuthorized {
				continue
			}
			if err := m.WriteFrame(codec.Frame{Token: codec.TokenKeepalive}); err != nil {
				return err
			}
		}
	}
}
