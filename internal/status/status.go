// Package status defines the narrow status-update interface consumed by
// the session driver, plus a terminal status bar implementation built
// on lipgloss.
package status

import (
	"time"

	"github.com/soebridge/soe/internal/codec"
)

// Snapshot carries everything the status view needs to render one
// update: role, version, endpoints, serial config (local + remote), and
// counters.
type Snapshot struct {
	Role           codec.Role
	LocalVersion   string
	RemoteVersion  string
	LocalEndpoint  string
	RemoteEndpoint string
	LocalSerial    string // compact rendering, e.g. "SRV-A 9600 8N1N"
	RemoteSerial   string
	InBytes        uint64
	OutBytes       uint64
	Authorized     bool
	Since          time.Time
}

// Updater receives snapshots as the session progresses. Implementations
// may be a no-op; updates must never block the caller.
type Updater interface {
	Update(s Snapshot)
}

// Nop discards every snapshot.
type Nop struct{}

func (Nop) Update(Snapshot) {}
