// Package logging defines the narrow log-sink interfaces consumed by the
// session driver and byte pump, plus a concrete implementation built on
// charmbracelet/log. Callers
// depend only on the interfaces in this file; Sink/DataSink
// implementations must never block the pump.
package logging

// Level is the fixed severity set every Sink implementation understands.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelOK
	LevelWarn
	LevelError
)

// Direction says whose activity a log line describes.
type Direction int

const (
	DirSystem Direction = iota
	DirSelfToPeer
	DirPeerToSelf
)

// Sink is the fire-and-forget control-plane log sink. Implementations
// must not block the caller for any length of time that would stall the
// pump.
type Sink interface {
	Log(level Level, dir Direction, text string)
}

// TransferMode selects how DataSink renders transferred bytes.
type TransferMode int

const (
	ModeASCII TransferMode = iota
	ModeHex
)

// TransferDirection says which way payload bytes moved.
type TransferDirection int

const (
	TransferIn TransferDirection = iota
	TransferOut
)

// DataSink is the optional, best-effort data-transfer logger. It may
// drop entries under load; it must never back-pressure the pump.
type DataSink interface {
	LogTransfer(dir TransferDirection, data []byte, mode TransferMode)
}

// NopSink discards everything; used where no sink is configured.
type NopSink struct{}

func (NopSink) Log(Level, Direction, string)                        {}
func (NopSink) LogTransfer(TransferDirection, []byte, TransferMode) {}
