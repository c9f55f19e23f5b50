package serialendpoint

import (
	"runtime"
	"strings"
)

// Kind selects which concrete Endpoint implementation to open.
type Kind int

const (
	// KindAuto picks physical vs. PTY based on cfg.PortName and the
	// host platform: a "COM..." name on a POSIX host
	// opens a pseudo-terminal instead of trying a literal device node.
	KindAuto Kind = iota
	KindPhysical
	KindPTY
	KindNamedPipe
)

// Open dispatches to the concrete Endpoint implementation selected by
// kind (or inferred from cfg when kind is KindAuto).
func Open(kind Kind, cfg Config) (Endpoint, error) {
	switch resolveKind(kind, cfg) {
	case KindPTY:
		return OpenPTY(cfg)
	case KindNamedPipe:
		return OpenNamedPipe(cfg)
	default:
		return OpenPhysical(cfg)
	}
}

func resolveKind(kind Kind, cfg Config) Kind {
	if kind != KindAuto {
		return kind
	}
	if runtime.GOOS != "windows" && strings.HasPrefix(strings.ToUpper(cfg.PortName), "COM") {
		return KindPTY
	}
	return KindPhysical
}
