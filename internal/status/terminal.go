package status

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

/*------------------------------------------------------------------
 *
 * Purpose:	A single-line terminal status bar, restyled each Update.
 *		A full TUI is out of scope; this is freely
 *		implemented here as the thinnest surface that still
 *		exercises lipgloss the way the console log output uses
 *		it for colour.
 *
 *------------------------------------------------------------------*/

var (
	roleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	authStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	unauthStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	counterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// TerminalBar renders each Snapshot as one overwritten line of styled
// text. Safe for concurrent Update calls.
type TerminalBar struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalBar returns a bar writing to w (typically os.Stdout).
func NewTerminalBar(w io.Writer) *TerminalBar {
	return &TerminalBar{w: w}
}

// Update renders one snapshot, overwriting the previous line with a
// carriage return (no ANSI cursor tricks needed for a single line).
func (b *TerminalBar) Update(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	authLabel := unauthStyle.Render("unauthorized")
	if s.Authorized {
		authLabel = authStyle.Render("authorized")
	}

	elapsed := time.Duration(0)
	if !s.Since.IsZero() {
		elapsed = time.Since(s.Since).Truncate(time.Second)
	}

	line := fmt.Sprintf("\r%s %s  %s<->%s  local=%s remote=%s  %s  in=%d out=%d  %s",
		roleStyle.Render(s.Role.String()),
		authLabel,
		s.LocalEndpoint, s.RemoteEndpoint,
		s.LocalSerial, s.RemoteSerial,
		counterStyle.Render(elapsed.String()),
		s.InBytes, s.OutBytes,
		s.RemoteVersion,
	)
	fmt.Fprint(b.w, line)
}
