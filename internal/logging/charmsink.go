package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Concrete Sink/DataSink built on charmbracelet/log, with an
 *		optional rotating file tee.
 *
 * Grounded on: textcolor.go's dw_color_e level enum
 *		(generalized from colour-only output to full levelled
 *		logging) and log.go's size-capped rotation-by-day pattern
 *		(generalized from "daily CSV of decoded packets" to a
 *		rotating plain-text session transcript).
 *
 *------------------------------------------------------------------*/

// RotationConfig controls the optional on-disk tee.
type RotationConfig struct {
	// Dir is the directory archived log files are written to. Empty
	// disables file logging entirely.
	Dir string
	// MaxBytes is the size at which the active file is rotated.
	MaxBytes int64
	// MaxArchives is how many rotated files are kept; the oldest is
	// removed once this is exceeded.
	MaxArchives int
}

// CharmSink is a Sink/DataSink pair backed by charmbracelet/log, with an
// optional tee to a size-rotated file.
type CharmSink struct {
	console *charmlog.Logger

	mu       sync.Mutex
	rotation RotationConfig
	file     *os.File
	written  int64
}

// NewCharmSink builds a sink writing coloured, levelled lines to w (use
// os.Stderr for interactive use), optionally teeing to a rotating file.
func NewCharmSink(w io.Writer, rotation RotationConfig) (*CharmSink, error) {
	console := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	s := &CharmSink{console: console, rotation: rotation}
	if rotation.Dir != "" {
		if err := os.MkdirAll(rotation.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		if err := s.openActiveFile(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *CharmSink) activeFilePath() string {
	return filepath.Join(s.rotation.Dir, "session.log")
}

func (s *CharmSink) openActiveFile() error {
	f, err := os.OpenFile(s.activeFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open session log: %w", err)
	}
	info, statErr := f.Stat()
	if statErr == nil {
		s.written = info.Size()
	}
	s.file = f
	return nil
}

// Log implements Sink. It never returns an error — a failing file tee
// degrades to console-only rather than blocking the pump.
func (s *CharmSink) Log(level Level, dir Direction, text string) {
	line := fmt.Sprintf("[%s] %s", directionLabel(dir), text)
	switch level {
	case LevelDebug:
		s.console.Debug(line)
	case LevelOK, LevelInfo:
		s.console.Info(line)
	case LevelWarn:
		s.console.Warn(line)
	case LevelError:
		s.console.Error(line)
	}
	s.teeToFile(level, dir, text)
}

func directionLabel(dir Direction) string {
	switch dir {
	case DirSelfToPeer:
		return "self->peer"
	case DirPeerToSelf:
		return "peer->self"
	default:
		return "system"
	}
}

func (s *CharmSink) teeToFile(level Level, dir Direction, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	line := fmt.Sprintf("%s %-10s %-10s %s\n", time.Now().Format(time.RFC3339), levelLabel(level), directionLabel(dir), text)
	n, err := s.file.WriteString(line)
	if err != nil {
		return
	}
	s.written += int64(n)
	if s.rotation.MaxBytes > 0 && s.written >= s.rotation.MaxBytes {
		s.rotateLocked()
	}
}

func levelLabel(l Level) string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelOK:
		return "ok"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// rotateLocked closes the active file, renames it with a timestamp
// suffix, trims old archives beyond MaxArchives, and opens a fresh
// active file. Caller must hold s.mu.
func (s *CharmSink) rotateLocked() {
	_ = s.file.Close()
	archived := filepath.Join(s.rotation.Dir, fmt.Sprintf("session-%s.log", time.Now().Format("20060102-150405")))
	_ = os.Rename(s.activeFilePath(), archived)
	s.trimArchivesLocked()
	if err := s.openActiveFile(); err != nil {
		s.file = nil
	}
}

func (s *CharmSink) trimArchivesLocked() {
	if s.rotation.MaxArchives <= 0 {
		return
	}
	entries, err := os.ReadDir(s.rotation.Dir)
	if err != nil {
		return
	}
	var archives []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Base(e.Name()) != "session.log" {
			archives = append(archives, e.Name())
		}
	}
	if len(archives) <= s.rotation.MaxArchives {
		return
	}
	// Names sort lexically in creation order since the timestamp suffix
	// is fixed-width and zero-padded.
	excess := len(archives) - s.rotation.MaxArchives
	for i := 0; i < excess; i++ {
		_ = os.Remove(filepath.Join(s.rotation.Dir, archives[i]))
	}
}

// LogTransfer implements DataSink, rendering ascii or hex per mode.
func (s *CharmSink) LogTransfer(dir TransferDirection, data []byte, mode TransferMode) {
	arrow := "out"
	if dir == TransferIn {
		arrow = "in"
	}
	var rendered string
	if mode == ModeHex {
		rendered = fmt.Sprintf("% x", data)
	} else {
		rendered = string(data)
	}
	s.console.Debugf("[%s] %d bytes: %q", arrow, len(data), rendered)
}

// Close closes the active file tee, if any.
func (s *CharmSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
