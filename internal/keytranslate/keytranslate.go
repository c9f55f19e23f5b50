// Package keytranslate rewrites Windows console extended-key sequences
// into the equivalent ANSI escape sequence, so the
// server-side serial consumer sees a uniform representation regardless
// of which OS the Client driver runs on. Non-extended bytes pass
// through unmodified.
package keytranslate

// ExtendedPrefix is the lead byte Windows uses for extended keys
// (function/arrow/navigation keys) in raw console input.
const ExtendedPrefix = 0xE0

// scanCodeToANSI maps the second byte of a Windows extended-key
// sequence to the ANSI escape sequence a POSIX terminal would send for
// the equivalent key.
var scanCodeToANSI = map[byte]string{
	0x48: "\x1b[A",  // Up
	0x50: "\x1b[B",  // Down
	0x4D: "\x1b[C",  // Right
	0x4B: "\x1b[D",  // Left
	0x47: "\x1b[H",  // Home
	0x4F: "\x1b[F",  // End
	0x49: "\x1b[5~", // Page Up
	0x51: "\x1b[6~", // Page Down
	0x52: "\x1b[2~", // Insert
	0x53: "\x1b[3~", // Delete
}

// Translator consumes a byte stream of raw keyboard input one byte at a
// time and emits the translated stream through a callback. It holds at
// most one pending byte (the extended-key prefix) between calls.
type Translator struct {
	pendingPrefix bool
}

// Feed processes one input byte, invoking emit zero or one times with
// the bytes that should actually be transmitted.
func (t *Translator) Feed(b byte, emit func([]byte)) {
	if t.pendingPrefix {
		t.pendingPrefix = false
		if seq, ok := scanCodeToANSI[b]; ok {
			emit([]byte(seq))
			return
		}
		// Unrecognised scan code: pass the original two bytes through
		// rather than silently dropping the key.
		emit([]byte{ExtendedPrefix, b})
		return
	}
	if b == ExtendedPrefix {
		t.pendingPrefix = true
		return
	}
	emit([]byte{b})
}

// FeedAll is a convenience for translating a full buffer at once.
func (t *Translator) FeedAll(data []byte) []byte {
	var out []byte
	for _, b := range data {
		t.Feed(b, func(chunk []byte) { out = append(out, chunk...) })
	}
	return out
}
