package keytranslate

import "testing"

func TestPlainByteTakesPassThrough(t *testing.T) {
	var tr Translator
	out := tr.FeedAll([]byte("abc"))
	if string(out) != "abc" {
		t.Fatalf("got %q", out)
	}
}

func TestExtendedArrowKeysTranslate(t *testing.T) {
	cases := map[byte]string{
		0x48: "\x1b[A",
		0x50: "\x1b[B",
		0x4D: "\x1b[C",
		0x4B: "\x1b[D",
	}
	for scan, want := range cases {
		var tr Translator
		out := tr.FeedAll([]byte{ExtendedPrefix, scan})
		if string(out) != want {
			t.Fatalf("scan %#x: got %q want %q", scan, out, want)
		}
	}
}

func TestUnknownScanCodePassesThroughBothBytes(t *testing.T) {
	var tr Translator
	out := tr.FeedAll([]byte{ExtendedPrefix, 0x00})
	if len(out) != 2 || out[0] != ExtendedPrefix || out[1] != 0x00 {
		t.Fatalf("got %v", out)
	}
}

func TestExtendedSequenceSplitAcrossFeeds(t *testing.T) {
	var tr Translator
	var out []byte
	tr.Feed(ExtendedPrefix, func(b []byte) { out = append(out, b...) })
	tr.Feed(0x48, func(b []byte) { out = append(out, b...) })
	if string(out) != "\x1b[A" {
		t.Fatalf("got %q", out)
	}
}
