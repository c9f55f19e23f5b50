package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func collect(t *testing.T, chunks ...[]byte) []Event {
	t.Helper()
	s := NewScanner()
	var events []Event
	for _, c := range chunks {
		s.Feed(c, func(e Event) { events = append(events, e) })
	}
	return events
}

// S4: "A__#GET" then "VER#__B__#KEEPALIVE#__C" must produce
// Payload("A"), Control(GETVER), Payload("B"), Control(KEEPALIVE),
// Payload("C"), regardless of how the input is chunked.
func TestS4Fragmentation(t *testing.T) {
	events := collect(t, []byte("A__#GET"), []byte("VER#__B__#KEEPALIVE#__C"))

	require.Len(t, events, 5)
	assert.Equal(t, EventPayload, events[0].Kind)
	assert.Equal(t, "A", string(events[0].Data))
	assert.Equal(t, EventControl, events[1].Kind)
	assert.Equal(t, "GETVER", string(events[1].Data))
	assert.Equal(t, EventPayload, events[2].Kind)
	assert.Equal(t, "B", string(events[2].Data))
	assert.Equal(t, EventControl, events[3].Kind)
	assert.Equal(t, "KEEPALIVE", string(events[3].Data))
	assert.Equal(t, EventPayload, events[4].Kind)
	assert.Equal(t, "C", string(events[4].Data))
}

func TestWholeInputAtOnceMatchesChunked(t *testing.T) {
	whole := "A__#GETVER#__B__#KEEPALIVE#__C"
	wholeEvents := collect(t, []byte(whole))
	chunkedEvents := collect(t, []byte("A__#GET"), []byte("VER#__B__#KEEPALIVE#__C"))

	require.Equal(t, len(wholeEvents), len(chunkedEvents))
	for i := range wholeEvents {
		assert.Equal(t, wholeEvents[i].Kind, chunkedEvents[i].Kind)
		assert.Equal(t, string(wholeEvents[i].Data), string(chunkedEvents[i].Data))
	}
}

func TestCoalescedFrames(t *testing.T) {
	events := collect(t, []byte("__#GETVER#____#KEEPALIVE#__"))
	require.Len(t, events, 2)
	assert.Equal(t, EventControl, events[0].Kind)
	assert.Equal(t, "GETVER", string(events[0].Data))
	assert.Equal(t, EventControl, events[1].Kind)
	assert.Equal(t, "KEEPALIVE", string(events[1].Data))
}

func TestNoDelimiterIsAllPayload(t *testing.T) {
	input := "just plain bytes, no frames here"
	events := collect(t, []byte(input))
	// A byte that cannot begin "__#" is emitted at once as its own event,
	// so the event sequence does not depend on how the input is chunked.
	require.Len(t, events, len(input))
	var joined []byte
	for _, e := range events {
		assert.Equal(t, EventPayload, e.Kind)
		joined = append(joined, e.Data...)
	}
	assert.Equal(t, input, string(joined))
}

func TestUnterminatedFrameBeyondCapBecomesPayload(t *testing.T) {
	long := bytes.Repeat([]byte("x"), MaxFrameLen+10)
	input := append([]byte("__#"), long...)
	events := collect(t, input)

	// The frame is abandoned once MaxFrameLen bytes follow "__#": the
	// delimiter and those bytes go out as one payload event, and the ten
	// bytes after them follow as ordinary one-byte payload events.
	require.Len(t, events, 11)
	assert.Equal(t, input[:len("__#")+MaxFrameLen], events[0].Data)
	var joined []byte
	for _, e := range events {
		assert.Equal(t, EventPayload, e.Kind)
		joined = append(joined, e.Data...)
	}
	assert.Equal(t, input, joined)
}

func TestEmbeddedUnderscoresDoNotFalseTrigger(t *testing.T) {
	events := collect(t, []byte("a_b__c_d"))
	// "_" and "__" are held back only until the next byte shows they do
	// not start "__#".
	var got []string
	for _, e := range events {
		assert.Equal(t, EventPayload, e.Kind)
		got = append(got, string(e.Data))
	}
	assert.Equal(t, []string{"a", "_b", "__c", "_d"}, got)
}

// Property 5: for any split of the concatenation of N control
// frames and payload runs into arbitrary chunks, the parser emits the
// same event sequence as when fed the whole input at once.
func TestPropertyParserRobustnessToFragmentation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(t, "n")
		var whole []byte
		frameChoices := []Frame{
			{Token: TokenGetVer},
			{Token: TokenKeepalive},
			{Token: TokenDisconnect},
			{Token: TokenAskComParams},
			{Token: TokenMyKATimeout, Arg: "30"},
			{Token: TokenPwd, Arg: "secret"},
		}
		for i := 0; i < n; i++ {
			payload := rapid.StringMatching(`[a-zA-Z0-9 \t]{0,8}`).Draw(t, "payload")
			whole = append(whole, []byte(payload)...)
			f := rapid.SampledFrom(frameChoices).Draw(t, "frame")
			whole = append(whole, WrapFrame(f)...)
		}
		tail := rapid.StringMatching(`[a-zA-Z0-9 \t]{0,8}`).Draw(t, "tail")
		whole = append(whole, []byte(tail)...)

		wholeEvents := collect(t, whole)

		// Split whole into a random set of chunks.
		var chunks [][]byte
		remaining := whole
		for len(remaining) > 0 {
			cut := rapid.IntRange(1, len(remaining)).Draw(t, "cut")
			chunks = append(chunks, remaining[:cut])
			remaining = remaining[cut:]
		}

		chunkedEvents := collect(t, chunks...)

		require.Equal(t, len(wholeEvents), len(chunkedEvents))
		for i := range wholeEvents {
			assert.Equal(t, wholeEvents[i].Kind, chunkedEvents[i].Kind)
			assert.Equal(t, string(wholeEvents[i].Data), string(chunkedEvents[i].Data))
		}
	})
}

// Property 2: a wrapped frame with a recognised token is kept out of the
// payload stream: fed on its own it yields exactly one Control event and
// no payload, and that event's Data parses back to the frame's token.
func TestPropertyControlFrameIsolation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tokens := []Frame{
			{Token: TokenGetVer},
			{Token: TokenKeepalive},
			{Token: TokenDisconnect},
		}
		f := rapid.SampledFrom(tokens).Draw(t, "frame")
		wrapped := WrapFrame(f)

		events := collect(t, wrapped)
		require.Len(t, events, 1)
		assert.Equal(t, EventControl, events[0].Kind)

		parsed, ok := Parse(string(events[0].Data))
		require.True(t, ok)
		assert.Equal(t, f.Token, parsed.Token)
	})
}
