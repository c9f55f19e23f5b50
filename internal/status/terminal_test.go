package status

import (
	"bytes"
	"testing"
	"time"

	"github.com/soebridge/soe/internal/codec"
	"github.com/stretchr/testify/assert"
)

func TestTerminalBarRendersKeyFields(t *testing.T) {
	var buf bytes.Buffer
	bar := NewTerminalBar(&buf)
	bar.Update(Snapshot{
		Role:           codec.RoleServer,
		LocalVersion:   "0.0.53",
		RemoteVersion:  "0.0.70",
		LocalEndpoint:  "127.0.0.1:9000",
		RemoteEndpoint: "10.0.0.5:54321",
		LocalSerial:    "SRV-A 9600 8N1N",
		RemoteSerial:   "BR-A 9600 8N1N",
		InBytes:        42,
		OutBytes:       7,
		Authorized:     true,
		Since:          time.Now().Add(-3 * time.Second),
	})

	out := buf.String()
	assert.Contains(t, out, "server")
	assert.Contains(t, out, "127.0.0.1:9000")
	assert.Contains(t, out, "SRV-A 9600 8N1N")
	assert.Contains(t, out, "0.0.70")
}

func TestNopUpdaterDoesNothing(t *testing.T) {
	var n Nop
	n.Update(Snapshot{})
}
