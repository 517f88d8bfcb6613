package mode

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/Shadowner/Infrarust/internal/ids"
	"github.com/Shadowner/Infrarust/internal/wire"
)

func TestLoginStartRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	uuid := ids.OfflinePlayerUUID("Steve")
	if err := writeLoginStart(w, "Steve", uuid); err != nil {
		t.Fatalf("writeLoginStart: %v", err)
	}

	r := wire.NewReader(bufio.NewReader(&buf))
	got, err := readLoginStart(r)
	if err != nil {
		t.Fatalf("readLoginStart: %v", err)
	}
	if got.Username != "Steve" {
		t.Fatalf("Username = %q, want Steve", got.Username)
	}
	if !got.HasUUID || got.UUID != uuid {
		t.Fatalf("uuid round trip mismatch: got %v, want %v", got.UUID, uuid)
	}
}

func TestOfflineAssignsDeterministicUUIDWhenMissing(t *testing.T) {
	clientSide, proxySide := net.Pipe()
	defer clientSide.Close()

	backendClient, backendSide := net.Pipe()
	defer backendSide.Close()

	go func() {
		var buf bytes.Buffer
		w := wire.NewWriter(&buf)
		_ = writeLoginStartNoUUID(w, "Alex")
		_, _ = clientSide.Write(buf.Bytes())
	}()

	go func() {
		// Drain whatever Offline forwards to the backend so it doesn't block.
		_, _ = io.Copy(io.Discard, backendSide)
	}()

	outcome, err := Offline(nil, proxySide, bytes.NewReader(nil), backendClient, 0)
	if err != nil {
		t.Fatalf("Offline: %v", err)
	}
	want := ids.OfflinePlayerUUID("Alex")
	if outcome.UUID != want {
		t.Fatalf("UUID = %v, want deterministic offline uuid %v", outcome.UUID, want)
	}
	if outcome.Username != "Alex" {
		t.Fatalf("Username = %q, want Alex", outcome.Username)
	}
}

func writeLoginStartNoUUID(w *wire.Writer, username string) error {
	var buf bytes.Buffer
	if err := wire.WriteString(&buf, username); err != nil {
		return err
	}
	if err := wire.WriteBool(&buf, false); err != nil {
		return err
	}
	return w.WritePacket(loginStartPacketID, buf.Bytes())
}
