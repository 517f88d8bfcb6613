package wire

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/Shadowner/Infrarust/internal/perrors"
)

// NextState is the login-phase selector carried in the handshake packet.
type NextState int32

const (
	NextStatus   NextState = 1
	NextLogin    NextState = 2
	NextTransfer NextState = 3 // treated like login
)

const handshakePacketID = 0x00

// Handshake is the decoded content of the first Minecraft packet.
type Handshake struct {
	ProtocolVersion int32
	ServerHost      string // full, verbatim (may carry a null-byte suffix)
	ServerPort      uint16
	NextState       NextState
}

// HostForRouting returns the substring up to the first null byte,
// lower-cased, as the Route Resolver must use it. The full ServerHost is
// preserved for verbatim replay to a backend.
func (h Handshake) HostForRouting() string {
	host := h.ServerHost
	if idx := strings.IndexByte(host, 0); idx >= 0 {
		host = host[:idx]
	}
	return strings.ToLower(host)
}

// HandshakePeek is the result of peeking a freshly accepted connection: the
// decoded Handshake plus the raw bytes consumed so a Passthrough-style
// mode can replay them byte-identically to a backend.
type HandshakePeek struct {
	Handshake Handshake
	raw       []byte
}

// Replay returns a fresh reader over the exact bytes read off the wire to
// produce this peek (the length-prefixed handshake frame).
func (p HandshakePeek) Replay() io.Reader {
	return bytes.NewReader(p.raw)
}

// DefaultInitialReadDeadline bounds how long PeekHandshake may block.
const DefaultInitialReadDeadline = 10 * time.Second

// deadlineConn is satisfied by net.Conn; kept narrow for testability with
// in-memory pipes that also implement it.
type deadlineConn interface {
	SetReadDeadline(t time.Time) error
}

// PeekHandshake reads exactly one frame off conn, verifies it is packet id
// 0, and decodes the Handshake fields. The deadline argument (or
// DefaultInitialReadDeadline when it is not positive) bounds the read;
// ctx is not consulted.
func PeekHandshake(ctx context.Context, conn net.Conn, deadline time.Duration) (HandshakePeek, error) {
	if deadline <= 0 {
		deadline = DefaultInitialReadDeadline
	}
	if dc, ok := conn.(deadlineConn); ok {
		_ = dc.SetReadDeadline(time.Now().Add(deadline))
		defer func() { _ = dc.SetReadDeadline(time.Time{}) }()
	}

	var capture bytes.Buffer
	tee := io.TeeReader(conn, &capture)
	br := singleByteReader{r: tee}

	length, err := ReadVarInt(br)
	if err != nil {
		return HandshakePeek{}, classifyReadErr(err)
	}
	if length < 0 || length > DefaultMaxFrameBytes {
		return HandshakePeek{}, perrors.New(perrors.ProtocolOversize, "handshake frame too large")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(br, body); err != nil {
		return HandshakePeek{}, classifyReadErr(err)
	}

	inner := bufio.NewReader(bytes.NewReader(body))
	id, err := ReadVarInt(inner)
	if err != nil {
		return HandshakePeek{}, perrors.Wrap(perrors.ProtocolMalformed, "bad packet id varint", err)
	}
	if id != handshakePacketID {
		return HandshakePeek{}, perrors.New(perrors.ProtocolMalformed, "first packet is not a handshake")
	}

	protocolVersion, err := ReadVarInt(inner)
	if err != nil {
		return HandshakePeek{}, perrors.Wrap(perrors.ProtocolMalformed, "bad protocol_version", err)
	}
	host, err := ReadString(inner)
	if err != nil {
		return HandshakePeek{}, perrors.Wrap(perrors.ProtocolMalformed, "bad server_host", err)
	}
	port, err := ReadUint16(inner)
	if err != nil {
		return HandshakePeek{}, perrors.Wrap(perrors.ProtocolMalformed, "bad server_port", err)
	}
	next, err := ReadVarInt(inner)
	if err != nil {
		return HandshakePeek{}, perrors.Wrap(perrors.ProtocolMalformed, "bad next_state", err)
	}
	if next < 1 || next > 3 {
		return HandshakePeek{}, perrors.New(perrors.ProtocolMalformed, "next_state out of range")
	}

	raw := make([]byte, capture.Len())
	copy(raw, capture.Bytes())

	return HandshakePeek{
		Handshake: Handshake{
			ProtocolVersion: protocolVersion,
			ServerHost:      host,
			ServerPort:      port,
			NextState:       NextState(next),
		},
		raw: raw,
	}, nil
}

// singleByteReader reads without buffering ahead, so nothing past the
// handshake frame is taken off the connection.
type singleByteReader struct{ r io.Reader }

func (s singleByteReader) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s singleByteReader) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(s.r, b[:])
	return b[0], err
}

func classifyReadErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return perrors.Wrap(perrors.ProtocolTimeout, "initial read deadline exceeded", err)
	}
	if pe, ok := err.(*perrors.Error); ok {
		return pe
	}
	return perrors.Wrap(perrors.ProtocolMalformed, "handshake read failed", err)
}
