package proxyproto

import (
	"bufio"
	"bytes"
	"net"
	"time"

	goproxyproto "github.com/pires/go-proxyproto"

	"testing"
)

// fakeConn is a minimal net.Conn backed by an in-memory buffer, enough
// for WriteHeader to write into and a test to read back out of.
type fakeConn struct {
	buf    bytes.Buffer
	local  net.Addr
	remote net.Addr
}

func (c *fakeConn) Read(p []byte) (int, error)         { return c.buf.Read(p) }
func (c *fakeConn) Write(p []byte) (int, error)        { return c.buf.Write(p) }
func (c *fakeConn) Close() error                       { return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return c.local }
func (c *fakeConn) RemoteAddr() net.Addr               { return c.remote }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error  { return nil }

func TestWriteHeaderV2RoundTrips(t *testing.T) {
	src := &net.TCPAddr{IP: net.IPv4(203, 0, 113, 9), Port: 54321}
	dst := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 25565}
	conn := &fakeConn{local: dst, remote: src}

	if err := WriteHeader(nil, conn, 2, src, dst); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	header, err := goproxyproto.Read(bufio.NewReader(&conn.buf))
	if err != nil {
		t.Fatalf("parsing written header: %v", err)
	}
	if header.SourceAddr.String() != src.String() {
		t.Fatalf("source addr = %v, want %v", header.SourceAddr, src)
	}
	if header.DestinationAddr.String() != dst.String() {
		t.Fatalf("destination addr = %v, want %v", header.DestinationAddr, dst)
	}
}

func TestWriteHeaderRejectsUnsupportedVersion(t *testing.T) {
	conn := &fakeConn{local: &net.TCPAddr{}, remote: &net.TCPAddr{}}
	if err := WriteHeader(nil, conn, 3, &net.TCPAddr{}, &net.TCPAddr{}); err == nil {
		t.Fatal("expected error for unsupported proxy protocol version")
	}
}
