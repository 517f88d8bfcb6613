// Package proxyproto handles the optional PROXY protocol v1/v2 preamble a
// load balancer may prepend to an inbound TCP connection, and the
// outbound header a route may prepend toward its own backend, per
// spec.md §4.K. Built on github.com/pires/go-proxyproto, the same
// library the teacher imports for its lite passthrough listener.
package proxyproto

import (
	"context"
	"net"
	"time"

	goproxyproto "github.com/pires/go-proxyproto"

	"github.com/Shadowner/Infrarust/internal/perrors"
)

// DefaultReceiveTimeout bounds how long Accept waits for a PROXY header
// before giving up on a connection that claimed to carry one.
const DefaultReceiveTimeout = 5 * time.Second

// AllowedVersions restricts which PROXY protocol versions Accept trusts;
// an empty set means both v1 and v2 are accepted.
type AllowedVersions struct {
	V1, V2 bool
}

func (a AllowedVersions) effective() (v1, v2 bool) {
	if !a.V1 && !a.V2 {
		return true, true
	}
	return a.V1, a.V2
}

// Listener wraps a net.Listener so that every Accept first tries to read
// a PROXY protocol header, substituting its declared source address for
// the TCP one when present. Connections with no header behave exactly
// like the underlying listener (go-proxyproto's transparent passthrough).
func Listener(inner net.Listener, timeout time.Duration, allowed AllowedVersions) net.Listener {
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}
	v1, v2 := allowed.effective()

	return &goproxyproto.Listener{
		Listener: inner,
		Policy: func(upstream net.Addr) (goproxyproto.Policy, error) {
			return goproxyproto.USE, nil
		},
		ReadHeaderTimeout: timeout,
		ValidateHeader: func(h *goproxyproto.Header) error {
			switch h.Version {
			case 1:
				if !v1 {
					return perrors.New(perrors.ProtocolMalformed, "proxy protocol v1 not permitted")
				}
			case 2:
				if !v2 {
					return perrors.New(perrors.ProtocolMalformed, "proxy protocol v2 not permitted")
				}
			}
			return nil
		},
	}
}

// WriteHeader writes a PROXY protocol header of the given version for
// (src -> dst) onto w, for a route configured to advertise the original
// client address to its backend (spec.md §4.K, outbound leg).
func WriteHeader(ctx context.Context, w net.Conn, version int, src, dst net.Addr) error {
	_ = ctx
	if version != 1 && version != 2 {
		return perrors.New(perrors.Internal, "unsupported proxy protocol version for outbound header")
	}

	header := &goproxyproto.Header{
		Version:           byte(version),
		Command:           goproxyproto.PROXY,
		TransportProtocol: goproxyproto.TCPv4,
		SourceAddr:        src,
		DestinationAddr:   dst,
	}
	if isIPv6(src) || isIPv6(dst) {
		header.TransportProtocol = goproxyproto.TCPv6
	}

	_, err := header.WriteTo(w)
	if err != nil {
		return perrors.Wrap(perrors.BackendUnreachable, "writing outbound proxy protocol header", err)
	}
	return nil
}

func isIPv6(addr net.Addr) bool {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return false
	}
	return tcpAddr.IP.To4() == nil
}
