// Package mode implements the four proxy-mode strategies that decide how
// a Session's login phase is handled once a route is resolved, per
// spec.md §4.I: Passthrough, Offline, ClientOnly, ServerOnly. Full mode
// is architecturally impossible and is rejected at config validation
// (internal/route.ServerConfig.Validate), never reaching this package.
package mode

import (
	"bufio"
	"context"
	"io"
	"net"

	"github.com/go-logr/logr"

	"github.com/Shadowner/Infrarust/internal/crypto"
	"github.com/Shadowner/Infrarust/internal/ids"
	"github.com/Shadowner/Infrarust/internal/perrors"
	"github.com/Shadowner/Infrarust/internal/sessionservice"
	"github.com/Shadowner/Infrarust/internal/wire"
)

// LoginStart is the client's parsed login-start packet.
type LoginStart struct {
	Username string
	HasUUID  bool
	UUID     [16]byte
}

// Outcome is what a mode handler decided for one login attempt: either
// a backend connection ready to be handed to the Session Supervisor's
// forwarders, or a disconnect.
type Outcome struct {
	ClientConn  io.ReadWriteCloser // client side, possibly re-wrapped (e.g. CFB8)
	BackendConn io.ReadWriteCloser // backend side, possibly re-wrapped (e.g. CFB8)
	Username    string
	UUID        [16]byte
	Properties  []sessionservice.Property
}

const loginStartPacketID = 0x00
const loginSuccessPacketID = 0x02
const encryptionRequestPacketID = 0x01
const encryptionResponsePacketID = 0x01
const loginDisconnectPacketID = 0x00
const setCompressionPacketID = 0x03

// Passthrough replays the captured handshake bytes verbatim to the
// dialed backend and then splices the two raw byte streams with no
// further protocol parsing, per spec.md §4.I — the mode grounded
// directly in the teacher's lite passthrough forwarding, generalized
// from a single hardcoded upstream to whatever the Route Resolver
// picked.
func Passthrough(ctx context.Context, client net.Conn, replay io.Reader, backend net.Conn) (Outcome, error) {
	if _, err := io.Copy(backend, replay); err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "replaying handshake to backend", err)
	}
	return Outcome{BackendConn: backend, ClientConn: client}, nil
}

// Offline relays the full login sequence (login-start through
// login-success) without any authentication, assigning the client the
// deterministic offline-mode uuid if it supplied none, per spec.md §4.I.
func Offline(ctx context.Context, client net.Conn, replay io.Reader, backend net.Conn, compressionThreshold int) (Outcome, error) {
	if _, err := io.Copy(backend, replay); err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "replaying handshake to backend", err)
	}

	cr := wire.NewReader(bufio.NewReader(client))
	loginStart, err := readLoginStart(cr)
	if err != nil {
		return Outcome{}, err
	}

	uuid := loginStart.UUID
	if !loginStart.HasUUID {
		uuid = ids.OfflinePlayerUUID(loginStart.Username)
	}

	cw := wire.NewWriter(backend)
	if err := writeLoginStart(cw, loginStart.Username, uuid); err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "forwarding login-start to backend", err)
	}

	return Outcome{
		BackendConn: backend,
		ClientConn:  client,
		Username:    loginStart.Username,
		UUID:        uuid,
	}, nil
}

// ClientOnlyDeps are the process-wide collaborators ClientOnly needs.
type ClientOnlyDeps struct {
	Keys       *crypto.KeyPair
	Sessions   *sessionservice.Client
	Log        logr.Logger
}

// ClientOnly authenticates the connecting client against Mojang's
// session service (RSA encryption-request/response, server-id hash,
// hasJoined), then forwards a login-start carrying the authenticated name
// and uuid to an offline-mode backend and returns the client leg wrapped
// in CFB8. It sends no login-success of its own; the backend's
// login-success reaches the client through the forwarders.
func ClientOnly(ctx context.Context, client net.Conn, replay io.Reader, backend net.Conn, deps ClientOnlyDeps) (Outcome, error) {
	if _, err := io.Copy(backend, replay); err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "replaying handshake to backend", err)
	}

	cr := wire.NewReader(bufio.NewReader(client))
	loginStart, err := readLoginStart(cr)
	if err != nil {
		return Outcome{}, err
	}

	verifyToken, err := crypto.RandomVerifyToken()
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.Internal, "generating verify token", err)
	}
	serverID := "" // vanilla servers always send an empty server_id string

	cw := wire.NewWriter(client)
	if err := writeEncryptionRequest(cw, serverID, deps.Keys.PublicDER, verifyToken); err != nil {
		return Outcome{}, perrors.Wrap(perrors.AuthFailed, "sending encryption request", err)
	}

	encryptedSecret, encryptedVerify, err := readEncryptionResponse(cr)
	if err != nil {
		return Outcome{}, err
	}

	sharedSecret, err := deps.Keys.Decrypt(encryptedSecret)
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.AuthFailed, "decrypting shared secret", err)
	}
	returnedVerify, err := deps.Keys.Decrypt(encryptedVerify)
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.AuthFailed, "decrypting verify token", err)
	}
	if !bytesEqual(returnedVerify, verifyToken) {
		return Outcome{}, perrors.New(perrors.AuthFailed, "verify token mismatch")
	}

	hash := crypto.ServerIDHash(serverID, sharedSecret, deps.Keys.PublicDER)
	clientIP := hostOf(client.RemoteAddr())
	profile, err := deps.Sessions.HasJoined(loginStart.Username, hash, clientIP)
	if err != nil {
		return Outcome{}, err
	}

	cfb, err := wire.NewCFB8Conn(client, client, sharedSecret)
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.Internal, "installing client-side cipher", err)
	}
	encryptedClient := &rwcConn{Conn: client, r: cfb, w: cfb}

	uuid, err := ids.ParseUUID(profile.ID)
	if err != nil {
		uuid = ids.OfflinePlayerUUID(profile.Name)
	}

	bw := wire.NewWriter(backend)
	if err := writeLoginStart(bw, profile.Name, uuid); err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "forwarding login-start to offline backend", err)
	}

	return Outcome{
		BackendConn: backend,
		ClientConn:  encryptedClient,
		Username:    profile.Name,
		UUID:        uuid,
		Properties:  profile.Properties,
	}, nil
}

// ServerOnlyDeps are the process-wide collaborators ServerOnly needs.
type ServerOnlyDeps struct {
	Log logr.Logger
}

// ServerOnly mirrors ClientOnly on the backend leg: the client is
// trusted verbatim (no Mojang check, matching a client that already
// authenticated upstream of this proxy), and the proxy itself plays the
// client role of the encryption handshake against a backend running in
// online-mode, per spec.md §4.I / DESIGN.md's Open Question decision.
func ServerOnly(ctx context.Context, client net.Conn, replay io.Reader, backend net.Conn, deps ServerOnlyDeps) (Outcome, error) {
	if _, err := io.Copy(backend, replay); err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "replaying handshake to backend", err)
	}

	cr := wire.NewReader(bufio.NewReader(client))
	loginStart, err := readLoginStart(cr)
	if err != nil {
		return Outcome{}, err
	}

	uuid := loginStart.UUID
	if !loginStart.HasUUID {
		uuid = ids.OfflinePlayerUUID(loginStart.Username)
	}

	bw := wire.NewWriter(backend)
	if err := writeLoginStart(bw, loginStart.Username, uuid); err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "forwarding login-start to online backend", err)
	}

	br := wire.NewReader(bufio.NewReader(backend))
	pkt, err := br.ReadPacket()
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "reading backend encryption request", err)
	}
	if pkt.ID != encryptionRequestPacketID {
		return Outcome{}, perrors.New(perrors.BackendUnreachable, "backend did not send encryption request")
	}
	serverID, pubDER, verifyToken, err := parseEncryptionRequest(pkt.Data)
	if err != nil {
		return Outcome{}, err
	}

	pubKey, err := crypto.ParsePublicDER(pubDER)
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "parsing backend public key", err)
	}

	sharedSecret, err := crypto.RandomSharedSecret()
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.Internal, "generating shared secret", err)
	}

	encSecret, err := crypto.Encrypt(pubKey, sharedSecret)
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.Internal, "encrypting shared secret for backend", err)
	}
	encVerify, err := crypto.Encrypt(pubKey, verifyToken)
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.Internal, "encrypting verify token for backend", err)
	}

	bw2 := wire.NewWriter(backend)
	if err := writeEncryptionResponse(bw2, encSecret, encVerify); err != nil {
		return Outcome{}, perrors.Wrap(perrors.BackendUnreachable, "sending encryption response to backend", err)
	}

	_ = serverID // computed by the backend itself; this leg never verifies it

	cfb, err := wire.NewCFB8Conn(backend, backend, sharedSecret)
	if err != nil {
		return Outcome{}, perrors.Wrap(perrors.Internal, "installing backend-side cipher", err)
	}
	encryptedBackend := &rwcConn{Conn: backend, r: cfb, w: cfb}

	return Outcome{
		BackendConn: encryptedBackend,
		ClientConn:  client,
		Username:    loginStart.Username,
		UUID:        uuid,
	}, nil
}
