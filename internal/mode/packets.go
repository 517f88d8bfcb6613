package mode

import (
	"bufio"
	"bytes"
	"io"
	"net"

	"github.com/Shadowner/Infrarust/internal/perrors"
	"github.com/Shadowner/Infrarust/internal/wire"
)

// rwcConn layers a cipher (or any) reader/writer pair over an existing
// net.Conn, keeping its Close/deadline/address methods intact — the
// shape every encrypted-leg Outcome needs once CFB8 is installed.
type rwcConn struct {
	net.Conn
	r io.Reader
	w io.Writer
}

func (c *rwcConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *rwcConn) Write(p []byte) (int, error) { return c.w.Write(p) }

func readLoginStart(r *wire.Reader) (LoginStart, error) {
	pkt, err := r.ReadPacket()
	if err != nil {
		return LoginStart{}, perrors.Wrap(perrors.ProtocolMalformed, "reading login-start", err)
	}
	if pkt.ID != loginStartPacketID {
		return LoginStart{}, perrors.New(perrors.ProtocolMalformed, "expected login-start packet")
	}

	br := bufio.NewReader(bytes.NewReader(pkt.Data))
	username, err := wire.ReadString(br)
	if err != nil {
		return LoginStart{}, perrors.Wrap(perrors.ProtocolMalformed, "bad login-start username", err)
	}

	hasUUID, err := wire.ReadBool(br)
	if err != nil {
		// 1.19.1 and earlier never sent this field; treat EOF as "no uuid".
		return LoginStart{Username: username}, nil
	}
	if !hasUUID {
		return LoginStart{Username: username}, nil
	}
	uuid, err := wire.ReadUUID(br)
	if err != nil {
		return LoginStart{}, perrors.Wrap(perrors.ProtocolMalformed, "bad login-start uuid", err)
	}
	return LoginStart{Username: username, HasUUID: true, UUID: uuid}, nil
}

func writeLoginStart(w *wire.Writer, username string, uuid [16]byte) error {
	var buf bytes.Buffer
	if err := wire.WriteString(&buf, username); err != nil {
		return err
	}
	if err := wire.WriteBool(&buf, true); err != nil {
		return err
	}
	if err := wire.WriteUUID(&buf, uuid); err != nil {
		return err
	}
	return w.WritePacket(loginStartPacketID, buf.Bytes())
}

func writeEncryptionRequest(w *wire.Writer, serverID string, publicKeyDER, verifyToken []byte) error {
	var buf bytes.Buffer
	if err := wire.WriteString(&buf, serverID); err != nil {
		return err
	}
	if err := wire.WriteBytes(&buf, publicKeyDER); err != nil {
		return err
	}
	if err := wire.WriteBytes(&buf, verifyToken); err != nil {
		return err
	}
	return w.WritePacket(encryptionRequestPacketID, buf.Bytes())
}

func parseEncryptionRequest(data []byte) (serverID string, publicKeyDER, verifyToken []byte, err error) {
	br := bufio.NewReader(bytes.NewReader(data))
	serverID, err = wire.ReadString(br)
	if err != nil {
		return "", nil, nil, perrors.Wrap(perrors.ProtocolMalformed, "bad encryption-request server_id", err)
	}
	publicKeyDER, err = wire.ReadBytes(br)
	if err != nil {
		return "", nil, nil, perrors.Wrap(perrors.ProtocolMalformed, "bad encryption-request public key", err)
	}
	verifyToken, err = wire.ReadBytes(br)
	if err != nil {
		return "", nil, nil, perrors.Wrap(perrors.ProtocolMalformed, "bad encryption-request verify token", err)
	}
	return serverID, publicKeyDER, verifyToken, nil
}

func readEncryptionResponse(r *wire.Reader) (sharedSecret, verifyToken []byte, err error) {
	pkt, err := r.ReadPacket()
	if err != nil {
		return nil, nil, perrors.Wrap(perrors.ProtocolMalformed, "reading encryption-response", err)
	}
	if pkt.ID != encryptionResponsePacketID {
		return nil, nil, perrors.New(perrors.ProtocolMalformed, "expected encryption-response packet")
	}
	br := bufio.NewReader(bytes.NewReader(pkt.Data))
	sharedSecret, err = wire.ReadBytes(br)
	if err != nil {
		return nil, nil, perrors.Wrap(perrors.ProtocolMalformed, "bad encryption-response shared secret", err)
	}
	verifyToken, err = wire.ReadBytes(br)
	if err != nil {
		return nil, nil, perrors.Wrap(perrors.ProtocolMalformed, "bad encryption-response verify token", err)
	}
	return sharedSecret, verifyToken, nil
}

func writeEncryptionResponse(w *wire.Writer, sharedSecret, verifyToken []byte) error {
	var buf bytes.Buffer
	if err := wire.WriteBytes(&buf, sharedSecret); err != nil {
		return err
	}
	if err := wire.WriteBytes(&buf, verifyToken); err != nil {
		return err
	}
	return w.WritePacket(encryptionResponsePacketID, buf.Bytes())
}

func bytesEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
