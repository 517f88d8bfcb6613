package wire

import (
	"bufio"
	"bytes"
	"io"

	"github.com/Shadowner/Infrarust/internal/perrors"
)

// DefaultMaxFrameBytes is the default bound on a single frame's length, per
// the framed codec's contract.
const DefaultMaxFrameBytes = 2 * 1024 * 1024

// Packet is one decoded Minecraft packet: an id and its raw body, with any
// compression/encryption layering already stripped.
type Packet struct {
	ID   int32
	Data []byte
}

// Reader reads raw Minecraft frames from an underlying byte stream,
// enforcing MaxFrameBytes and (optionally) decompressing.
type Reader struct {
	br                *bufio.Reader
	MaxFrameBytes     int
	compressionThresh int // -1 disables compression
}

// NewReader wraps r for frame reading. Compression is disabled until
// EnableCompression is called.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: br, MaxFrameBytes: DefaultMaxFrameBytes, compressionThresh: -1}
}

// EnableCompression installs the compression layer with the given
// threshold (bytes); packets whose uncompressed size is below the
// threshold are sent as literal (uncompressed-size field == 0).
func (r *Reader) EnableCompression(threshold int) {
	r.compressionThresh = threshold
}

// Buffered exposes the underlying *bufio.Reader for callers (e.g. the
// handshake peek) that need ByteReader access directly.
func (r *Reader) Buffered() *bufio.Reader { return r.br }

// ReadPacket reads one full frame and decodes it into a Packet, applying
// the compression layer if installed.
func (r *Reader) ReadPacket() (Packet, error) {
	length, err := ReadVarInt(r.br)
	if err != nil {
		return Packet{}, err
	}
	if length < 0 || int(length) > r.maxFrameBytes() {
		return Packet{}, perrors.New(perrors.ProtocolOversize, "frame exceeds max_frame_bytes")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return Packet{}, err
	}

	if r.compressionThresh >= 0 {
		return decodeCompressed(body)
	}
	return decodeUncompressed(body)
}

func (r *Reader) maxFrameBytes() int {
	if r.MaxFrameBytes <= 0 {
		return DefaultMaxFrameBytes
	}
	return r.MaxFrameBytes
}

// varIntFromBytes decodes a VarInt at the start of buf, returning the
// value and the number of bytes it consumed.
func varIntFromBytes(buf []byte) (int32, int, error) {
	br := bytes.NewReader(buf)
	v, err := ReadVarInt(br)
	if err != nil {
		return 0, 0, err
	}
	return v, len(buf) - br.Len(), nil
}

func decodeUncompressed(body []byte) (Packet, error) {
	id, n, err := varIntFromBytes(body)
	if err != nil {
		return Packet{}, err
	}
	return Packet{ID: id, Data: body[n:]}, nil
}

func decodeCompressed(body []byte) (Packet, error) {
	uncompressedSize, n, err := varIntFromBytes(body)
	if err != nil {
		return Packet{}, err
	}
	rest := body[n:]

	var logical []byte
	if uncompressedSize == 0 {
		logical = rest
	} else {
		logical, err = inflate(rest, int(uncompressedSize))
		if err != nil {
			return Packet{}, perrors.Wrap(perrors.ProtocolMalformed, "zlib inflate failed", err)
		}
	}

	id, n, err := varIntFromBytes(logical)
	if err != nil {
		return Packet{}, err
	}
	return Packet{ID: id, Data: logical[n:]}, nil
}

// Writer writes raw Minecraft frames to an underlying byte stream,
// applying the compression layer if installed.
type Writer struct {
	w                 io.Writer
	compressionThresh int // -1 disables compression
}

// NewWriter wraps w for frame writing.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, compressionThresh: -1}
}

// EnableCompression installs the compression layer with the given
// threshold.
func (w *Writer) EnableCompression(threshold int) {
	w.compressionThresh = threshold
}

// WritePacket encodes a packet id + body as one frame, applying
// compression if installed.
func (w *Writer) WritePacket(id int32, data []byte) error {
	inner := new(bytes.Buffer)
	if err := WriteVarInt(inner, id); err != nil {
		return err
	}
	inner.Write(data)

	if w.compressionThresh < 0 {
		return writeFrame(w.w, inner.Bytes())
	}
	return w.writeCompressed(inner.Bytes())
}

func (w *Writer) writeCompressed(logical []byte) error {
	frame := new(bytes.Buffer)
	if len(logical) < w.compressionThresh {
		if err := WriteVarInt(frame, 0); err != nil {
			return err
		}
		frame.Write(logical)
		return writeFrame(w.w, frame.Bytes())
	}

	compressed, err := deflate(logical)
	if err != nil {
		return err
	}
	if err := WriteVarInt(frame, int32(len(logical))); err != nil {
		return err
	}
	frame.Write(compressed)
	return writeFrame(w.w, frame.Bytes())
}

func writeFrame(w io.Writer, body []byte) error {
	if err := WriteVarInt(w, int32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
