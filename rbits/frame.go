package rbits

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// FrameKind identifies the payload of a frame.
type FrameKind uint8

const (
	FrameUnknown FrameKind = 0
	FrameBlock   FrameKind = 1
	FrameSchema  FrameKind = 2
)

const (
	protocolName    = "repyable"
	protocolVersion = "1"

	frameHeaderLen = 4 + 1 + 4

	// MaxFrameLen is the largest payload a frame may carry.
	MaxFrameLen = 64 << 20
)

// magicPrefix is mixed into every checksum so frames of other protocol
// versions never validate.
var magicPrefix = []byte(protocolName + " " + protocolVersion + " bit packed frame")

// trailer terminates every frame and detects truncation.
var trailer = []byte("REPY")

// AppendFrame appends a frame to dst and returns the extended slice. Layout:
//
//	[crc32:4][kind:1][len:4][payload:len]["REPY"]
//
// All integers are big-endian. The crc32 (IEEE) covers kind, payload and a
// protocol specific magic prefix.
func AppendFrame(dst []byte, kind FrameKind, payload []byte) []byte {
	var hdr [frameHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], checksum(kind, payload))
	hdr[4] = byte(kind)
	binary.BigEndian.PutUint32(hdr[5:9], uint32(len(payload)))

	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return append(dst, trailer...)
}

// WriteFrame writes a single frame to w.
func WriteFrame(w io.Writer, kind FrameKind, payload []byte) error {
	if len(payload) > MaxFrameLen {
		return errors.Wrap(ErrFrameTooLarge, "", j.KV("len", len(payload)))
	}
	_, err := w.Write(AppendFrame(nil, kind, payload))
	return err
}

// ParseFrame parses the frame at the start of b and returns its kind,
// payload and total length in b. The payload aliases b.
func ParseFrame(b []byte) (FrameKind, []byte, int, error) {
	if len(b) < frameHeaderLen {
		return 0, nil, 0, errors.Wrap(ErrTruncatedBlock, "short frame header")
	}

	n := binary.BigEndian.Uint32(b[5:9])
	if n > MaxFrameLen {
		return 0, nil, 0, errors.Wrap(ErrFrameTooLarge, "", j.KV("len", n))
	}

	total := frameHeaderLen + int(n) + len(trailer)
	if len(b) < total {
		return 0, nil, 0, errors.Wrap(ErrTruncatedBlock, "short frame")
	}

	kind, payload, err := verify(b[:frameHeaderLen], b[frameHeaderLen:total])
	if err != nil {
		return 0, nil, 0, err
	}

	return kind, payload, total, nil
}

// FrameReader reads consecutive frames from a stream.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next returns the next frame. It returns io.EOF at a clean end of the
// stream and ErrTruncatedBlock if the stream ends inside a frame.
func (fr *FrameReader) Next() (FrameKind, []byte, error) {
	hdr := make([]byte, frameHeaderLen)
	if _, err := io.ReadFull(fr.r, hdr); errors.Is(err, io.EOF) {
		return 0, nil, io.EOF
	} else if errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, nil, errors.Wrap(ErrTruncatedBlock, "short frame header")
	} else if err != nil {
		return 0, nil, err
	}

	n := binary.BigEndian.Uint32(hdr[5:9])
	if n > MaxFrameLen {
		return 0, nil, errors.Wrap(ErrFrameTooLarge, "", j.KV("len", n))
	}

	rest := make([]byte, int(n)+len(trailer))
	if _, err := io.ReadFull(fr.r, rest); errors.IsAny(err, io.EOF, io.ErrUnexpectedEOF) {
		return 0, nil, errors.Wrap(ErrTruncatedBlock, "short frame")
	} else if err != nil {
		return 0, nil, err
	}

	return verify(hdr, rest)
}

// verify checks the trailer and checksum of a frame split into its header
// and the payload followed by the trailer.
func verify(hdr, rest []byte) (FrameKind, []byte, error) {
	payload := rest[:len(rest)-len(trailer)]
	if !bytes.Equal(rest[len(payload):], trailer) {
		return 0, nil, ErrTrailerMismatch
	}

	kind := FrameKind(hdr[4])
	if binary.BigEndian.Uint32(hdr[0:4]) != checksum(kind, payload) {
		return 0, nil, ErrChecksumMismatch
	}

	return kind, payload, nil
}

func checksum(kind FrameKind, payload []byte) uint32 {
	h := crc32.NewIEEE()
	_, _ = h.Write([]byte{byte(kind)})
	_, _ = h.Write(payload)
	_, _ = h.Write(magicPrefix)
	return h.Sum32()
}
