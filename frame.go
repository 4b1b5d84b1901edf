package gows

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
)

// Bitmasks for the first two header bytes, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.2.
const (
	finBit  = 0x80
	rsv1Bit = 0x40
	rsv2Bit = 0x20
	rsv3Bit = 0x10

	maskBit         = 0x80
	payloadLenMask  = 0x7F
	extLen16Marker  = 126
	extLen64Marker  = 127
	maxControlFrame = 125
)

// Frame is one RFC 6455 WebSocket frame, exactly as defined in spec.md §3.
type Frame struct {
	Fin              bool
	Rsv1, Rsv2, Rsv3 bool
	OpCode           OpCode
	Mask             bool
	MaskingKey       [4]byte
	ApplicationData  []byte
	ExtensionData    []byte
}

// NewControlFrame builds a fin=true, unmasked control frame. It panics if
// payload exceeds the 125-byte control frame limit, since every call site
// in this library constructs these from data it controls (Close, Pong).
func NewControlFrame(op OpCode, payload []byte) Frame {
	if len(payload) > maxControlFrame {
		panic("gows: control frame payload exceeds 125 bytes")
	}
	return Frame{Fin: true, OpCode: op, ApplicationData: payload}
}

// Validate enforces the invariants from spec.md §3: control frames must be
// final and carry at most 125 bytes of payload.
func (f Frame) Validate() error {
	if f.OpCode.IsControl() && (!f.Fin || len(f.ApplicationData) > maxControlFrame) {
		return newError(KindInvalidOpCode, errors.New("control frame must be final and <=125 bytes"))
	}
	return nil
}

// Bytes encodes f to its wire representation (frame_to_bytes in spec.md
// §4.1). The length field always uses the minimal encoding for the
// payload size, per the testable property in spec.md §8.3.
func (f Frame) Bytes() []byte {
	var first byte
	if f.Fin {
		first |= finBit
	}
	if f.Rsv1 {
		first |= rsv1Bit
	}
	if f.Rsv2 {
		first |= rsv2Bit
	}
	if f.Rsv3 {
		first |= rsv3Bit
	}
	first |= f.OpCode.byteValue()

	n := len(f.ApplicationData)

	var header []byte
	switch {
	case n <= maxControlFrame:
		header = []byte{first, lenByte(f.Mask, byte(n))}
	case n <= math.MaxUint16:
		header = make([]byte, 4)
		header[0] = first
		header[1] = lenByte(f.Mask, extLen16Marker)
		binary.BigEndian.PutUint16(header[2:], uint16(n))
	default:
		header = make([]byte, 10)
		header[0] = first
		header[1] = lenByte(f.Mask, extLen64Marker)
		binary.BigEndian.PutUint64(header[2:], uint64(n))
	}

	out := make([]byte, 0, len(header)+4+n)
	out = append(out, header...)
	if f.Mask {
		out = append(out, f.MaskingKey[:]...)
		out = append(out, maskBytes(f.MaskingKey, f.ApplicationData)...)
	} else {
		out = append(out, f.ApplicationData...)
	}
	return out
}

func lenByte(mask bool, n byte) byte {
	if mask {
		return maskBit | n
	}
	return n
}

// maskBytes XORs data with the repeating 4-byte key. It is its own
// inverse: masking already-masked data with the same key yields the
// original bytes (spec.md §8.2).
func maskBytes(key [4]byte, data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%4]
	}
	return out
}

// ReadFrame decodes one frame from r (frame_read in spec.md §4.1).
// maxPayload bounds the declared payload length; 0 disables the check.
// It returns:
//   - errWouldBlock iff r returned a timeout/would-block signal,
//   - errEOF iff r returned any other read error,
//   - ErrInvalidOpCode iff the opcode nibble is undefined (never happens
//     given the current 4-bit decode table, kept for forward-compatibility
//     with a narrower opCodeFromByte),
//   - ErrPayloadTooLarge iff the declared length exceeds maxPayload.
func ReadFrame(r io.Reader, maxPayload int64) (Frame, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Frame{}, classifyReadErr(err)
	}

	op, ok := opCodeFromByte(head[0])
	if !ok {
		return Frame{}, ErrInvalidOpCode
	}

	f := Frame{
		Fin:    head[0]&finBit != 0,
		Rsv1:   head[0]&rsv1Bit != 0,
		Rsv2:   head[0]&rsv2Bit != 0,
		Rsv3:   head[0]&rsv3Bit != 0,
		OpCode: op,
		Mask:   head[1]&maskBit != 0,
	}

	payloadLen := uint64(head[1] & payloadLenMask)
	switch payloadLen {
	case extLen16Marker:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, classifyReadErr(err)
		}
		payloadLen = uint64(binary.BigEndian.Uint16(ext[:]))
	case extLen64Marker:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, classifyReadErr(err)
		}
		payloadLen = binary.BigEndian.Uint64(ext[:])
	}

	if maxPayload > 0 && payloadLen > uint64(maxPayload) {
		return Frame{}, ErrPayloadTooLarge
	}

	if f.Mask {
		if _, err := io.ReadFull(r, f.MaskingKey[:]); err != nil {
			return Frame{}, classifyReadErr(err)
		}
	}

	raw := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Frame{}, classifyReadErr(err)
	}
	if f.Mask {
		raw = maskBytes(f.MaskingKey, raw)
	}
	f.ApplicationData = raw

	return f, nil
}

// classifyReadErr implements the WouldBlock/Eof split from spec.md §4.1:
// a timeout (as reported by net.Error.Timeout) is WouldBlock, anything
// else — including a clean io.EOF — is Eof.
func classifyReadErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errWouldBlock
	}
	return errEOF
}

// FromFragmented combines an ordered sequence of frames — all but the last
// with Fin=false — into one synthetic frame carrying the first frame's
// opcode, Fin=true, and the concatenation of every payload. The result is
// never masked: it's an internal representation, never re-transmitted
// as-is (spec.md §4.1).
func FromFragmented(frames []Frame) Frame {
	total := 0
	for _, fr := range frames {
		total += len(fr.ApplicationData)
	}
	data := make([]byte, 0, total)
	for _, fr := range frames {
		data = append(data, fr.ApplicationData...)
	}
	return Frame{
		Fin:             true,
		OpCode:          frames[0].OpCode,
		ApplicationData: data,
	}
}
