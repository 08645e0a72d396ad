// Package wire implements the server's binary TLV protocol (spec.md
// §4.F): a request frame is a 4-byte big-endian length prefix
// followed by an argument count and that many length-prefixed
// argument strings; a response frame is a 4-byte length prefix
// followed by a single recursively-encoded type-length-value element.
//
// Grounded byte-for-byte on original_source/test/raw.py, the reference
// client's own frame reader/writer.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Limits from spec.md §4.F / §4.H.
const (
	MaxArgs = 1024
	MaxMsg  = 32 << 20 // 32 MiB
)

// Error codes, carried in every ERR response (spec.md §4.H).
const (
	CodeUnknown   uint32 = 1
	CodeTooBig    uint32 = 2
	CodeWrongType uint32 = 3
	CodeArg       uint32 = 4
	CodeMalformed uint32 = 5
)

// Type tags for response elements.
const (
	TypeNil uint8 = 0
	TypeErr uint8 = 1
	TypeStr uint8 = 2
	TypeInt uint8 = 3
	TypeDbl uint8 = 4
	TypeArr uint8 = 5
)

// ErrMalformed is returned by DecodeRequest (and by DecodeResponse)
// when the frame violates any of
// spec.md §4.F's structural rules. The caller must close the
// connection after reporting it.
var ErrMalformed = errors.New("wire: malformed request frame")

// ErrTooBig is returned by PeekFrameLength when the declared payload length
// exceeds MaxMsg. The caller must send a TOO_BIG error, flush, then
// close.
var ErrTooBig = errors.New("wire: request exceeds MaxMsg")

// ErrIncomplete signals the buffer does not yet hold a full frame;
// the caller should wait for more bytes and retry.
var ErrIncomplete = errors.New("wire: incomplete frame")

const lenPrefixSize = 4

// PeekFrameLength inspects buf for a complete length prefix and
// returns the declared payload length L. Returns ErrIncomplete if buf
// has fewer than 4 bytes, and ErrTooBig if L exceeds MaxMsg.
func PeekFrameLength(buf []byte) (payloadLen int, err error) {
	if len(buf) < lenPrefixSize {
		return 0, ErrIncomplete
	}
	l := binary.BigEndian.Uint32(buf[:lenPrefixSize])
	if l > MaxMsg {
		return int(l), ErrTooBig
	}
	return int(l), nil
}

// DecodeRequest parses one complete request frame's payload (buf must
// hold exactly the L bytes following the length prefix, as
// established by PeekFrameLength) into its argument strings. Applies
// every malformed-frame rule from spec.md §4.F.
func DecodeRequest(payload []byte) ([]string, error) {
	if len(payload) < 4 {
		return nil, ErrMalformed
	}
	n := binary.BigEndian.Uint32(payload[:4])
	offset := 4
	if n == 0 || n > MaxArgs {
		return nil, ErrMalformed
	}
	args := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		if offset+4 > len(payload) {
			return nil, ErrMalformed
		}
		argLen := binary.BigEndian.Uint32(payload[offset : offset+4])
		offset += 4
		end := offset + int(argLen)
		if end < offset || end > len(payload) {
			return nil, ErrMalformed
		}
		args = append(args, string(payload[offset:end]))
		offset = end
	}
	if offset != len(payload) {
		return nil, ErrMalformed
	}
	return args, nil
}

// EncodeRequest serializes args into a complete request frame
// (length prefix included), for use by cacheadmin and tests.
func EncodeRequest(args []string) []byte {
	payload := make([]byte, 4, 64)
	binary.BigEndian.PutUint32(payload[:4], uint32(len(args)))
	for _, a := range args {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(a)))
		payload = append(payload, lenBuf[:]...)
		payload = append(payload, a...)
	}
	frame := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	return append(frame, payload...)
}
