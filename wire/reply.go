package wire

import (
	"encoding/binary"
	"math"
)

// Reply is a response element: exactly one constructor below should
// be used to build each value, matching the TLV type tags of
// spec.md §4.F.
type Reply struct {
	typ  uint8
	str  string
	i64  int64
	f64  float64
	arr  []Reply
	code uint32
}

// Nil builds a NIL reply.
func Nil() Reply { return Reply{typ: TypeNil} }

// Err builds an ERR reply carrying code and a human-readable message.
func Err(code uint32, message string) Reply {
	return Reply{typ: TypeErr, code: code, str: message}
}

// Str builds a STR reply.
func Str(s string) Reply { return Reply{typ: TypeStr, str: s} }

// Int builds an INT reply.
func Int(v int64) Reply { return Reply{typ: TypeInt, i64: v} }

// Dbl builds a DBL reply.
func Dbl(v float64) Reply { return Reply{typ: TypeDbl, f64: v} }

// Arr builds an ARR reply from already-built elements.
func Arr(elements ...Reply) Reply { return Reply{typ: TypeArr, arr: elements} }

// Type reports the reply's wire type tag.
func (r Reply) Type() uint8 { return r.typ }

// EncodeResponse serializes reply into a complete response frame
// (length prefix included).
func EncodeResponse(reply Reply) []byte {
	var body []byte
	body = appendElement(body, reply)
	frame := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	return append(frame, body...)
}

func appendElement(buf []byte, r Reply) []byte {
	buf = append(buf, r.typ)
	switch r.typ {
	case TypeNil:
		// No body.
	case TypeErr:
		var codeBuf, lenBuf [4]byte
		binary.BigEndian.PutUint32(codeBuf[:], r.code)
		buf = append(buf, codeBuf[:]...)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r.str)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, r.str...)
	case TypeStr:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r.str)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, r.str...)
	case TypeInt:
		var intBuf [8]byte
		binary.BigEndian.PutUint64(intBuf[:], uint64(r.i64))
		buf = append(buf, intBuf[:]...)
	case TypeDbl:
		var dblBuf [8]byte
		binary.BigEndian.PutUint64(dblBuf[:], math.Float64bits(r.f64))
		buf = append(buf, dblBuf[:]...)
	case TypeArr:
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(r.arr)))
		buf = append(buf, countBuf[:]...)
		for _, e := range r.arr {
			buf = append(buf, appendElement(nil, e)...)
		}
	}
	return buf
}

// DecodeResponse parses one response frame's payload (the bytes
// following the length prefix) back into a Reply tree. Used by
// cacheadmin and by round-trip tests; the server itself never
// decodes its own responses.
func DecodeResponse(payload []byte) (Reply, error) {
	r, rest, err := decodeElement(payload)
	if err != nil {
		return Reply{}, err
	}
	if len(rest) != 0 {
		return Reply{}, ErrMalformed
	}
	return r, nil
}

func decodeElement(buf []byte) (Reply, []byte, error) {
	if len(buf) < 1 {
		return Reply{}, nil, ErrMalformed
	}
	typ := buf[0]
	buf = buf[1:]
	switch typ {
	case TypeNil:
		return Nil(), buf, nil
	case TypeErr:
		if len(buf) < 8 {
			return Reply{}, nil, ErrMalformed
		}
		code := binary.BigEndian.Uint32(buf[:4])
		strLen := binary.BigEndian.Uint32(buf[4:8])
		buf = buf[8:]
		if uint32(len(buf)) < strLen {
			return Reply{}, nil, ErrMalformed
		}
		msg := string(buf[:strLen])
		return Err(code, msg), buf[strLen:], nil
	case TypeStr:
		if len(buf) < 4 {
			return Reply{}, nil, ErrMalformed
		}
		strLen := binary.BigEndian.Uint32(buf[:4])
		buf = buf[4:]
		if uint32(len(buf)) < strLen {
			return Reply{}, nil, ErrMalformed
		}
		return Str(string(buf[:strLen])), buf[strLen:], nil
	case TypeInt:
		if len(buf) < 8 {
			return Reply{}, nil, ErrMalformed
		}
		v := int64(binary.BigEndian.Uint64(buf[:8]))
		return Int(v), buf[8:], nil
	case TypeDbl:
		if len(buf) < 8 {
			return Reply{}, nil, ErrMalformed
		}
		bits := binary.BigEndian.Uint64(buf[:8])
		return Dbl(math.Float64frombits(bits)), buf[8:], nil
	case TypeArr:
		if len(buf) < 4 {
			return Reply{}, nil, ErrMalformed
		}
		count := binary.BigEndian.Uint32(buf[:4])
		buf = buf[4:]
		elements := make([]Reply, 0, count)
		for i := uint32(0); i < count; i++ {
			var e Reply
			var err error
			e, buf, err = decodeElement(buf)
			if err != nil {
				return Reply{}, nil, err
			}
			elements = append(elements, e)
		}
		return Arr(elements...), buf, nil
	default:
		return Reply{}, nil, ErrMalformed
	}
}

// StrValue returns the reply's string payload and whether it was a
// STR type, for test assertions.
func (r Reply) StrValue() (string, bool) {
	if r.typ != TypeStr {
		return "", false
	}
	return r.str, true
}

// IntValue returns the reply's integer payload and whether it was an
// INT type, for test assertions.
func (r Reply) IntValue() (int64, bool) {
	if r.typ != TypeInt {
		return 0, false
	}
	return r.i64, true
}

// DblValue returns the reply's float payload and whether it was a
// DBL type, for test assertions.
func (r Reply) DblValue() (float64, bool) {
	if r.typ != TypeDbl {
		return 0, false
	}
	return r.f64, true
}

// ArrValue returns the reply's elements and whether it was an ARR
// type, for test assertions.
func (r Reply) ArrValue() ([]Reply, bool) {
	if r.typ != TypeArr {
		return nil, false
	}
	return r.arr, true
}

// ErrValue returns the reply's error code and message and whether it
// was an ERR type, for test assertions.
func (r Reply) ErrValue() (code uint32, message string, ok bool) {
	if r.typ != TypeErr {
		return 0, "", false
	}
	return r.code, r.str, true
}
