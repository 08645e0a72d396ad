package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	args := []string{"SET", "a", "hello"}
	frame := EncodeRequest(args)
	payloadLen, err := PeekFrameLength(frame)
	if err != nil {
		t.Fatalf("PeekFrameLength: %v", err)
	}
	got, err := DecodeRequest(frame[4 : 4+payloadLen])
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if len(got) != len(args) {
		t.Fatalf("got %v, want %v", got, args)
	}
	for i := range args {
		if got[i] != args[i] {
			t.Errorf("arg %d: got %q, want %q", i, got[i], args[i])
		}
	}
}

// TestSetRequestMatchesReferenceLayout reproduces the exact byte
// layout sent by the reference client for `SET a hello`.
func TestSetRequestMatchesReferenceLayout(t *testing.T) {
	frame := EncodeRequest([]string{"SET", "a", "hello"})

	var want bytes.Buffer
	put32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		want.Write(b[:])
	}
	var payload bytes.Buffer
	p32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		payload.Write(b[:])
	}
	p32(3)
	p32(3)
	payload.WriteString("SET")
	p32(1)
	payload.WriteString("a")
	p32(5)
	payload.WriteString("hello")

	put32(uint32(payload.Len()))
	want.Write(payload.Bytes())

	if !bytes.Equal(frame, want.Bytes()) {
		t.Fatalf("got % x, want % x", frame, want.Bytes())
	}
}

func TestDecodeRequestRejectsZeroArgs(t *testing.T) {
	payload := make([]byte, 4) // N = 0
	if _, err := DecodeRequest(payload); err != ErrMalformed {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeRequestRejectsDeclaredLengthPastEnd(t *testing.T) {
	payload := make([]byte, 0, 16)
	put32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		payload = append(payload, b[:]...)
	}
	put32(1)  // N = 1
	put32(10) // declared arg length 10, but no data follows
	if _, err := DecodeRequest(payload); err != ErrMalformed {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeRequestRejectsTrailingBytes(t *testing.T) {
	frame := EncodeRequest([]string{"GET", "a"})
	payloadLen, _ := PeekFrameLength(frame)
	payload := frame[4 : 4+payloadLen]
	payload = append(payload, 0xff) // trailing junk beyond L
	if _, err := DecodeRequest(payload); err != ErrMalformed {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeRequestRejectsTooManyArgs(t *testing.T) {
	payload := make([]byte, 0, 4)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], MaxArgs+1)
	payload = append(payload, b[:]...)
	if _, err := DecodeRequest(payload); err != ErrMalformed {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestPeekFrameLengthIncomplete(t *testing.T) {
	if _, err := PeekFrameLength([]byte{0, 0, 1}); err != ErrIncomplete {
		t.Fatalf("got %v, want ErrIncomplete", err)
	}
}

func TestPeekFrameLengthTooBig(t *testing.T) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, MaxMsg+1)
	if _, err := PeekFrameLength(buf); err != ErrTooBig {
		t.Fatalf("got %v, want ErrTooBig", err)
	}
}

func TestResponseRoundTripEveryType(t *testing.T) {
	cases := []Reply{
		Nil(),
		Err(CodeWrongType, "WRONGTYPE key holds a hash"),
		Str("hello"),
		Int(-42),
		Dbl(1.5),
		Arr(Str("n1"), Dbl(1.1), Str("n2"), Dbl(2.0)),
	}
	for _, r := range cases {
		frame := EncodeResponse(r)
		payloadLen, err := PeekFrameLength(frame)
		if err != nil {
			t.Fatalf("PeekFrameLength: %v", err)
		}
		got, err := DecodeResponse(frame[4 : 4+payloadLen])
		if err != nil {
			t.Fatalf("DecodeResponse: %v", err)
		}
		if got.Type() != r.Type() {
			t.Fatalf("got type %v, want %v", got.Type(), r.Type())
		}
	}
}

func TestZQueryArrayShape(t *testing.T) {
	reply := Arr(Str("n1"), Dbl(1.1), Str("n2"), Dbl(2.0))
	frame := EncodeResponse(reply)
	payloadLen, _ := PeekFrameLength(frame)
	got, err := DecodeResponse(frame[4 : 4+payloadLen])
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	elements, ok := got.ArrValue()
	if !ok || len(elements) != 4 {
		t.Fatalf("got %v, %v, want 4 elements", elements, ok)
	}
	if s, _ := elements[0].StrValue(); s != "n1" {
		t.Errorf("element 0: got %q, want n1", s)
	}
	if d, _ := elements[1].DblValue(); d != 1.1 {
		t.Errorf("element 1: got %v, want 1.1", d)
	}
}
