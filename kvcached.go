// Package kvcached holds the small set of helpers shared by every
// package in this module: error wrapping and connection/session id
// generation.
package kvcached

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var lastUniqueIDCounter uint64 = 0

const uniqueIDLen = 16

// Encoding is the base64 encoding used for connection and session ids.
var Encoding = base64.RawURLEncoding

// NextUniqueID generates a unique id using a monotonic timestamp
// prefix followed by random bytes, then base64-encodes the result.
// Used for connection ids and log correlation, never for keyspace
// entry names.
func NextUniqueID() string {
	counter := Increment(&lastUniqueIDCounter)
	timeSize := binary.Size(counter)
	result := make([]byte, uniqueIDLen)
	binary.BigEndian.PutUint64(result, counter)
	if _, err := rand.Read(result[timeSize:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return Encoding.EncodeToString(result)
}

// Increment returns a strictly increasing timestamp-derived counter,
// racing concurrent callers via CAS rather than a mutex.
func Increment(prevPointer *uint64) uint64 {
	next := uint64(0)
	for {
		next = uint64(time.Now().UnixNano())
		previous := atomic.LoadUint64(prevPointer)
		if next > previous && atomic.CompareAndSwapUint64(prevPointer, previous, next) {
			break
		}
	}
	return next
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithStack wraps err with a stack trace unless it already carries
// one. Returns nil for a nil err.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(stackTracer); !ok {
		return errors.WithStack(err)
	}
	return err
}

// StackTrace renders the stack trace attached to err by WithStack, or
// the empty string if err carries none.
func StackTrace(err error) string {
	buf := &bytes.Buffer{}
	if err, ok := err.(stackTracer); ok {
		for _, f := range err.StackTrace() {
			fmt.Fprintf(buf, "%+v\n", f)
		}
	}
	return buf.String()
}
