package core

import (
	"bufio"
	"bytes"
	"time"

	"github.com/pkg/errors"

	"github.com/jabolina/armi/pkg/armi/types"
)

// DefaultCallTimeout is the call-blocking deadline used when a hub or a
// connection isn't configured with an explicit one.
const DefaultCallTimeout = 10 * time.Second

// DefaultConnectTimeout bounds how long Dial waits for the TCP handshake
// against a peer.
const DefaultConnectTimeout = 10 * time.Second

// DefaultPort is the well-known port a hub binds to when the caller
// doesn't request a specific one.
const DefaultPort = 1441

// countingBuffer is a plain byte-accumulating buffer wide enough to serve
// as the io.Writer target for types.Encode* helpers that build a call's
// wire payload before it's wrapped in an Envelope.
type countingBuffer = bytes.Buffer

// encodeWith runs fn against a fresh countingBuffer and returns the
// accumulated bytes, the shape every CallRequest/CallResponse encoder in
// this package needs.
func encodeWith(fn func(w *countingBuffer) error) ([]byte, error) {
	var buf countingBuffer
	if err := fn(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// newByteReader wraps a flat payload slice in the buffered reader shape
// the types.Decode* helpers expect.
func newByteReader(b []byte) *bufio.Reader {
	return bufio.NewReader(bytes.NewReader(b))
}

// errorsWrapIO tags a raw socket error as an ioError-flavored ArmiError at
// the point it's observed.
func errorsWrapIO(err error) *types.ArmiError {
	return types.NewArmiError(types.KindIO, errors.Wrap(err, "armi/core: write failed"))
}
