// Package wire implements the bidirectional envelope framing described in
// the core's frame-codec component: a header-less continuation stream
// that writes and expects exactly the envelope's fields, in order, for as
// long as the underlying connection lives.
package wire

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/jabolina/armi/pkg/armi/types"
)

// EncodeEnvelope writes e's fields in order with no framing preamble, so
// repeated calls on the same writer continue the same logical stream.
func EncodeEnvelope(w *bufio.Writer, e types.Envelope) error {
	if err := types.WriteNonNullString(w, e.Type); err != nil {
		return errors.Wrap(err, "armi/wire: write type")
	}
	if err := types.WriteNullableString(w, e.Flavor); err != nil {
		return errors.Wrap(err, "armi/wire: write flavor")
	}
	if _, err := w.Write([]byte{e.Compression}); err != nil {
		return errors.Wrap(err, "armi/wire: write compression")
	}
	if err := types.WriteBytes(w, e.Payload); err != nil {
		return errors.Wrap(err, "armi/wire: write payload")
	}
	return w.Flush()
}

// DecodeEnvelope reads one envelope off r. Any error returned here other
// than io.EOF on the very first byte must be treated by the caller as
// corrupting the stream for good: there is no way to resynchronize on a
// header-less continuation format.
func DecodeEnvelope(r *bufio.Reader) (types.Envelope, error) {
	var e types.Envelope

	typ, err := types.ReadNonNullString(r)
	if err != nil {
		if err == io.EOF {
			return e, io.EOF
		}
		return e, errors.Wrap(types.ErrCorrupt, err.Error())
	}
	e.Type = typ

	flavor, err := types.ReadNullableString(r)
	if err != nil {
		return e, errors.Wrap(types.ErrCorrupt, err.Error())
	}
	e.Flavor = flavor

	compression, err := r.ReadByte()
	if err != nil {
		return e, errors.Wrap(types.ErrCorrupt, err.Error())
	}
	if compression != types.CompressionIdentity {
		return e, errors.Wrapf(types.ErrCorrupt, "unsupported compression byte %d", compression)
	}
	e.Compression = compression

	payload, err := types.ReadBytes(r)
	if err != nil {
		return e, errors.Wrap(types.ErrCorrupt, err.Error())
	}
	e.Payload = payload

	return e, nil
}
