package types

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrCorrupt marks a stream that can no longer be trusted to frame on a
// value boundary. Receivers must treat it as terminal for the connection.
var ErrCorrupt = errors.New("armi: corrupt stream")

// nullMarker / presentMarker prefix every nullable string so that a null
// and an empty string remain distinguishable on the wire.
const (
	nullMarker    byte = 0
	presentMarker byte = 1
)

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// WriteBytes writes a length-prefixed byte slice. A nil slice and an
// empty slice both round-trip as a zero-length slice; byte payloads have
// no null/empty distinction to preserve (only strings do, see
// WriteNullableString).
func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteUint32(w, uint32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return buf, nil
}

// WriteNonNullString writes a string that is never allowed to be null,
// such as an envelope's type tag.
func WriteNonNullString(w io.Writer, s string) error {
	if _, err := w.Write([]byte{presentMarker}); err != nil {
		return err
	}
	return WriteBytes(w, []byte(s))
}

func ReadNonNullString(r io.Reader) (string, error) {
	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return "", err
	}
	if marker[0] != presentMarker {
		return "", errors.Wrap(ErrCorrupt, "expected non-null string marker")
	}
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteNullableString writes a leading null-marker byte followed by the
// length-prefixed string body, so a nil *string and a pointer to an empty
// string are distinguishable on replay.
func WriteNullableString(w io.Writer, s *string) error {
	if s == nil {
		_, err := w.Write([]byte{nullMarker})
		return err
	}
	if _, err := w.Write([]byte{presentMarker}); err != nil {
		return err
	}
	return WriteBytes(w, []byte(*s))
}

func ReadNullableString(r io.Reader) (*string, error) {
	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return nil, err
	}
	switch marker[0] {
	case nullMarker:
		return nil, nil
	case presentMarker:
		b, err := ReadBytes(r)
		if err != nil {
			return nil, err
		}
		s := string(b)
		return &s, nil
	default:
		return nil, errors.Wrap(ErrCorrupt, "unknown nullable string marker")
	}
}

// ByteReader/ByteWriter are the concrete stream types the codec is
// written against; kept as a narrow alias so call sites don't need to
// import bufio themselves just to hold a reference.
type ByteReader = *bufio.Reader
type ByteWriter = *bufio.Writer
