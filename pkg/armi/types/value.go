package types

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

func float64bits(f float64) uint64 { return math.Float64bits(f) }

func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// Value is the closed grammar for anything that crosses the wire as a call
// argument, a call result, or a publish payload: nil, bool, int64, float64,
// string, []byte, a sequence of Value, or a string-keyed map of Value.
// There is deliberately no reflection-based fallback; an unsupported Go
// type is a programmer error caught at encode time.
type Value = interface{}

const (
	tagNil byte = iota
	tagBool
	tagInt64
	tagFloat64
	tagString
	tagBytes
	tagSeq
	tagMap
)

// EncodeValue writes v in the closed grammar. int and int32 are widened to
// int64 and float32 to float64 first, since the wire format only ever
// carries the two canonical numeric widths; other numeric types (int8,
// int16, unsigned integers) are rejected like any unsupported type.
func EncodeValue(w io.Writer, v Value) error {
	switch x := v.(type) {
	case nil:
		_, err := w.Write([]byte{tagNil})
		return err
	case bool:
		if _, err := w.Write([]byte{tagBool}); err != nil {
			return err
		}
		b := byte(0)
		if x {
			b = 1
		}
		_, err := w.Write([]byte{b})
		return err
	case int:
		return EncodeValue(w, int64(x))
	case int32:
		return EncodeValue(w, int64(x))
	case int64:
		if _, err := w.Write([]byte{tagInt64}); err != nil {
			return err
		}
		return WriteUint64(w, uint64(x))
	case float32:
		return EncodeValue(w, float64(x))
	case float64:
		if _, err := w.Write([]byte{tagFloat64}); err != nil {
			return err
		}
		return WriteUint64(w, float64bits(x))
	case string:
		if _, err := w.Write([]byte{tagString}); err != nil {
			return err
		}
		return WriteBytes(w, []byte(x))
	case []byte:
		if _, err := w.Write([]byte{tagBytes}); err != nil {
			return err
		}
		return WriteBytes(w, x)
	case []Value:
		if _, err := w.Write([]byte{tagSeq}); err != nil {
			return err
		}
		if err := WriteUint32(w, uint32(len(x))); err != nil {
			return err
		}
		for _, e := range x {
			if err := EncodeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	case map[string]Value:
		if _, err := w.Write([]byte{tagMap}); err != nil {
			return err
		}
		if err := WriteUint32(w, uint32(len(x))); err != nil {
			return err
		}
		for k, e := range x {
			if err := WriteBytes(w, []byte(k)); err != nil {
				return err
			}
			if err := EncodeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("armi: type %T is not representable on the wire", v)
	}
}

// DecodeValue reads back a Value written by EncodeValue.
func DecodeValue(r io.Reader) (Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, err
	}
	switch tag[0] {
	case tagNil:
		return nil, nil
	case tagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case tagInt64:
		v, err := ReadUint64(r)
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case tagFloat64:
		v, err := ReadUint64(r)
		if err != nil {
			return nil, err
		}
		return float64frombits(v), nil
	case tagString:
		b, err := ReadBytes(r)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case tagBytes:
		return ReadBytes(r)
	case tagSeq:
		n, err := ReadUint32(r)
		if err != nil {
			return nil, err
		}
		seq := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			e, err := DecodeValue(r)
			if err != nil {
				return nil, err
			}
			seq = append(seq, e)
		}
		return seq, nil
	case tagMap:
		n, err := ReadUint32(r)
		if err != nil {
			return nil, err
		}
		m := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			kb, err := ReadBytes(r)
			if err != nil {
				return nil, err
			}
			e, err := DecodeValue(r)
			if err != nil {
				return nil, err
			}
			m[string(kb)] = e
		}
		return m, nil
	default:
		return nil, errors.Wrap(ErrCorrupt, fmt.Sprintf("unknown value tag %d", tag[0]))
	}
}

// EncodeValueToBytes and DecodeValueFromBytes are convenience wrappers used
// wherever a Value must be flattened into an Envelope.Payload.
func EncodeValueToBytes(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeValueFromBytes(b []byte) (Value, error) {
	return DecodeValue(bytes.NewReader(b))
}
