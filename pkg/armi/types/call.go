package types

import "io"

// CallRequest is the decoded payload of a SynchronousCall envelope.
type CallRequest struct {
	Serial  uint64
	Service string
	Method  string
	Args    []Value
}

func EncodeCallRequest(w io.Writer, c CallRequest) error {
	if err := WriteUint64(w, c.Serial); err != nil {
		return err
	}
	if err := WriteNonNullString(w, c.Service); err != nil {
		return err
	}
	if err := WriteNonNullString(w, c.Method); err != nil {
		return err
	}
	if err := WriteUint32(w, uint32(len(c.Args))); err != nil {
		return err
	}
	for _, a := range c.Args {
		if err := EncodeValue(w, a); err != nil {
			return err
		}
	}
	return nil
}

func DecodeCallRequest(r io.Reader) (CallRequest, error) {
	var c CallRequest
	serial, err := ReadUint64(r)
	if err != nil {
		return c, err
	}
	c.Serial = serial

	service, err := ReadNonNullString(r)
	if err != nil {
		return c, err
	}
	c.Service = service

	method, err := ReadNonNullString(r)
	if err != nil {
		return c, err
	}
	c.Method = method

	n, err := ReadUint32(r)
	if err != nil {
		return c, err
	}
	c.Args = make([]Value, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := DecodeValue(r)
		if err != nil {
			return c, err
		}
		c.Args = append(c.Args, v)
	}
	return c, nil
}

// CallResponse is the decoded payload of a SynchronousResponse envelope.
// Exactly one of Value/Err is meaningful; a response with a non-nil Err
// represents an invocation failure, not a transport failure.
type CallResponse struct {
	Serial uint64
	Value  Value
	Err    *ArmiError
}

func EncodeCallResponse(w io.Writer, c CallResponse) error {
	if err := WriteUint64(w, c.Serial); err != nil {
		return err
	}
	if c.Err != nil {
		if _, err := w.Write([]byte{presentMarker}); err != nil {
			return err
		}
		return EncodeValue(w, c.Err.ToValue())
	}
	if _, err := w.Write([]byte{nullMarker}); err != nil {
		return err
	}
	return EncodeValue(w, c.Value)
}

func DecodeCallResponse(r io.Reader) (CallResponse, error) {
	var c CallResponse
	serial, err := ReadUint64(r)
	if err != nil {
		return c, err
	}
	c.Serial = serial

	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return c, err
	}
	if marker[0] == presentMarker {
		ev, err := DecodeValue(r)
		if err != nil {
			return c, err
		}
		ae, err := ArmiErrorFromValue(ev)
		if err != nil {
			return c, err
		}
		c.Err = ae
		return c, nil
	}
	v, err := DecodeValue(r)
	if err != nil {
		return c, err
	}
	c.Value = v
	return c, nil
}
