package types

import "io"

// Intent distinguishes a SubscriberRemote control envelope that installs a
// subscription from one that cancels it.
type Intent byte

const (
	IntentSubscribe Intent = iota
	IntentCancel
)

// RemotePredicate is the serializable subset of a predicate: an equality
// check against one field of a decoded map-shaped payload. A predicate
// that cannot be expressed this way travels as nil and is demoted to
// local-only filtering; the demotion is observable via logging at the
// call site, not by this type.
type RemotePredicate struct {
	Field  string
	Equals Value
}

// Matches evaluates the predicate against a decoded payload value. A
// payload that isn't a map never matches a field predicate.
func (p *RemotePredicate) Matches(payload Value) bool {
	if p == nil {
		return true
	}
	m, ok := payload.(map[string]Value)
	if !ok {
		return false
	}
	return valueEquals(m[p.Field], p.Equals)
}

func valueEquals(a, b Value) bool {
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case []Value, map[string]Value:
		// Composite equality is not a supported predicate shape.
		return false
	default:
		switch b.(type) {
		case []byte, []Value, map[string]Value:
			return false
		}
		return a == b
	}
}

// SubscriberControl is the decoded payload of a SubscriberRemote envelope:
// enough to install or cancel a subscription on the receiving hub.
type SubscriberControl struct {
	Type   string
	Flavor *string
	Intent Intent
	Remote *RemotePredicate
}

func EncodeSubscriberControl(w io.Writer, c SubscriberControl) error {
	if err := WriteNonNullString(w, c.Type); err != nil {
		return err
	}
	if err := WriteNullableString(w, c.Flavor); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(c.Intent)}); err != nil {
		return err
	}
	if c.Remote == nil {
		_, err := w.Write([]byte{nullMarker})
		return err
	}
	if _, err := w.Write([]byte{presentMarker}); err != nil {
		return err
	}
	if err := WriteNonNullString(w, c.Remote.Field); err != nil {
		return err
	}
	return EncodeValue(w, c.Remote.Equals)
}

func DecodeSubscriberControl(r io.Reader) (SubscriberControl, error) {
	var c SubscriberControl
	typ, err := ReadNonNullString(r)
	if err != nil {
		return c, err
	}
	c.Type = typ

	flavor, err := ReadNullableString(r)
	if err != nil {
		return c, err
	}
	c.Flavor = flavor

	var intent [1]byte
	if _, err := io.ReadFull(r, intent[:]); err != nil {
		return c, err
	}
	c.Intent = Intent(intent[0])

	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return c, err
	}
	if marker[0] == nullMarker {
		return c, nil
	}
	field, err := ReadNonNullString(r)
	if err != nil {
		return c, err
	}
	equals, err := DecodeValue(r)
	if err != nil {
		return c, err
	}
	c.Remote = &RemotePredicate{Field: field, Equals: equals}
	return c, nil
}
