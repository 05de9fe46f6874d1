package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/jabolina/armi/pkg/armi/types"
)

func roundTrip(t *testing.T, e types.Envelope) types.Envelope {
	t.Helper()
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := EncodeEnvelope(bw, e); err != nil {
		t.Fatalf("encode: %v", err)
	}
	br := bufio.NewReader(&buf)
	got, err := DecodeEnvelope(br)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func flavor(s string) *string { return &s }

func TestEnvelope_RoundTrip(t *testing.T) {
	cases := []types.Envelope{
		{Type: "Date", Flavor: nil, Compression: 0, Payload: []byte("hello")},
		{Type: "Date", Flavor: flavor("1sec"), Compression: 0, Payload: []byte{}},
		{Type: types.TypeSynchronousCall, Flavor: flavor(""), Compression: 0, Payload: []byte{1, 2, 3}},
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if got.Type != c.Type {
			t.Errorf("type: got %q want %q", got.Type, c.Type)
		}
		if (got.Flavor == nil) != (c.Flavor == nil) {
			t.Errorf("flavor nullness mismatch: got %v want %v", got.Flavor, c.Flavor)
		}
		if got.Flavor != nil && c.Flavor != nil && *got.Flavor != *c.Flavor {
			t.Errorf("flavor: got %q want %q", *got.Flavor, *c.Flavor)
		}
		if got.Compression != c.Compression {
			t.Errorf("compression: got %d want %d", got.Compression, c.Compression)
		}
		if !bytes.Equal(got.Payload, c.Payload) {
			t.Errorf("payload: got %v want %v", got.Payload, c.Payload)
		}
	}
}

func TestEnvelope_DistinguishesNullFromEmptyFlavor(t *testing.T) {
	nullFlavor := roundTrip(t, types.Envelope{Type: "X", Flavor: nil})
	emptyFlavor := roundTrip(t, types.Envelope{Type: "X", Flavor: flavor("")})

	if nullFlavor.Flavor != nil {
		t.Fatalf("expected nil flavor, got %v", nullFlavor.Flavor)
	}
	if emptyFlavor.Flavor == nil || *emptyFlavor.Flavor != "" {
		t.Fatalf("expected empty non-nil flavor, got %v", emptyFlavor.Flavor)
	}
}

func TestEnvelope_RejectsUnsupportedCompression(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	e := types.Envelope{Type: "X", Compression: 7, Payload: nil}
	if err := types.WriteNonNullString(bw, e.Type); err != nil {
		t.Fatal(err)
	}
	if err := types.WriteNullableString(bw, e.Flavor); err != nil {
		t.Fatal(err)
	}
	bw.WriteByte(e.Compression)
	types.WriteBytes(bw, e.Payload)
	bw.Flush()

	_, err := DecodeEnvelope(bufio.NewReader(&buf))
	if err == nil {
		t.Fatal("expected corruption error for unsupported compression byte")
	}
}

func TestEnvelope_MultipleValuesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	want := []types.Envelope{
		{Type: "A", Payload: []byte("1")},
		{Type: "B", Flavor: flavor("f"), Payload: []byte("2")},
		{Type: "C", Payload: []byte{}},
	}
	for _, e := range want {
		if err := EncodeEnvelope(bw, e); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	br := bufio.NewReader(&buf)
	for i, w := range want {
		got, err := DecodeEnvelope(br)
		if err != nil {
			t.Fatalf("decode #%d: %v", i, err)
		}
		if got.Type != w.Type || !bytes.Equal(got.Payload, w.Payload) {
			t.Fatalf("decode #%d mismatch: got %+v want %+v", i, got, w)
		}
	}
	if _, err := DecodeEnvelope(br); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}
