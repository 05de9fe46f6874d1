package types

import (
	"bytes"
	"reflect"
	"testing"
)

func TestCallRequest_RoundTrip(t *testing.T) {
	req := CallRequest{
		Serial:  7,
		Service: "WorldClock",
		Method:  "getTime",
		Args:    []Value{"UTC"},
	}
	var buf bytes.Buffer
	if err := EncodeCallRequest(&buf, req); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCallRequest(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Serial != req.Serial || got.Service != req.Service || got.Method != req.Method {
		t.Fatalf("got %+v want %+v", got, req)
	}
	if !reflect.DeepEqual(got.Args, req.Args) {
		t.Fatalf("args: got %#v want %#v", got.Args, req.Args)
	}
}

func TestCallRequest_EmptyArgs(t *testing.T) {
	req := CallRequest{Serial: 1, Service: "S", Method: "m", Args: nil}
	var buf bytes.Buffer
	if err := EncodeCallRequest(&buf, req); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCallRequest(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Args) != 0 {
		t.Fatalf("expected zero args, got %v", got.Args)
	}
}

func TestCallResponse_RoundTripValue(t *testing.T) {
	resp := CallResponse{Serial: 7, Value: "ok"}
	var buf bytes.Buffer
	if err := EncodeCallResponse(&buf, resp); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCallResponse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Serial != resp.Serial || got.Value != resp.Value || got.Err != nil {
		t.Fatalf("got %+v want %+v", got, resp)
	}
}

func TestCallResponse_RoundTripError(t *testing.T) {
	resp := CallResponse{Serial: 9, Err: &ArmiError{Kind: KindInvocation, Message: "service not found"}}
	var buf bytes.Buffer
	if err := EncodeCallResponse(&buf, resp); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCallResponse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Err == nil || got.Err.Message != "service not found" || got.Err.Kind != KindInvocation {
		t.Fatalf("got %+v", got.Err)
	}
}
