package types

import (
	"testing"

	"github.com/pkg/errors"
)

func TestArmiError_ToValueFromValueRoundTrip(t *testing.T) {
	inner := NewArmiError(KindIO, errors.New("dial refused"))
	outer := &ArmiError{
		Kind:    KindInvocation,
		Message: "service not found",
		Cause:   inner,
	}

	v := outer.ToValue()
	back, err := ArmiErrorFromValue(v)
	if err != nil {
		t.Fatalf("from value: %v", err)
	}
	if back.Kind != outer.Kind || back.Message != outer.Message {
		t.Fatalf("got %+v want %+v", back, outer)
	}
	if back.Cause == nil || back.Cause.Message != inner.Message {
		t.Fatalf("cause not preserved: %+v", back.Cause)
	}
}

func TestArmiError_CapturesStack(t *testing.T) {
	err := errors.New("boom")
	ae := NewArmiError(KindInvocation, err)
	if len(ae.Frames) == 0 {
		t.Fatal("expected at least one captured stack frame")
	}
}

func TestArmiError_Unwrap(t *testing.T) {
	inner := &ArmiError{Kind: KindIO, Message: "dial refused"}
	outer := &ArmiError{Kind: KindInvocation, Message: "wrapped", Cause: inner}

	if !errors.Is(outer, inner) {
		t.Fatal("expected errors.Is to find the nested cause")
	}
}
