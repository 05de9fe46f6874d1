package types

import (
	"context"
	"testing"
)

func TestServiceDescriptor_ResolveExactArity(t *testing.T) {
	svc := NewServiceDescriptor("Echo").Method("say", 1, false, func(ctx context.Context, args []Value) (Value, error) {
		return args[0], nil
	})

	m, err := svc.Resolve("say", 1)
	if err != nil {
		t.Fatal(err)
	}
	result, err := m.Handler(context.Background(), []Value{"hi"})
	if err != nil {
		t.Fatal(err)
	}
	if result != "hi" {
		t.Fatalf("got %v", result)
	}
}

func TestServiceDescriptor_RejectsWrongArity(t *testing.T) {
	svc := NewServiceDescriptor("Echo").Method("say", 1, false, func(ctx context.Context, args []Value) (Value, error) {
		return args[0], nil
	})
	if _, err := svc.Resolve("say", 2); err == nil {
		t.Fatal("expected arity mismatch error")
	}
}

func TestServiceDescriptor_VariadicAcceptsExtraArgs(t *testing.T) {
	svc := NewServiceDescriptor("Logger").Method("log", 1, true, func(ctx context.Context, args []Value) (Value, error) {
		return int64(len(args)), nil
	})
	m, err := svc.Resolve("log", 3)
	if err != nil {
		t.Fatal(err)
	}
	result, err := m.Handler(context.Background(), []Value{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if result != int64(3) {
		t.Fatalf("got %v", result)
	}
}

func TestServiceDescriptor_MethodNotFound(t *testing.T) {
	svc := NewServiceDescriptor("Echo")
	if _, err := svc.Resolve("missing", 0); err == nil {
		t.Fatal("expected method-not-found error")
	}
}
