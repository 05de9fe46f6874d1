package types

import (
	"context"

	"github.com/pkg/errors"
)

// Handler is the typed, reflection-free invocation target for one method.
// It receives the decoded arguments in the closed Value grammar and
// returns a Value result or an error; a returned error is wrapped as an
// ArmiError of kind invocationError before it is written back to the
// caller.
type Handler func(ctx context.Context, args []Value) (Value, error)

// MethodDescriptor declares one callable method: its arity, whether it
// accepts a variadic tail, and the handler that runs it. The service
// author states the shape up front instead of the runtime inspecting it,
// so dispatch never needs reflection.
type MethodDescriptor struct {
	Arity    int
	Variadic bool
	Handler  Handler
}

// Accepts reports whether argc positional arguments satisfy this method's
// declared arity.
func (m MethodDescriptor) Accepts(argc int) bool {
	if m.Variadic {
		return argc >= m.Arity
	}
	return argc == m.Arity
}

// ServiceDescriptor is the invocable registry entry addressed by name in
// RegisterService/Call: a fixed table of method name to MethodDescriptor.
type ServiceDescriptor struct {
	Name    string
	Methods map[string]MethodDescriptor
}

// NewServiceDescriptor starts an empty, named descriptor ready to have
// methods attached with Method.
func NewServiceDescriptor(name string) *ServiceDescriptor {
	return &ServiceDescriptor{Name: name, Methods: make(map[string]MethodDescriptor)}
}

// Method attaches a method to the descriptor and returns it, so
// registration can be chained at the call site.
func (s *ServiceDescriptor) Method(name string, arity int, variadic bool, handler Handler) *ServiceDescriptor {
	s.Methods[name] = MethodDescriptor{Arity: arity, Variadic: variadic, Handler: handler}
	return s
}

// Resolve looks up a method by name and checks its arity against the
// supplied argument count: exact arity preferred, variadic forms accepted
// when declared.
func (s *ServiceDescriptor) Resolve(method string, argc int) (MethodDescriptor, error) {
	m, ok := s.Methods[method]
	if !ok {
		return MethodDescriptor{}, errors.Errorf("method not found: %s.%s", s.Name, method)
	}
	if !m.Accepts(argc) {
		return MethodDescriptor{}, errors.Errorf("method %s.%s does not accept %d arguments", s.Name, method, argc)
	}
	return m, nil
}
