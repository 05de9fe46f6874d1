package types

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// ErrorKind classifies the terminal error conditions the hub surfaces to
// callers and subscribers.
type ErrorKind string

const (
	KindIO           ErrorKind = "ioError"
	KindTimeout      ErrorKind = "timeoutError"
	KindProtocol     ErrorKind = "protocolError"
	KindInvocation   ErrorKind = "invocationError"
	KindIllegalState ErrorKind = "illegalState"
)

// StackFrame is one frame of a serialized stack trace: enough to locate
// the failure without shipping the whole runtime representation.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// ArmiError is the transportable structured error the runtime hands to
// callers and subscribers: a message, a kind, a captured stack, and an
// optional nested cause of the same shape. It round-trips on the wire as the payload of a
// SynchronousResponse or a standalone ArmiException envelope.
type ArmiError struct {
	Kind    ErrorKind
	Message string
	Frames  []StackFrame
	Cause   *ArmiError
}

func (e *ArmiError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through a nested cause the same way
// they would through a wrapped Go error.
func (e *ArmiError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// NewArmiError builds an ArmiError from a Go error, capturing a stack
// trace when err carries one (i.e. it was produced with
// errors.Wrap/errors.WithStack) and flattening any wrapped chain into the
// Cause field.
func NewArmiError(kind ErrorKind, err error) *ArmiError {
	if err == nil {
		return &ArmiError{Kind: kind}
	}
	ae := &ArmiError{
		Kind:    kind,
		Message: err.Error(),
		Frames:  stackFramesOf(err),
	}
	if cause := errors.Unwrap(err); cause != nil {
		if existing, ok := cause.(*ArmiError); ok {
			ae.Cause = existing
		} else {
			ae.Cause = NewArmiError(kind, cause)
		}
	}
	return ae
}

// stackTracer is implemented by errors produced via github.com/pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func stackFramesOf(err error) []StackFrame {
	st, ok := err.(stackTracer)
	if !ok {
		return nil
	}
	trace := st.StackTrace()
	frames := make([]StackFrame, 0, len(trace))
	for _, f := range trace {
		frames = append(frames, StackFrame{
			Function: fmt.Sprintf("%n", f),
			File:     fmt.Sprintf("%s", f),
			Line:     lineOf(f),
		})
	}
	return frames
}

func lineOf(f errors.Frame) int {
	line, err := strconv.Atoi(fmt.Sprintf("%d", f))
	if err != nil {
		return 0
	}
	return line
}

// ToValue flattens the error into the closed Value grammar so it can ride
// inside a call response or an ArmiException envelope payload.
func (e *ArmiError) ToValue() Value {
	if e == nil {
		return nil
	}
	frames := make([]Value, 0, len(e.Frames))
	for _, f := range e.Frames {
		frames = append(frames, map[string]Value{
			"function": f.Function,
			"file":     f.File,
			"line":     int64(f.Line),
		})
	}
	m := map[string]Value{
		"kind":    string(e.Kind),
		"message": e.Message,
		"frames":  frames,
	}
	if e.Cause != nil {
		m["cause"] = e.Cause.ToValue()
	}
	return m
}

// ArmiErrorFromValue reverses ToValue, used by a receiver decoding a call
// response or ArmiException payload.
func ArmiErrorFromValue(v Value) (*ArmiError, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]Value)
	if !ok {
		return nil, errors.New("armi: malformed ArmiError value")
	}
	ae := &ArmiError{
		Kind:    ErrorKind(stringField(m, "kind")),
		Message: stringField(m, "message"),
	}
	if framesV, ok := m["frames"].([]Value); ok {
		for _, fv := range framesV {
			fm, ok := fv.(map[string]Value)
			if !ok {
				continue
			}
			line, _ := fm["line"].(int64)
			ae.Frames = append(ae.Frames, StackFrame{
				Function: stringField(fm, "function"),
				File:     stringField(fm, "file"),
				Line:     int(line),
			})
		}
	}
	if causeV, ok := m["cause"]; ok && causeV != nil {
		cause, err := ArmiErrorFromValue(causeV)
		if err != nil {
			return nil, err
		}
		ae.Cause = cause
	}
	return ae, nil
}

func stringField(m map[string]Value, key string) string {
	s, _ := m[key].(string)
	return s
}
