package entities

import (
	"errors"
	"strings"
)

// Return is the typed result of a compiled function: the envelope plus the
// value it guards. One instantiation exists per value type used by a program.
type Return[T any] struct {
	Base        BaseReturn
	ActualValue T
}

// ReturnInt is the result of functions returning the target's int.
type ReturnInt = Return[int32]

// ErrNullValue is returned by Unwrap on a null success.
var ErrNullValue = errors.New("result holds no value")

// Success returns a non-null result carrying v.
func Success[T any](v T) Return[T] {
	return Return[T]{Base: SuccessEnvelope(false), ActualValue: v}
}

// NullSuccess returns a successful result without a value.
func NullSuccess[T any]() Return[T] {
	return Return[T]{Base: SuccessEnvelope(true)}
}

// Failure returns a raised result. The traceback arguments are joined, one
// frame per line.
func Failure[T any](message string, traceback ...string) Return[T] {
	return Return[T]{Base: FailureEnvelope(message, strings.Join(traceback, "\n"))}
}

// FromError turns a Go error into a raised result. Diagnostics of an
// *Exception in the chain are kept as they are.
func FromError[T any](err error) Return[T] {
	if err == nil {
		return NullSuccess[T]()
	}
	var exc *Exception
	if errors.As(err, &exc) {
		return Failure[T](exc.Message, exc.Traceback)
	}
	return Failure[T](err.Error())
}

// IsOk reports whether a value is present.
func (r Return[T]) IsOk() bool { return r.Base.State() == StateValue }

// IsNull reports whether the call succeeded without a value.
func (r Return[T]) IsNull() bool { return !r.Base.IsException && r.Base.IsNull }

// IsException reports whether the call raised.
func (r Return[T]) IsException() bool { return r.Base.IsException }

// State reports which path the result is on.
func (r Return[T]) State() State { return r.Base.State() }

// Unwrap returns the value when the result is on the value path. Otherwise
// it returns the zero value and the error the caller has to propagate: an
// *Exception for a raised result, ErrNullValue for a null success.
func (r Return[T]) Unwrap() (T, error) {
	switch r.State() {
	case StateValue:
		return r.ActualValue, nil
	case StateNull:
		var zero T
		return zero, ErrNullValue
	default:
		var zero T
		return zero, r.Base.Err()
	}
}

// Propagate forwards a raised result as a result of another type. The
// exception and traceback are carried over unchanged. Propagate must only be
// called on the propagate path; on any other path it yields a failure that
// names the misuse.
func Propagate[U, T any](r Return[T]) Return[U] {
	if !r.Base.IsException {
		return Failure[U]("propagate called on a result that did not raise")
	}
	return Return[U]{Base: r.Base}
}

// Reraise forwards a raised result like Propagate and appends frame to its
// traceback. The exception message is never changed.
func Reraise[U, T any](r Return[T], frame string) Return[U] {
	out := Propagate[U](r)
	if !r.Base.IsException || frame == "" {
		return out
	}
	out.Base.Traceback = AppendFrame(out.Base.Traceback, frame)
	return out
}

// Map applies f on the value path and forwards the other paths.
func Map[T, U any](r Return[T], f func(T) U) Return[U] {
	switch r.State() {
	case StateValue:
		return Success(f(r.ActualValue))
	case StateNull:
		return NullSuccess[U]()
	default:
		return Propagate[U](r)
	}
}

// AppendFrame adds one line to a traceback.
func AppendFrame(traceback, frame string) string {
	if traceback == "" {
		return frame
	}
	return traceback + "\n" + frame
}
