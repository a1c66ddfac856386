// Package entities provides the runtime value representation shared by
// compiled Para-C programs and the driver that runs them.
//
// Generated code cannot throw. Every function that can fail returns a
// Return[T] whose BaseReturn envelope says whether a value, an explicit
// "no value", or an exception was produced. The program's entry function
// returns an ExitStatus, which is wrapped into an EntryPoint for the driver.
//
// All types here are plain values. They are never mutated after
// construction and cross function boundaries by copy only.
package entities

// BaseReturn is the envelope embedded in every typed result.
//
// When IsException is set, Exception holds a non-empty diagnostic and the
// value of the enclosing result must not be read. When IsException is unset
// and IsNull is set, the call succeeded without producing a value.
type BaseReturn struct {
	IsException bool
	Exception   string
	Traceback   string
	IsNull      bool
}

// SuccessEnvelope builds the envelope of a successful call. isNull reports
// that no value is logically present.
func SuccessEnvelope(isNull bool) BaseReturn {
	return BaseReturn{IsNull: isNull}
}

// FailureEnvelope builds the envelope of a call that raised. An empty message
// is replaced by DefaultExceptionMessage so the exception path always carries
// a diagnostic.
func FailureEnvelope(message, traceback string) BaseReturn {
	if message == "" {
		message = DefaultExceptionMessage
	}
	return BaseReturn{
		IsException: true,
		Exception:   message,
		Traceback:   traceback,
	}
}

// DefaultExceptionMessage is used when a failure is raised without a message.
const DefaultExceptionMessage = "unknown exception"

// State is the outcome observed by a caller inspecting a result.
type State int

const (
	// StateValue means a value is present and may be read.
	StateValue State = iota
	// StateNull means the call succeeded without a value.
	StateNull
	// StatePropagate means the call raised and the caller must re-raise.
	StatePropagate
)

func (s State) String() string {
	switch s {
	case StateValue:
		return "value"
	case StateNull:
		return "null"
	case StatePropagate:
		return "propagate"
	default:
		return "invalid"
	}
}

// State reports which of the three paths the envelope is on.
func (b BaseReturn) State() State {
	switch {
	case b.IsException:
		return StatePropagate
	case b.IsNull:
		return StateNull
	default:
		return StateValue
	}
}

// Err returns the envelope's exception as an error, or nil on success.
func (b BaseReturn) Err() error {
	if !b.IsException {
		return nil
	}
	return &Exception{Message: b.Exception, Traceback: b.Traceback}
}
