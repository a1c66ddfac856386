package entities

// ExitStatus is the result of a program's entry function. It mirrors
// BaseReturn but carries a process status code instead of a value.
type ExitStatus struct {
	IsException bool
	Exception   string
	Traceback   string
	StatusCode  int32
}

// ExitSuccess is the normal termination of a program with the given code.
func ExitSuccess(code int32) ExitStatus {
	return ExitStatus{StatusCode: code}
}

// ExitFailure is the termination of a program by an exception that reached
// the entry function. code is passed through unchanged; whether a zero code
// is replaced is decided by the driver.
func ExitFailure(message, traceback string, code int32) ExitStatus {
	env := FailureEnvelope(message, traceback)
	return ExitStatus{
		IsException: true,
		Exception:   env.Exception,
		Traceback:   env.Traceback,
		StatusCode:  code,
	}
}

// ExitFrom converts the last result seen by an entry function into its exit
// status. The value and null paths exit with code, the propagate path raises
// with failureCode.
func ExitFrom[T any](r Return[T], code, failureCode int32) ExitStatus {
	if r.Base.IsException {
		return ExitFailure(r.Base.Exception, r.Base.Traceback, failureCode)
	}
	return ExitSuccess(code)
}

// ExitWithValue converts an int result into an exit status using the value
// as the status code. A null success exits with 0.
func ExitWithValue(r ReturnInt, failureCode int32) ExitStatus {
	switch r.State() {
	case StateValue:
		return ExitSuccess(r.ActualValue)
	case StateNull:
		return ExitSuccess(0)
	default:
		return ExitFailure(r.Base.Exception, r.Base.Traceback, failureCode)
	}
}

// Envelope returns the exception part of the status as a BaseReturn.
func (s ExitStatus) Envelope() BaseReturn {
	return BaseReturn{
		IsException: s.IsException,
		Exception:   s.Exception,
		Traceback:   s.Traceback,
	}
}

// Err returns the exception carried by the status, or nil.
func (s ExitStatus) Err() error {
	return s.Envelope().Err()
}
