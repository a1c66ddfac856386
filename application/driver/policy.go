package driver

import (
	"fmt"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/entities"
)

// PolicyMode selects how the exit code of a raising program is chosen.
type PolicyMode string

const (
	// PolicyPreserve keeps the status code the program set and falls back
	// to the policy code when the OS would see it as 0.
	PolicyPreserve PolicyMode = "preserve"
	// PolicyFixed always exits with the policy code.
	PolicyFixed PolicyMode = "fixed"
)

// FailurePolicy maps an exit status that carries an exception to a process
// exit code. The resolved code is never 0.
type FailurePolicy struct {
	Mode PolicyMode
	Code int32
}

// DefaultFailurePolicy preserves the program's code and uses 1 otherwise.
var DefaultFailurePolicy = FailurePolicy{Mode: PolicyPreserve, Code: 1}

// ParseFailurePolicy builds a policy from its configuration values. An empty
// mode selects PolicyPreserve and a zero code selects 1.
func ParseFailurePolicy(mode string, code int32) (FailurePolicy, error) {
	p := FailurePolicy{Mode: PolicyMode(mode), Code: code}
	if p.Mode == "" {
		p.Mode = PolicyPreserve
	}
	if p.Mode != PolicyPreserve && p.Mode != PolicyFixed {
		return FailurePolicy{}, &parac.ConfigError{
			Field: "runtime.failure_policy",
			Err:   fmt.Errorf("unknown failure policy %q", mode),
		}
	}
	if p.Code < 0 {
		return FailurePolicy{}, &parac.ConfigError{
			Field: "runtime.failure_code",
			Err:   fmt.Errorf("failure code %d is negative", code),
		}
	}
	if p.Code == 0 {
		p.Code = DefaultFailurePolicy.Code
	}
	return p, nil
}

// ExitCode returns the process exit code for s. A status without exception
// exits with its own code. For a status with exception the low byte of the
// result, which is all the OS keeps, is never 0.
func (p FailurePolicy) ExitCode(s entities.ExitStatus) int {
	if !s.IsException {
		return int(s.StatusCode)
	}
	if p.Mode != PolicyFixed && s.StatusCode&0xff != 0 {
		return int(s.StatusCode)
	}
	code := p.Code
	if code&0xff == 0 {
		code = DefaultFailurePolicy.Code
	}
	return int(code)
}

func (p FailurePolicy) String() string {
	return fmt.Sprintf("%s(%d)", p.Mode, p.Code)
}
