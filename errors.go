// Package parac holds the toolchain-wide error taxonomy and version constants
// shared by the Para-C runtime driver and its project tooling.
//
// All error types support error unwrapping via errors.As() and errors.Is().
// Every error maps to a numeric ErrorCode which the driver uses as the process
// exit code when the failure originates in the toolchain rather than in the
// compiled program.
package parac

import (
	"errors"
	"fmt"
)

// ErrorCode is a toolchain error code. The hundreds digit names the stage
// that failed.
type ErrorCode int

const (
	CodeBase ErrorCode = 99

	// 1xx - internal errors
	CodeInternal        ErrorCode = 100
	CodeInterrupt       ErrorCode = 101
	CodeFailedToProcess ErrorCode = 102

	// 2xx - user input errors
	CodeUserInput        ErrorCode = 200
	CodeFileAccess       ErrorCode = 201
	CodeFilePermission   ErrorCode = 202
	CodeFileNotFound     ErrorCode = 203
	CodeIsDirectory      ErrorCode = 204
	CodeInvalidArguments ErrorCode = 205
	CodeConfigNotFound   ErrorCode = 206
	CodeCompilerNotFound ErrorCode = 207

	CodeLexer   ErrorCode = 300
	CodeParser  ErrorCode = 400
	CodeLogical ErrorCode = 500
	CodeLinker  ErrorCode = 600

	CodeOther   ErrorCode = 900
	CodeUnknown ErrorCode = 901
)

var codeNames = map[ErrorCode]string{
	CodeBase:             "base_error",
	CodeInternal:         "internal_error",
	CodeInterrupt:        "interrupt",
	CodeFailedToProcess:  "failed_to_process",
	CodeUserInput:        "user_input_error",
	CodeFileAccess:       "file_access_error",
	CodeFilePermission:   "file_permission_error",
	CodeFileNotFound:     "file_not_found",
	CodeIsDirectory:      "is_directory",
	CodeInvalidArguments: "invalid_arguments",
	CodeConfigNotFound:   "config_not_found",
	CodeCompilerNotFound: "c_compiler_not_found",
	CodeLexer:            "lexer_error",
	CodeParser:           "parser_error",
	CodeLogical:          "logical_error",
	CodeLinker:           "linker_error",
	CodeOther:            "other",
	CodeUnknown:          "unknown",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Coder is implemented by errors that carry their own ErrorCode.
type Coder interface {
	Code() ErrorCode
}

// CodeOf returns the ErrorCode of the first error in err's chain that carries
// one. A nil error yields 0 and an uncoded error yields CodeUnknown.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeUnknown
}

// Error is the generic coded toolchain error.
type Error struct {
	ErrCode ErrorCode
	Msg     string
	Err     error
}

// Errorf builds an *Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{ErrCode: code, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.ErrCode.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Code() ErrorCode {
	if e.ErrCode == 0 {
		return CodeBase
	}
	return e.ErrCode
}

// InternalError reports a bug or an unexpected failure inside the toolchain.
type InternalError struct {
	Operation string
	Err       error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Operation, e.Err)
}

func (e *InternalError) Unwrap() error   { return e.Err }
func (e *InternalError) Code() ErrorCode { return CodeInternal }

// FileAccessError represents a failure to access a user-supplied file.
type FileAccessError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FileAccessError) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("cannot access %s: %s: %v", e.Path, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("cannot access %s: %s", e.Path, e.Reason)
	default:
		return fmt.Sprintf("cannot access %s: %v", e.Path, e.Err)
	}
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// Code refines the access failure when the underlying error says more.
func (e *FileAccessError) Code() ErrorCode {
	var c Coder
	if e.Err != nil && errors.As(e.Err, &c) {
		return c.Code()
	}
	return CodeFileAccess
}

// InvalidArgumentsError represents wrong usage of command line arguments or flags.
type InvalidArgumentsError struct {
	Arg string
	Msg string
}

func (e *InvalidArgumentsError) Error() string {
	if e.Arg != "" {
		return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Msg)
	}
	return fmt.Sprintf("invalid arguments: %s", e.Msg)
}

func (e *InvalidArgumentsError) Code() ErrorCode { return CodeInvalidArguments }

// ConfigNotFoundError means the project configuration file does not exist.
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("project configuration not found: %s", e.Path)
}

func (e *ConfigNotFoundError) Code() ErrorCode { return CodeConfigNotFound }

// ConfigError represents a project configuration validation error.
type ConfigError struct {
	Field string // Field name that failed validation
	Err   error  // Underlying validation error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error   { return e.Err }
func (e *ConfigError) Code() ErrorCode { return CodeUserInput }

// CompilerNotFoundError means a configured compiler path does not exist.
type CompilerNotFoundError struct {
	Kind string // "parac" or "cc"
	Path string
	Err  error
}

func (e *CompilerNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to locate %s compiler at %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to locate %s compiler at %s", e.Kind, e.Path)
}

func (e *CompilerNotFoundError) Unwrap() error   { return e.Err }
func (e *CompilerNotFoundError) Code() ErrorCode { return CodeCompilerNotFound }

// WireFormatError represents a wire format encoding/decoding error.
type WireFormatError struct {
	Operation string // "marshal" or "unmarshal"
	Type      string // Type being encoded/decoded
	Err       error  // Underlying error
}

func (e *WireFormatError) Error() string {
	return fmt.Sprintf("wire format %s failed for %s: %v", e.Operation, e.Type, e.Err)
}

func (e *WireFormatError) Unwrap() error   { return e.Err }
func (e *WireFormatError) Code() ErrorCode { return CodeInternal }

// TrapError means the compiled program aborted inside the runtime without
// producing an entry point (an unreachable instruction, an out of bounds
// access, a stack overflow).
type TrapError struct {
	Program string
	Err     error
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("program %s trapped: %v", e.Program, e.Err)
}

func (e *TrapError) Unwrap() error   { return e.Err }
func (e *TrapError) Code() ErrorCode { return CodeFailedToProcess }
