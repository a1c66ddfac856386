// Package wireformat defines the JSON wire format of entry points and exit
// statuses exchanged between the driver and tools that consume its reports
// (the run journal, -format json output). These types must remain stable and
// backward compatible.
package wireformat

import (
	"encoding/json"
	"errors"
	"fmt"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/entities"
)

// ExitStatusWire is the JSON form of entities.ExitStatus.
type ExitStatusWire struct {
	IsException bool   `json:"is_exception"`
	Exception   string `json:"exception,omitempty"`
	Traceback   string `json:"traceback,omitempty"`
	StatusCode  int32  `json:"status_code"`
}

// EntryPointWire is the JSON form of entities.EntryPoint. Variant names the
// active member; exactly the member it names is set.
type EntryPointWire struct {
	Variant string          `json:"variant"`
	ExitR   *ExitStatusWire `json:"exit_r,omitempty"`
}

// ExceptionDetail provides structured exception information for reports.
// Type: "exception" for exceptions raised by the program, "toolchain" for
// failures of the driver itself.
type ExceptionDetail struct {
	Message   string           `json:"message"`
	Type      string           `json:"type"`
	Code      string           `json:"code,omitempty"` // Toolchain error code name, e.g. "config_not_found"
	Traceback []string         `json:"traceback,omitempty"`
	Wrapped   *ExceptionDetail `json:"wrapped,omitempty"`
}

// Error implements the error interface for ExceptionDetail.
func (e *ExceptionDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "exception" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// ReportWire is the document the driver prints with -format json.
type ReportWire struct {
	Program    string           `json:"program"`
	Project    string           `json:"project,omitempty"`
	ExitCode   int              `json:"exit_code"`
	EntryPoint *EntryPointWire  `json:"entry_point,omitempty"`
	Error      *ExceptionDetail `json:"error,omitempty"`
}

// FromExitStatus converts s to its wire form.
func FromExitStatus(s entities.ExitStatus) ExitStatusWire {
	return ExitStatusWire{
		IsException: s.IsException,
		Exception:   s.Exception,
		Traceback:   s.Traceback,
		StatusCode:  s.StatusCode,
	}
}

// ToExitStatus converts w back into an exit status.
func (w ExitStatusWire) ToExitStatus() entities.ExitStatus {
	return entities.ExitStatus{
		IsException: w.IsException,
		Exception:   w.Exception,
		Traceback:   w.Traceback,
		StatusCode:  w.StatusCode,
	}
}

// FromEntryPoint converts ep to its wire form.
func FromEntryPoint(ep entities.EntryPoint) (*EntryPointWire, error) {
	if s, ok := entities.ExitStatusOf(ep); ok {
		w := FromExitStatus(s)
		return &EntryPointWire{Variant: entities.VariantExit, ExitR: &w}, nil
	}
	return nil, &parac.WireFormatError{
		Operation: "marshal",
		Type:      "EntryPoint",
		Err:       fmt.Errorf("unknown variant %T", ep),
	}
}

// ToEntryPoint converts w back into an entry point.
func (w *EntryPointWire) ToEntryPoint() (entities.EntryPoint, error) {
	switch w.Variant {
	case entities.VariantExit:
		if w.ExitR == nil {
			return nil, &parac.WireFormatError{
				Operation: "unmarshal",
				Type:      "EntryPoint",
				Err:       fmt.Errorf("variant %s without payload", w.Variant),
			}
		}
		return entities.ExitStatusToEntryPoint(w.ExitR.ToExitStatus()), nil
	default:
		return nil, &parac.WireFormatError{
			Operation: "unmarshal",
			Type:      "EntryPoint",
			Err:       fmt.Errorf("unknown variant %q", w.Variant),
		}
	}
}

// MarshalEntryPoint encodes ep as JSON.
func MarshalEntryPoint(ep entities.EntryPoint) ([]byte, error) {
	w, err := FromEntryPoint(ep)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, &parac.WireFormatError{Operation: "marshal", Type: "EntryPoint", Err: err}
	}
	return data, nil
}

// UnmarshalEntryPoint decodes an entry point encoded by MarshalEntryPoint.
func UnmarshalEntryPoint(data []byte) (entities.EntryPoint, error) {
	var w EntryPointWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &parac.WireFormatError{Operation: "unmarshal", Type: "EntryPoint", Err: err}
	}
	return w.ToEntryPoint()
}

// ExceptionFromStatus describes the exception carried by s, or returns nil.
func ExceptionFromStatus(s entities.ExitStatus) *ExceptionDetail {
	if !s.IsException {
		return nil
	}
	return &ExceptionDetail{
		Message:   s.Exception,
		Type:      "exception",
		Traceback: entities.SplitFrames(s.Traceback),
	}
}

// ToExceptionDetail converts a toolchain error to an ExceptionDetail.
func ToExceptionDetail(err error) *ExceptionDetail {
	if err == nil {
		return nil
	}

	// If the error is already an *ExceptionDetail, use it directly.
	var detail *ExceptionDetail
	if errors.As(err, &detail) {
		return detail
	}

	var exc *entities.Exception
	if errors.As(err, &exc) {
		return &ExceptionDetail{
			Message:   exc.Message,
			Type:      "exception",
			Traceback: exc.Frames(),
		}
	}

	return &ExceptionDetail{
		Message: err.Error(),
		Type:    "toolchain",
		Code:    parac.CodeOf(err).String(),
	}
}
