package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/wireformat"
)

// Format selects how the driver reports a run.
type Format string

const (
	// FormatText prints a traceback for programs that raised and nothing
	// otherwise.
	FormatText Format = "text"
	// FormatJSON prints one wireformat.ReportWire document per run.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q", name)
	}
}

var ansiEscape = regexp.MustCompile(`(?:\x1B[@-_]|[\x80-\x9F])[0-?]*[ -/]*[@-~]`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// WriteTraceback prints the exception carried by s:
//
//	Traceback (most recent call last):
//	  <frame>
//	Exception: <message>
//
// The header and frames are omitted when the traceback is empty. Nothing is
// written for a status without exception.
func WriteTraceback(w io.Writer, s entities.ExitStatus) error {
	if !s.IsException {
		return nil
	}
	var b strings.Builder
	if frames := entities.SplitFrames(s.Traceback); len(frames) > 0 {
		b.WriteString("Traceback (most recent call last):\n")
		for _, f := range frames {
			b.WriteString("  ")
			b.WriteString(f)
			b.WriteByte('\n')
		}
	}
	msg := s.Exception
	if msg == "" {
		msg = entities.DefaultExceptionMessage
	}
	fmt.Fprintf(&b, "Exception: %s\n", msg)
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteError prints a failure of the toolchain itself.
func WriteError(w io.Writer, program string, err error) error {
	_, werr := fmt.Fprintf(w, "parac: %s: %v\n", program, err)
	return werr
}

// WriteReport prints report as a single line of JSON. Exception and
// traceback text is stripped of terminal escapes.
func WriteReport(w io.Writer, report wireformat.ReportWire) error {
	if ep := report.EntryPoint; ep != nil && ep.ExitR != nil {
		exit := *ep.ExitR
		exit.Exception = StripANSI(exit.Exception)
		exit.Traceback = StripANSI(exit.Traceback)
		report.EntryPoint = &wireformat.EntryPointWire{Variant: ep.Variant, ExitR: &exit}
	}
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
