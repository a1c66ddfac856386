package entities

// VariantExit is the case label of the exit status variant.
const VariantExit = "exit_r"

// EntryPoint is the value a program's top-level frame hands to the driver.
// It is a closed set of variants defined in this package; ExitEntry is the
// only one today. Consumers must switch on the concrete type (or Variant) and
// handle unknown variants, since more shapes will be added.
type EntryPoint interface {
	// Variant returns the case label of the active variant.
	Variant() string
	entryPoint()
}

// ExitEntry is the exit_r variant: the program terminated with an ExitStatus.
type ExitEntry struct {
	ExitR ExitStatus
}

func (ExitEntry) Variant() string { return VariantExit }
func (ExitEntry) entryPoint()     {}

// ExitStatusToEntryPoint wraps s into the exit_r variant. It is total and
// has no side effects.
func ExitStatusToEntryPoint(s ExitStatus) EntryPoint {
	return ExitEntry{ExitR: s}
}

// ExitStatusOf returns the exit status held by ep when ep is the exit_r
// variant.
func ExitStatusOf(ep EntryPoint) (ExitStatus, bool) {
	switch v := ep.(type) {
	case ExitEntry:
		return v.ExitR, true
	case *ExitEntry:
		if v == nil {
			return ExitStatus{}, false
		}
		return v.ExitR, true
	default:
		return ExitStatus{}, false
	}
}
