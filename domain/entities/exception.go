package entities

import "strings"

// Exception is the error form of a raised envelope. Go code that consumes
// results receives it from Unwrap and Err.
type Exception struct {
	Message   string
	Traceback string
}

func (e *Exception) Error() string {
	return e.Message
}

// Frames splits the traceback into its lines, skipping empty ones.
func (e *Exception) Frames() []string {
	return SplitFrames(e.Traceback)
}

// SplitFrames splits a traceback into frame lines.
func SplitFrames(traceback string) []string {
	if traceback == "" {
		return nil
	}
	var frames []string
	for _, line := range strings.Split(traceback, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			frames = append(frames, line)
		}
	}
	return frames
}
