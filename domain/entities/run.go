package entities

import "time"

// RunRecord is one program run as seen by the driver.
type RunRecord struct {
	ID        int64
	Timestamp time.Time
	Program   string
	Project   string
	Variant   string
	Status    ExitStatus
	ExitCode  int
	Duration  time.Duration
}
