package ports

import (
	"context"
	"io"

	"github.com/parac-dev/parac-runtime/domain/entities"
)

// ProgramRunner executes a compiled program and returns the entry point its
// top-level frame produced. An error means the program could not be run to
// its entry point (it failed to load or trapped); exceptions raised by the
// program itself are part of the returned EntryPoint.
type ProgramRunner interface {
	Run(ctx context.Context, module []byte, cfg RunConfig) (entities.EntryPoint, error)
}

// RunConfig carries the per-run settings of a ProgramRunner.
type RunConfig struct {
	Name        string   // Program name, used for diagnostics and argv[0]
	EntrySymbol string   // Export of the entry function; empty means entities.DefaultEntrySymbol
	Args        []string // Program arguments after argv[0]
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Encoding    string // Character set of diagnostic text; empty means UTF-8
}
