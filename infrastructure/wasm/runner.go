// Package wasm runs compiled Para-C programs targeting wasm32 on the wazero
// runtime and reads back the entry point their top-level frame produced.
package wasm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/domain/ports"
	"github.com/parac-dev/parac-runtime/internal/abi"
)

// MemoryExport is the name programs export their linear memory under.
const MemoryExport = "memory"

// Compile-time interface compliance checks
var (
	_ ports.ProgramRunner = (*Runner)(nil)
	_ ports.Memory        = (api.Memory)(nil)
)

// Runner implements ports.ProgramRunner with wazero. Each Run uses a fresh
// runtime, so a Runner is safe for concurrent use.
type Runner struct {
	logger      *slog.Logger
	memoryPages uint32
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used for run diagnostics.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMemoryLimitPages caps the linear memory of programs, in 64 KiB pages.
func WithMemoryLimitPages(pages uint32) RunnerOption {
	return func(r *Runner) {
		r.memoryPages = pages
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run instantiates module without running its start functions, calls the
// entry export and decodes the ph_EntryPoint it returns.
//
// The entry function has the signature () -> i32, returning the address of
// the record, or () -> i64, returning the address and size of the record
// packed with abi.PackPtrLen. A proc_exit call ends the program with an
// exit_r entry point carrying the exit code.
func (r *Runner) Run(ctx context.Context, module []byte, cfg ports.RunConfig) (entities.EntryPoint, error) {
	name := cfg.Name
	if name == "" {
		name = "program"
	}
	symbol := cfg.EntrySymbol
	if symbol == "" {
		symbol = entities.DefaultEntrySymbol
	}
	dec, err := NewTextDecoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if r.memoryPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(r.memoryPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	defer func() {
		if cerr := rt.Close(ctx); cerr != nil {
			r.logger.Debug("failed to close wasm runtime", "program", name, "error", cerr)
		}
	}()

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, &parac.InternalError{Operation: "instantiate wasi", Err: err}
	}

	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		return nil, &parac.Error{
			ErrCode: parac.CodeFailedToProcess,
			Msg:     fmt.Sprintf("invalid program %s", name),
			Err:     err,
		}
	}

	modConfig := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions().
		WithArgs(append([]string{name}, cfg.Args...)...).
		WithStdin(orEmpty(cfg.Stdin)).
		WithStdout(orDiscard(cfg.Stdout)).
		WithStderr(orDiscard(cfg.Stderr))

	mod, err := rt.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		return nil, &parac.Error{
			ErrCode: parac.CodeLinker,
			Msg:     fmt.Sprintf("failed to link program %s", name),
			Err:     err,
		}
	}

	fn := mod.ExportedFunction(symbol)
	if fn == nil {
		return nil, parac.Errorf(parac.CodeLinker, "program %s does not export entry function %s", name, symbol)
	}
	def := fn.Definition()
	results := def.ResultTypes()
	if len(def.ParamTypes()) != 0 || len(results) != 1 ||
		(results[0] != api.ValueTypeI32 && results[0] != api.ValueTypeI64) {
		return nil, parac.Errorf(parac.CodeLinker, "entry function %s of %s has signature %v -> %v, want () -> i32",
			symbol, name, valueTypeNames(def.ParamTypes()), valueTypeNames(results))
	}
	mem := mod.ExportedMemory(MemoryExport)
	if mem == nil {
		return nil, parac.Errorf(parac.CodeLinker, "program %s does not export %q", name, MemoryExport)
	}

	r.logger.Debug("calling entry function", "program", name, "entry", symbol)

	out, err := fn.Call(ctx)
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			return r.exited(ctx, name, exitErr)
		}
		return nil, &parac.TrapError{Program: name, Err: err}
	}

	addr, err := entryAddress(results[0], out[0])
	if err != nil {
		return nil, &parac.WireFormatError{Operation: "decode", Type: "ph_EntryPoint", Err: err}
	}
	return abi.DecodeEntryPoint(abi.Wasm32, mem, uint64(addr), entities.VariantExit, dec)
}

// exited converts a proc_exit, or the closing of the module because ctx was
// done, into the run outcome.
func (r *Runner) exited(ctx context.Context, name string, exitErr *sys.ExitError) (entities.EntryPoint, error) {
	code := exitErr.ExitCode()
	switch code {
	case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
		return nil, &parac.Error{
			ErrCode: parac.CodeInterrupt,
			Msg:     fmt.Sprintf("program %s interrupted", name),
			Err:     context.Cause(ctx),
		}
	}

	r.logger.Debug("program called proc_exit", "program", name, "code", code)

	status := int32(code)
	if status == 0 {
		return entities.ExitStatusToEntryPoint(entities.ExitSuccess(0)), nil
	}
	return entities.ExitStatusToEntryPoint(entities.ExitFailure(
		fmt.Sprintf("program exited with status %d", status), "", status,
	)), nil
}

func entryAddress(typ api.ValueType, raw uint64) (uint32, error) {
	if typ == api.ValueTypeI32 {
		return api.DecodeU32(raw), nil
	}
	ptr, length, err := abi.SplitPtrLen(raw)
	if err != nil {
		return 0, err
	}
	if want := abi.EntryPointLayout(abi.Wasm32).Size; length != want {
		return 0, fmt.Errorf("entry point record is %d bytes, want %d", length, want)
	}
	return ptr, nil
}

func valueTypeNames(types []api.ValueType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return names
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

func orEmpty(r io.Reader) io.Reader {
	if r == nil {
		return emptyReader{}
	}
	return r
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
