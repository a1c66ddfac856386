// Package driver consumes the entry point a Para-C program hands back when it
// terminates: it picks the process exit code, prints diagnostics for
// exceptions that reached the entry function and records the run.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/domain/ports"
	"github.com/parac-dev/parac-runtime/wireformat"
)

// Outcome is the result of dispatching an entry point.
type Outcome struct {
	ExitCode int
	Variant  string              // Active variant; empty when Err is set before dispatch
	Status   entities.ExitStatus // Valid when Variant is entities.VariantExit
	Err      error               // Toolchain failure; nil when the program ran to its entry point
}

// Driver dispatches entry points. Options apply in order, so
// WithFailurePolicy after WithProject overrides the project's policy.
type Driver struct {
	stderr  io.Writer
	stdin   io.Reader
	stdout  io.Writer
	args    []string
	logger  *slog.Logger
	policy  FailurePolicy
	journal ports.RunJournal
	format  Format
	project *entities.Project
	now     func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithStderr sets the writer diagnostics and reports go to. Programs run by
// Run write their own stderr there as well.
func WithStderr(w io.Writer) Option {
	return func(d *Driver) {
		d.stderr = w
	}
}

// WithStdio connects the standard input and output of programs run by Run.
func WithStdio(stdin io.Reader, stdout io.Writer) Option {
	return func(d *Driver) {
		d.stdin = stdin
		d.stdout = stdout
	}
}

// WithArgs sets the arguments passed to programs run by Run.
func WithArgs(args ...string) Option {
	return func(d *Driver) {
		d.args = args
	}
}

// WithLogger sets the structured logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithFailurePolicy sets the policy for programs that raised.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(d *Driver) {
		d.policy = p
	}
}

// WithJournal records every dispatched run in j.
func WithJournal(j ports.RunJournal) Option {
	return func(d *Driver) {
		d.journal = j
	}
}

// WithFormat sets the report format.
func WithFormat(f Format) Option {
	return func(d *Driver) {
		d.format = f
	}
}

// WithProject attaches the project the programs belong to. Its failure
// policy replaces the current one when it is valid.
func WithProject(p *entities.Project) Option {
	return func(d *Driver) {
		d.project = p
		if p == nil {
			return
		}
		policy, err := ParseFailurePolicy(p.FailurePolicy(), p.FailureCode())
		if err != nil {
			d.logger.Warn("ignoring project failure policy", "project", p.Name(), "error", err)
			return
		}
		d.policy = policy
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// New creates a Driver that reports in text to os.Stderr with the default
// failure policy.
func New(opts ...Option) *Driver {
	d := &Driver{
		stderr: os.Stderr,
		logger: slog.Default(),
		policy: DefaultFailurePolicy,
		format: FormatText,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the failure policy in effect.
func (d *Driver) Policy() FailurePolicy { return d.policy }

// Dispatch consumes the entry point ep produced by program. Unknown
// variants are reported as internal errors.
func (d *Driver) Dispatch(ctx context.Context, program string, ep entities.EntryPoint) Outcome {
	return d.dispatch(ctx, program, ep, 0)
}

func (d *Driver) dispatch(ctx context.Context, program string, ep entities.EntryPoint, elapsed time.Duration) Outcome {
	status, ok := entities.ExitStatusOf(ep)
	if !ok {
		err := parac.Errorf(parac.CodeInternal, "unsupported entry point variant %s", variantName(ep))
		return d.fail(program, err)
	}

	out := Outcome{
		ExitCode: d.policy.ExitCode(status),
		Variant:  entities.VariantExit,
		Status:   status,
	}

	if status.IsException {
		d.logger.Info("program raised an exception",
			"program", program,
			"exception", status.Exception,
			"status_code", status.StatusCode,
			"exit_code", out.ExitCode,
		)
	} else {
		d.logger.Info("program exited", "program", program, "exit_code", out.ExitCode)
	}

	d.report(program, out)
	d.record(ctx, program, out, elapsed)
	return out
}

// Run executes the compiled program at path with runner and dispatches its
// entry point. Failures to run the program are toolchain errors; their
// ErrorCode becomes the exit code.
func (d *Driver) Run(ctx context.Context, runner ports.ProgramRunner, path string) Outcome {
	module, err := os.ReadFile(path)
	if err != nil {
		return d.fail(path, readError(path, err))
	}

	cfg := ports.RunConfig{
		Name:   filepath.Base(path),
		Args:   d.args,
		Stdin:  d.stdin,
		Stdout: d.stdout,
		Stderr: d.stderr,
	}
	if d.project != nil {
		cfg.EntrySymbol = d.project.EntrySymbol()
		cfg.Encoding = d.project.DiagnosticEncoding()
	}

	d.logger.Debug("running program", "program", path, "entry", cfg.EntrySymbol, "policy", d.policy.String())

	start := d.now()
	ep, err := runner.Run(ctx, module, cfg)
	elapsed := d.now().Sub(start)
	if err != nil {
		return d.fail(path, err)
	}
	return d.dispatch(ctx, path, ep, elapsed)
}

// Guard calls a Go entry function and turns a panic into an exit status
// carrying an exception, with the goroutine stack as traceback.
func (d *Driver) Guard(fn func() entities.ExitStatus) (status entities.ExitStatus) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			d.logger.Error("entry function panic recovered", "error", msg)
			status = entities.ExitFailure(msg, string(debug.Stack()), d.policy.Code)
		}
	}()
	return fn()
}

func (d *Driver) fail(program string, err error) Outcome {
	out := Outcome{ExitCode: int(parac.CodeOf(err)), Err: err}
	d.logger.Warn("failed to run program", "program", program, "code", parac.CodeOf(err).String(), "error", err)

	var werr error
	if d.format == FormatJSON {
		werr = WriteReport(d.stderr, wireformat.ReportWire{
			Program:  program,
			Project:  d.projectName(),
			ExitCode: out.ExitCode,
			Error:    wireformat.ToExceptionDetail(err),
		})
	} else {
		werr = WriteError(d.stderr, program, err)
	}
	if werr != nil {
		d.logger.Warn("failed to write report", "program", program, "error", werr)
	}
	return out
}

func (d *Driver) report(program string, out Outcome) {
	var err error
	if d.format == FormatJSON {
		ep, _ := wireformat.FromEntryPoint(entities.ExitStatusToEntryPoint(out.Status))
		err = WriteReport(d.stderr, wireformat.ReportWire{
			Program:    program,
			Project:    d.projectName(),
			ExitCode:   out.ExitCode,
			EntryPoint: ep,
		})
	} else {
		err = WriteTraceback(d.stderr, out.Status)
	}
	if err != nil {
		d.logger.Warn("failed to write report", "program", program, "error", err)
	}
}

func (d *Driver) record(ctx context.Context, program string, out Outcome, elapsed time.Duration) {
	if d.journal == nil {
		return
	}
	id, err := d.journal.Record(ctx, entities.RunRecord{
		Timestamp: d.now(),
		Program:   program,
		Project:   d.projectName(),
		Variant:   out.Variant,
		Status:    out.Status,
		ExitCode:  out.ExitCode,
		Duration:  elapsed,
	})
	if err != nil {
		d.logger.Warn("failed to record run", "program", program, "error", err)
		return
	}
	d.logger.Debug("run recorded", "program", program, "id", id)
}

func (d *Driver) projectName() string {
	if d.project == nil {
		return ""
	}
	return d.project.Name()
}

func readError(path string, err error) error {
	code := parac.CodeFileAccess
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = parac.CodeFileNotFound
	case errors.Is(err, fs.ErrPermission):
		code = parac.CodeFilePermission
	default:
		if info, serr := os.Stat(path); serr == nil && info.IsDir() {
			code = parac.CodeIsDirectory
		}
	}
	return &parac.FileAccessError{Path: path, Reason: "cannot read program", Err: &parac.Error{ErrCode: code, Err: err}}
}

func variantName(ep entities.EntryPoint) string {
	if ep == nil {
		return "<nil>"
	}
	return ep.Variant()
}
