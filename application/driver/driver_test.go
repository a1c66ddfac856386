package driver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/application/driver"
	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/domain/ports"
	"github.com/parac-dev/parac-runtime/infrastructure/journal"
	"github.com/parac-dev/parac-runtime/infrastructure/wasm"
	"github.com/parac-dev/parac-runtime/internal/wasmtest"
	"github.com/parac-dev/parac-runtime/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

type memJournal struct {
	records []entities.RunRecord
	err     error
}

func (j *memJournal) Record(_ context.Context, rec entities.RunRecord) (int64, error) {
	if j.err != nil {
		return 0, j.err
	}
	j.records = append(j.records, rec)
	return int64(len(j.records)), nil
}

func (j *memJournal) Recent(_ context.Context, limit int) ([]entities.RunRecord, error) {
	return j.records, nil
}

type stubRunner struct {
	ep  entities.EntryPoint
	err error
	cfg ports.RunConfig
}

func (r *stubRunner) Run(_ context.Context, _ []byte, cfg ports.RunConfig) (entities.EntryPoint, error) {
	r.cfg = cfg
	return r.ep, r.err
}

// futureEntry stands in for a variant added after this driver was built.
type futureEntry struct{ entities.EntryPoint }

func (futureEntry) Variant() string { return "future_r" }

func newDriver(stderr *bytes.Buffer, opts ...driver.Option) *driver.Driver {
	base := []driver.Option{driver.WithStderr(stderr), driver.WithLogger(quietLogger)}
	return driver.New(append(base, opts...)...)
}

func TestDispatch_Success(t *testing.T) {
	var stderr bytes.Buffer
	j := &memJournal{}
	d := newDriver(&stderr, driver.WithJournal(j))

	out := d.Dispatch(context.Background(), "hello.wasm", entities.ExitStatusToEntryPoint(entities.ExitSuccess(0)))

	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, entities.VariantExit, out.Variant)
	assert.NoError(t, out.Err)
	assert.Empty(t, stderr.String())
	require.Len(t, j.records, 1)
	assert.Equal(t, "hello.wasm", j.records[0].Program)
	assert.Equal(t, entities.VariantExit, j.records[0].Variant)
}

func TestDispatch_StatusCode(t *testing.T) {
	var stderr bytes.Buffer
	out := newDriver(&stderr).Dispatch(context.Background(), "p", entities.ExitStatusToEntryPoint(entities.ExitSuccess(7)))
	assert.Equal(t, 7, out.ExitCode)
}

func TestDispatch_Exception(t *testing.T) {
	var stderr bytes.Buffer
	d := newDriver(&stderr)

	out := d.Dispatch(context.Background(), "div.wasm",
		entities.ExitStatusToEntryPoint(entities.ExitFailure("division by zero", "main:12", 1)))

	assert.Equal(t, 1, out.ExitCode)
	assert.True(t, out.Status.IsException)
	assert.Equal(t, "Traceback (most recent call last):\n  main:12\nException: division by zero\n", stderr.String())
}

func TestDispatch_PropagatedChain(t *testing.T) {
	// read_file raises, parse_config propagates with its own frame and main
	// converts the final result into the exit status.
	read := entities.Failure[int32]("io error", "read_file:3")
	parsed := entities.Reraise[int32](read, "parse_config:8")
	status := entities.ExitWithValue(parsed, 1)

	var stderr bytes.Buffer
	out := newDriver(&stderr).Dispatch(context.Background(), "io.wasm", entities.ExitStatusToEntryPoint(status))

	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t,
		"Traceback (most recent call last):\n  read_file:3\n  parse_config:8\nException: io error\n",
		stderr.String())
}

func TestDispatch_FailurePolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy driver.FailurePolicy
		status entities.ExitStatus
		want   int
	}{
		{"preserve nonzero", driver.FailurePolicy{Mode: driver.PolicyPreserve, Code: 1}, entities.ExitFailure("x", "", 3), 3},
		{"preserve zero", driver.FailurePolicy{Mode: driver.PolicyPreserve, Code: 4}, entities.ExitFailure("x", "", 0), 4},
		{"fixed", driver.FailurePolicy{Mode: driver.PolicyFixed, Code: 2}, entities.ExitFailure("x", "", 3), 2},
		{"fixed without code", driver.FailurePolicy{Mode: driver.PolicyFixed}, entities.ExitFailure("x", "", 0), 1},
		{"success unaffected", driver.FailurePolicy{Mode: driver.PolicyFixed, Code: 2}, entities.ExitSuccess(0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			d := newDriver(&stderr, driver.WithFailurePolicy(tt.policy))
			out := d.Dispatch(context.Background(), "p", entities.ExitStatusToEntryPoint(tt.status))
			assert.Equal(t, tt.want, out.ExitCode)
		})
	}
}

func TestDispatch_UnknownVariant(t *testing.T) {
	var stderr bytes.Buffer
	j := &memJournal{}
	d := newDriver(&stderr, driver.WithJournal(j))

	out := d.Dispatch(context.Background(), "p", futureEntry{})

	assert.Equal(t, int(parac.CodeInternal), out.ExitCode)
	require.Error(t, out.Err)
	assert.Contains(t, stderr.String(), "unsupported entry point variant future_r")
	assert.Empty(t, j.records)

	out = d.Dispatch(context.Background(), "p", nil)
	assert.Equal(t, int(parac.CodeInternal), out.ExitCode)
}

func TestDispatch_JSON(t *testing.T) {
	var stderr bytes.Buffer
	p := entities.NewProject(entities.ProjectSpec{Name: "demo"})
	d := newDriver(&stderr, driver.WithFormat(driver.FormatJSON), driver.WithProject(p))

	d.Dispatch(context.Background(), "div.wasm",
		entities.ExitStatusToEntryPoint(entities.ExitFailure("\x1b[31mdivision by zero\x1b[0m", "main:12", 5)))

	var report wireformat.ReportWire
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &report))
	assert.Equal(t, "div.wasm", report.Program)
	assert.Equal(t, "demo", report.Project)
	assert.Equal(t, 5, report.ExitCode)
	require.NotNil(t, report.EntryPoint)
	require.NotNil(t, report.EntryPoint.ExitR)
	assert.Equal(t, "division by zero", report.EntryPoint.ExitR.Exception)
	assert.Nil(t, report.Error)
}

func TestDispatch_JournalFailureIsNotFatal(t *testing.T) {
	var stderr bytes.Buffer
	d := newDriver(&stderr, driver.WithJournal(&memJournal{err: errors.New("disk full")}))

	out := d.Dispatch(context.Background(), "p", entities.ExitStatusToEntryPoint(entities.ExitSuccess(0)))
	assert.Equal(t, 0, out.ExitCode)
	assert.NoError(t, out.Err)
}

func TestWithProject_Policy(t *testing.T) {
	p := entities.NewProject(entities.ProjectSpec{Name: "demo", FailurePolicy: "fixed", FailureCode: 9})

	d := driver.New(driver.WithLogger(quietLogger), driver.WithProject(p))
	assert.Equal(t, driver.FailurePolicy{Mode: driver.PolicyFixed, Code: 9}, d.Policy())

	override := driver.FailurePolicy{Mode: driver.PolicyPreserve, Code: 2}
	d = driver.New(driver.WithLogger(quietLogger), driver.WithProject(p), driver.WithFailurePolicy(override))
	assert.Equal(t, override, d.Policy())

	bad := entities.NewProject(entities.ProjectSpec{Name: "demo", FailurePolicy: "sometimes"})
	d = driver.New(driver.WithLogger(quietLogger), driver.WithProject(bad))
	assert.Equal(t, driver.DefaultFailurePolicy, d.Policy())
}

func TestRun_Stub(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.wasm")
	require.NoError(t, os.WriteFile(path, []byte("\x00asm"), 0o644))

	p := entities.NewProject(entities.ProjectSpec{Name: "demo", EntrySymbol: "start", DiagnosticEncoding: "latin1"})
	runner := &stubRunner{ep: entities.ExitStatusToEntryPoint(entities.ExitSuccess(0))}

	var stderr bytes.Buffer
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j := &memJournal{}
	d := newDriver(&stderr,
		driver.WithProject(p),
		driver.WithArgs("-x"),
		driver.WithJournal(j),
		driver.WithClock(func() time.Time { return clock }),
	)

	out := d.Run(context.Background(), runner, path)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "app.wasm", runner.cfg.Name)
	assert.Equal(t, "start", runner.cfg.EntrySymbol)
	assert.Equal(t, "latin1", runner.cfg.Encoding)
	assert.Equal(t, []string{"-x"}, runner.cfg.Args)

	require.Len(t, j.records, 1)
	assert.Equal(t, "demo", j.records[0].Project)
	assert.Equal(t, clock, j.records[0].Timestamp)
}

func TestRun_RunnerError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.wasm")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	runner := &stubRunner{err: &parac.TrapError{Program: "app.wasm", Err: errors.New("unreachable")}}

	var stderr bytes.Buffer
	out := newDriver(&stderr).Run(context.Background(), runner, path)

	assert.Equal(t, int(parac.CodeFailedToProcess), out.ExitCode)
	var trap *parac.TrapError
	assert.True(t, errors.As(out.Err, &trap))
	assert.True(t, strings.HasPrefix(stderr.String(), "parac: "+path+": program app.wasm trapped"))
}

func TestRun_ReadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		code parac.ErrorCode
	}{
		{"missing", filepath.Join(dir, "missing.wasm"), parac.CodeFileNotFound},
		{"directory", dir, parac.CodeIsDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			out := newDriver(&stderr, driver.WithFormat(driver.FormatJSON)).Run(context.Background(), &stubRunner{}, tt.path)
			assert.Equal(t, int(tt.code), out.ExitCode)

			var report wireformat.ReportWire
			require.NoError(t, json.Unmarshal(stderr.Bytes(), &report))
			require.NotNil(t, report.Error)
			assert.Equal(t, "toolchain", report.Error.Type)
			assert.Equal(t, tt.code.String(), report.Error.Code)
		})
	}
}

func TestRun_WasmProgram(t *testing.T) {
	dir := t.TempDir()
	module, err := wasmtest.EntryModule(entities.ExitStatusToEntryPoint(
		entities.ExitFailure("io error", "read_file:3\nparse_config:8", 0)))
	require.NoError(t, err)
	path := filepath.Join(dir, "io.wasm")
	require.NoError(t, os.WriteFile(path, module, 0o644))

	j, err := journal.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	var stderr bytes.Buffer
	d := newDriver(&stderr, driver.WithJournal(j))
	out := d.Run(context.Background(), wasm.NewRunner(wasm.WithLogger(quietLogger)), path)

	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t,
		"Traceback (most recent call last):\n  read_file:3\n  parse_config:8\nException: io error\n",
		stderr.String())

	recs, err := j.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "io error", recs[0].Status.Exception)
	assert.Equal(t, 1, recs[0].ExitCode)
}

func TestGuard(t *testing.T) {
	var stderr bytes.Buffer
	d := newDriver(&stderr, driver.WithFailurePolicy(driver.FailurePolicy{Mode: driver.PolicyFixed, Code: 3}))

	s := d.Guard(func() entities.ExitStatus { return entities.ExitSuccess(0) })
	assert.Equal(t, entities.ExitSuccess(0), s)

	s = d.Guard(func() entities.ExitStatus { panic("index out of range") })
	assert.True(t, s.IsException)
	assert.Equal(t, "panic: index out of range", s.Exception)
	assert.Contains(t, s.Traceback, "goroutine")
	assert.Equal(t, int32(3), s.StatusCode)

	out := d.Dispatch(context.Background(), "guarded", entities.ExitStatusToEntryPoint(s))
	assert.Equal(t, 3, out.ExitCode)
}

func TestWithLogger_Nil(t *testing.T) {
	var stderr bytes.Buffer
	d := driver.New(driver.WithStderr(&stderr), driver.WithLogger(nil))

	out := d.Dispatch(context.Background(), "p.wasm", entities.ExitStatusToEntryPoint(entities.ExitFailure("boom", "", 0)))
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, "Exception: boom\n", stderr.String())
}
