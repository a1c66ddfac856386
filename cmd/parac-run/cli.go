package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/application/driver"
	"github.com/parac-dev/parac-runtime/application/project"
	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/infrastructure/journal"
	"github.com/parac-dev/parac-runtime/infrastructure/wasm"
)

const usage = `usage: parac-run [flags] [program.wasm [args...]]
       parac-run schema
       parac-run sources [-project parac.yaml]
       parac-run check [-project parac.yaml]
       parac-run history -journal runs.db [-n 20]
       parac-run version

flags:
  -project path   project configuration (default: parac.yaml in . or a parent)
  -journal path   record runs in this SQLite database
  -format name    report format: text or json (default text)
  -n count        number of runs printed by history (default 20)
  -v              verbose logging
`

const (
	cmdRun     = "run"
	cmdSchema  = "schema"
	cmdSources = "sources"
	cmdCheck   = "check"
	cmdHistory = "history"
	cmdVersion = "version"
)

var subcommands = map[string]bool{
	cmdSchema:  true,
	cmdSources: true,
	cmdCheck:   true,
	cmdHistory: true,
	cmdVersion: true,
}

// invocation is the parsed command line.
type invocation struct {
	command string
	project string
	journal string
	format  driver.Format
	limit   int
	verbose bool
	program string
	args    []string
}

func parseInvocation(args []string) (*invocation, error) {
	inv := &invocation{command: cmdRun}
	if len(args) > 0 && subcommands[args[0]] {
		inv.command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("parac-run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&inv.project, "project", "", "")
	fs.StringVar(&inv.journal, "journal", "", "")
	format := fs.String("format", "text", "")
	fs.IntVar(&inv.limit, "n", 20, "")
	fs.BoolVar(&inv.verbose, "v", false, "")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &parac.InvalidArgumentsError{Msg: err.Error()}
	}

	f, err := driver.ParseFormat(*format)
	if err != nil {
		return nil, &parac.InvalidArgumentsError{Arg: "-format", Msg: err.Error()}
	}
	inv.format = f

	rest := fs.Args()
	if inv.command == cmdRun {
		if len(rest) > 0 {
			inv.program = rest[0]
			inv.args = rest[1:]
		}
		return inv, nil
	}
	if len(rest) > 0 {
		return nil, &parac.InvalidArgumentsError{Arg: rest[0], Msg: fmt.Sprintf("%s takes no arguments", inv.command)}
	}
	if inv.command == cmdHistory && inv.journal == "" {
		return nil, &parac.InvalidArgumentsError{Arg: "-journal", Msg: "history needs a journal"}
	}
	return inv, nil
}

// run executes the command line args and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	inv, err := parseInvocation(args)
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(stdout, usage)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "parac-run: %v\n%s", err, usage)
		return int(parac.CodeOf(err))
	}

	logger := newLogger(stderr, inv.verbose)

	switch inv.command {
	case cmdRun:
		return runProgram(ctx, inv, logger, stdin, stdout, stderr)
	case cmdSchema:
		err = printSchema(stdout)
	case cmdSources:
		err = listSources(stdout, inv)
	case cmdCheck:
		err = checkProject(stdout, inv)
	case cmdHistory:
		err = printHistory(ctx, stdout, inv)
	case cmdVersion:
		_, err = fmt.Fprintf(stdout, "parac-run %s (abi %s)\n", parac.Version, parac.ABIVersion)
	}
	if err != nil {
		fmt.Fprintf(stderr, "parac-run: %v\n", err)
		return int(parac.CodeOf(err))
	}
	return 0
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadProject loads the project named by -project, or the nearest
// parac.yaml. Without -project a missing configuration is not an error
// unless required is set.
func loadProject(inv *invocation, required bool) (*entities.Project, error) {
	if inv.project != "" {
		return project.Load(inv.project)
	}
	path, err := project.Find(".")
	if err != nil {
		var nf *parac.ConfigNotFoundError
		if errors.As(err, &nf) && !required {
			return nil, nil
		}
		return nil, err
	}
	return project.Load(path)
}

func runProgram(ctx context.Context, inv *invocation, logger *slog.Logger, stdin io.Reader, stdout, stderr io.Writer) int {
	fail := func(err error) int {
		fmt.Fprintf(stderr, "parac-run: %v\n", err)
		return int(parac.CodeOf(err))
	}

	p, err := loadProject(inv, false)
	if err != nil {
		return fail(err)
	}
	if p != nil && p.Target() != entities.TargetWasm32 {
		return fail(&parac.ConfigError{Field: "build.target", Err: fmt.Errorf("programs built for %s cannot run under the wasm runner", p.Target())})
	}

	program := inv.program
	if program == "" {
		if p == nil {
			return fail(&parac.InvalidArgumentsError{Msg: "no program given and no project found"})
		}
		if program, err = project.ResolveArtifact(p); err != nil {
			return fail(err)
		}
	}

	opts := []driver.Option{
		driver.WithLogger(logger),
		driver.WithStderr(stderr),
		driver.WithStdio(stdin, stdout),
		driver.WithArgs(inv.args...),
		driver.WithFormat(inv.format),
		driver.WithProject(p),
	}
	if inv.journal != "" {
		j, err := journal.Open(inv.journal)
		if err != nil {
			return fail(err)
		}
		defer j.Close()
		opts = append(opts, driver.WithJournal(j))
	}

	runner := wasm.NewRunner(wasm.WithLogger(logger))
	out := driver.New(opts...).Run(ctx, runner, program)
	return out.ExitCode
}

func printSchema(w io.Writer) error {
	schema, err := project.Schema()
	if err != nil {
		return err
	}
	if _, err := w.Write(schema); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func listSources(w io.Writer, inv *invocation) error {
	p, err := loadProject(inv, true)
	if err != nil {
		return err
	}
	files, err := project.DiscoverSources(p)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\n", f.Module, f.Path)
	}
	return tw.Flush()
}

func checkProject(w io.Writer, inv *invocation) error {
	p, err := loadProject(inv, true)
	if err != nil {
		return err
	}
	if err := project.CheckCompilers(p); err != nil {
		return err
	}
	files, err := project.DiscoverSources(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s: %d source files, failure policy %s\n", p.Name(), len(files), projectPolicy(p))
	return err
}

func projectPolicy(p *entities.Project) string {
	policy, err := driver.ParseFailurePolicy(p.FailurePolicy(), p.FailureCode())
	if err != nil {
		return "invalid"
	}
	return policy.String()
}

func printHistory(ctx context.Context, w io.Writer, inv *invocation) error {
	j, err := journal.Open(inv.journal)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Recent(ctx, inv.limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tPROGRAM\tEXIT\tEXCEPTION")
	for _, r := range runs {
		exception := "-"
		if r.Status.IsException {
			exception = r.Status.Exception
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			r.ID, r.Timestamp.Local().Format(time.DateTime), r.Program, r.ExitCode, exception)
	}
	return tw.Flush()
}
