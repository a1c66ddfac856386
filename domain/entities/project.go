package entities

// Target names the C data model a program was compiled for.
type Target string

const (
	TargetWasm32 Target = "wasm32"
	TargetLP64   Target = "lp64"
)

// Project is the build-time configuration of a Para-C project. It is
// populated once by the project loader and read-only afterwards; the fields
// are unexported so that holders of a *Project cannot change it.
type Project struct {
	name        string
	description string
	author      string
	version     string
	license     string

	paracCompiler string
	cCompiler     string

	baseDir     string
	sources     []string
	artifact    string
	entrySymbol string
	target      Target

	failurePolicy      string
	failureCode        int32
	diagnosticEncoding string
}

// ProjectSpec holds the values a Project is built from.
type ProjectSpec struct {
	Name          string
	Description   string
	Author        string
	Version       string
	License       string
	ParacCompiler string
	CCompiler     string
	BaseDir       string
	Sources       []string
	Artifact      string
	EntrySymbol   string
	Target        Target

	FailurePolicy      string
	FailureCode        int32
	DiagnosticEncoding string
}

// DefaultEntrySymbol is the export a compiled program's entry function is
// reachable by.
const DefaultEntrySymbol = "ph_main"

// NewProject freezes spec into a Project.
func NewProject(spec ProjectSpec) *Project {
	p := &Project{
		name:          spec.Name,
		description:   spec.Description,
		author:        spec.Author,
		version:       spec.Version,
		license:       spec.License,
		paracCompiler: spec.ParacCompiler,
		cCompiler:     spec.CCompiler,
		baseDir:       spec.BaseDir,
		sources:       append([]string(nil), spec.Sources...),
		artifact:      spec.Artifact,
		entrySymbol:   spec.EntrySymbol,
		target:        spec.Target,

		failurePolicy:      spec.FailurePolicy,
		failureCode:        spec.FailureCode,
		diagnosticEncoding: spec.DiagnosticEncoding,
	}
	if p.entrySymbol == "" {
		p.entrySymbol = DefaultEntrySymbol
	}
	if p.target == "" {
		p.target = TargetWasm32
	}
	return p
}

func (p *Project) Name() string          { return p.name }
func (p *Project) Description() string   { return p.description }
func (p *Project) Author() string        { return p.author }
func (p *Project) Version() string       { return p.version }
func (p *Project) License() string       { return p.license }
func (p *Project) ParacCompiler() string { return p.paracCompiler }
func (p *Project) CCompiler() string     { return p.cCompiler }
func (p *Project) BaseDir() string       { return p.baseDir }
func (p *Project) Artifact() string      { return p.artifact }
func (p *Project) EntrySymbol() string   { return p.entrySymbol }
func (p *Project) Target() Target        { return p.target }

// FailurePolicy names how the driver picks the exit code of a program that
// raised ("preserve" or "fixed"); empty means the driver default.
func (p *Project) FailurePolicy() string { return p.failurePolicy }
func (p *Project) FailureCode() int32    { return p.failureCode }

// DiagnosticEncoding is the character set of exception and traceback text in
// the program's memory; empty means UTF-8.
func (p *Project) DiagnosticEncoding() string { return p.diagnosticEncoding }

// Sources returns a copy of the source glob patterns.
func (p *Project) Sources() []string {
	return append([]string(nil), p.sources...)
}
