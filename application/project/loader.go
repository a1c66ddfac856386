package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/domain/ports"
)

// DefaultFailureCode is the exit code of a raising program when the project
// does not configure one.
const DefaultFailureCode = 1

// Compile-time interface compliance check
var _ ports.ProjectParser = (*Parser)(nil)

var cIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parser implements ports.ProjectParser for parac.yaml documents.
type Parser struct {
	validate *validator.Validate
}

// NewParser creates a Parser.
func NewParser() *Parser {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("parac_name", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return !strings.ContainsAny(name, " \t/\\") && ValidPathName(name, false)
	})
	_ = v.RegisterValidation("c_identifier", func(fl validator.FieldLevel) bool {
		return cIdentifier.MatchString(fl.Field().String())
	})
	return &Parser{validate: v}
}

var defaultParser = NewParser()

// Parse parses a parac.yaml document with the default parser.
func Parse(data []byte, baseDir string) (*entities.Project, error) {
	return defaultParser.Parse(data, baseDir)
}

// Parse validates data against the project schema and the field rules of
// Config and freezes it into a Project. Relative compiler paths are resolved
// against baseDir.
func (p *Parser) Parse(data []byte, baseDir string) (*entities.Project, error) {
	// 1. Generic document for schema validation.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &parac.ConfigError{Err: fmt.Errorf("invalid YAML: %w", err)}
	}
	if root.Kind == 0 {
		return nil, &parac.ConfigError{Err: errors.New("empty project configuration")}
	}
	stringScalar(&root, "version")

	var doc any
	if err := root.Decode(&doc); err != nil {
		return nil, &parac.ConfigError{Err: fmt.Errorf("invalid YAML: %w", err)}
	}
	if doc == nil {
		return nil, &parac.ConfigError{Err: errors.New("empty project configuration")}
	}

	// 2. Marshal/Unmarshal to JSON values for the schema validator.
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, &parac.ConfigError{Err: fmt.Errorf("unsupported YAML content: %w", err)}
	}
	var obj any
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, &parac.ConfigError{Err: err}
	}

	sch, err := configSchema()
	if err != nil {
		return nil, &parac.InternalError{Operation: "compile project schema", Err: err}
	}
	if err := sch.Validate(obj); err != nil {
		return nil, schemaError(err)
	}

	// 3. Typed config and field rules.
	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, &parac.ConfigError{Err: err}
	}
	if err := p.validate.Struct(cfg); err != nil {
		return nil, fieldError(err)
	}

	failureCode := cfg.Runtime.FailureCode
	if failureCode == 0 {
		failureCode = DefaultFailureCode
	}

	return entities.NewProject(entities.ProjectSpec{
		Name:               cfg.Name,
		Description:        cfg.Description,
		Author:             cfg.Author,
		Version:            cfg.Version,
		License:            cfg.License,
		ParacCompiler:      resolvePath(baseDir, cfg.Compiler.Parac),
		CCompiler:          resolvePath(baseDir, cfg.Compiler.CC),
		BaseDir:            baseDir,
		Sources:            cfg.Build.Sources,
		Artifact:           cfg.Build.Artifact,
		EntrySymbol:        cfg.Build.EntrySymbol,
		Target:             entities.Target(cfg.Build.Target),
		FailurePolicy:      cfg.Runtime.FailurePolicy,
		FailureCode:        int32(failureCode),
		DiagnosticEncoding: cfg.Runtime.DiagnosticEncoding,
	}), nil
}

// Load reads and parses the configuration file at path. The project's base
// directory is the directory containing the file.
func Load(path string) (*entities.Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &parac.FileAccessError{Path: path, Err: err}
	}
	data, err := readConfig(abs)
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Dir(abs))
}

// Find looks for DefaultFileName in dir and its parents and returns the
// first match.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &parac.FileAccessError{Path: dir, Err: err}
	}
	for {
		candidate := filepath.Join(abs, DefaultFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", &parac.ConfigNotFoundError{Path: filepath.Join(dir, DefaultFileName)}
		}
		abs = parent
	}
}

func readConfig(path string) ([]byte, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &parac.ConfigNotFoundError{Path: path}
	case err != nil:
		return nil, fileError(path, err)
	case info.IsDir():
		return nil, &parac.FileAccessError{
			Path: path,
			Err:  &parac.Error{ErrCode: parac.CodeIsDirectory, Msg: "is a directory"},
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError(path, err)
	}
	return data, nil
}

// fileError classifies an os error on path.
func fileError(path string, err error) error {
	code := parac.CodeFileAccess
	switch {
	case errors.Is(err, fs.ErrPermission):
		code = parac.CodeFilePermission
	case errors.Is(err, fs.ErrNotExist):
		code = parac.CodeFileNotFound
	}
	return &parac.FileAccessError{Path: path, Err: &parac.Error{ErrCode: code, Err: err}}
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	// Bare names are looked up on PATH.
	if !strings.ContainsAny(p, `/\`) {
		return p
	}
	return filepath.Join(baseDir, filepath.FromSlash(p))
}

// stringScalar retags a numeric top-level value of key as a string, so that
// "version: 0.1" keeps its literal text.
func stringScalar(root *yaml.Node, key string) {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		k, v := doc.Content[i], doc.Content[i+1]
		if k.Value != key || v.Kind != yaml.ScalarNode {
			continue
		}
		if v.Tag == "!!int" || v.Tag == "!!float" {
			v.Tag = "!!str"
		}
	}
}

func schemaError(err error) error {
	var ve *schemavalidator.ValidationError
	if !errors.As(err, &ve) {
		return &parac.ConfigError{Err: err}
	}
	// Report the innermost cause, which names the offending field.
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.ReplaceAll(strings.TrimLeft(leaf.InstanceLocation, "#/"), "/", ".")
	return &parac.ConfigError{Field: field, Err: errors.New(leaf.Message)}
}

func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &parac.ConfigError{Err: err}
	}
	fe := verrs[0]
	// Namespace is "Config.build.entry_symbol"; drop the struct name.
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	return &parac.ConfigError{
		Field: field,
		Err:   fmt.Errorf("failed on the '%s' rule", fe.Tag()),
	}
}
