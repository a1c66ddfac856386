// Package project loads and validates the parac.yaml configuration of a
// Para-C project and locates the files it refers to.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultFileName is the name of the project configuration file.
const DefaultFileName = "parac.yaml"

// Config is the document stored in parac.yaml.
type Config struct {
	Name        string `yaml:"name" json:"name" jsonschema:"required,minLength=1,description=Project name" validate:"required,max=64,parac_name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string `yaml:"author,omitempty" json:"author,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"pattern=^[0-9]+([.][0-9]+)*([-+][0-9A-Za-z.-]+)?$"`
	License     string `yaml:"license,omitempty" json:"license,omitempty"`

	Compiler CompilerConfig `yaml:"compiler,omitempty" json:"compiler,omitempty"`
	Build    BuildConfig    `yaml:"build,omitempty" json:"build,omitempty"`
	Runtime  RuntimeConfig  `yaml:"runtime,omitempty" json:"runtime,omitempty"`
}

// CompilerConfig points at the toolchain binaries. Empty paths are looked up
// on PATH by the build tooling.
type CompilerConfig struct {
	Parac string `yaml:"parac,omitempty" json:"parac,omitempty" jsonschema:"description=Path to the Para-C compiler"`
	CC    string `yaml:"cc,omitempty" json:"cc,omitempty" jsonschema:"description=Path to the C compiler"`
}

// BuildConfig describes the sources and the compiled program.
type BuildConfig struct {
	Sources     []string `yaml:"sources,omitempty" json:"sources,omitempty" jsonschema:"description=Glob patterns of source files" validate:"dive,required"`
	Artifact    string   `yaml:"artifact,omitempty" json:"artifact,omitempty" jsonschema:"description=Glob pattern of the compiled program"`
	EntrySymbol string   `yaml:"entry_symbol,omitempty" json:"entry_symbol,omitempty" validate:"omitempty,c_identifier"`
	Target      string   `yaml:"target,omitempty" json:"target,omitempty" jsonschema:"enum=wasm32,enum=lp64"`
}

// RuntimeConfig controls how the driver reports a program's exit.
type RuntimeConfig struct {
	FailurePolicy      string `yaml:"failure_policy,omitempty" json:"failure_policy,omitempty" jsonschema:"enum=preserve,enum=fixed"`
	FailureCode        int    `yaml:"failure_code,omitempty" json:"failure_code,omitempty" jsonschema:"minimum=1,maximum=255" validate:"omitempty,min=1,max=255"`
	DiagnosticEncoding string `yaml:"diagnostic_encoding,omitempty" json:"diagnostic_encoding,omitempty" jsonschema:"enum=utf-8,enum=utf8,enum=iso-8859-1,enum=latin1,enum=windows-1252,enum=cp1252"`
}

var (
	schemaOnce     sync.Once
	schemaJSON     []byte
	compiledSchema *schemavalidator.Schema
	schemaErr      error
)

// Schema returns the JSON schema of parac.yaml, generated from Config.
func Schema() ([]byte, error) {
	schemaOnce.Do(loadSchema)
	return schemaJSON, schemaErr
}

func configSchema() (*schemavalidator.Schema, error) {
	schemaOnce.Do(loadSchema)
	return compiledSchema, schemaErr
}

func loadSchema() {
	r := &jsonschema.Reflector{
		Anonymous:                  true,
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(&Config{})
	s.Title = "Para-C project configuration"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		schemaErr = fmt.Errorf("failed to marshal project schema: %w", err)
		return
	}
	schemaJSON = data

	compiler := schemavalidator.NewCompiler()
	if err := compiler.AddResource(DefaultFileName+".json", bytes.NewReader(data)); err != nil {
		schemaErr = fmt.Errorf("failed to add project schema: %w", err)
		return
	}
	compiledSchema, schemaErr = compiler.Compile(DefaultFileName + ".json")
}
