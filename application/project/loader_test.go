package project_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/application/project"
	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// LoaderSuite tests parsing and loading of parac.yaml.
type LoaderSuite struct {
	suite.Suite
	parser *project.Parser
	dir    string
}

func (s *LoaderSuite) SetupTest() {
	s.parser = project.NewParser()
	s.dir = s.T().TempDir()
}

func (s *LoaderSuite) TestValidProject() {
	yaml := `
name: exceptions_example
description: Example for showing how the exceptions 'should' work
author: Luna Klatzer
version: "0.1"
license: GPL-3.0
compiler:
  cc: bin/gcc
build:
  sources: ["src/**/*.para"]
  artifact: "build/**/*.wasm"
  entry_symbol: ph_main
  target: wasm32
runtime:
  failure_policy: fixed
  failure_code: 3
  diagnostic_encoding: iso-8859-1
`
	p, err := s.parser.Parse([]byte(yaml), s.dir)
	s.Require().NoError(err)

	s.Equal("exceptions_example", p.Name())
	s.Equal("Luna Klatzer", p.Author())
	s.Equal("0.1", p.Version())
	s.Equal("GPL-3.0", p.License())
	s.Equal(filepath.Join(s.dir, "bin", "gcc"), p.CCompiler())
	s.Empty(p.ParacCompiler())
	s.Equal([]string{"src/**/*.para"}, p.Sources())
	s.Equal("build/**/*.wasm", p.Artifact())
	s.Equal("ph_main", p.EntrySymbol())
	s.Equal(entities.TargetWasm32, p.Target())
	s.Equal("fixed", p.FailurePolicy())
	s.Equal(int32(3), p.FailureCode())
	s.Equal("iso-8859-1", p.DiagnosticEncoding())
	s.Equal(s.dir, p.BaseDir())
}

func (s *LoaderSuite) TestDefaults() {
	p, err := s.parser.Parse([]byte("name: minimal\n"), s.dir)
	s.Require().NoError(err)

	s.Equal(entities.DefaultEntrySymbol, p.EntrySymbol())
	s.Equal(entities.TargetWasm32, p.Target())
	s.Equal(int32(project.DefaultFailureCode), p.FailureCode())
	s.Empty(p.FailurePolicy())
	s.Empty(p.Sources())
}

func (s *LoaderSuite) TestNumericVersion() {
	for yaml, want := range map[string]string{
		"name: a\nversion: 0.1\n":  "0.1",
		"name: a\nversion: 1.10\n": "1.10",
		"name: a\nversion: 2\n":    "2",
	} {
		p, err := s.parser.Parse([]byte(yaml), s.dir)
		s.Require().NoError(err, yaml)
		s.Equal(want, p.Version())
	}
}

func (s *LoaderSuite) TestRelativeCompilerPaths() {
	yaml := "name: a\ncompiler:\n  cc: ./tools/cc\n  parac: bin/parac\n"
	p, err := s.parser.Parse([]byte(yaml), s.dir)
	s.Require().NoError(err)

	s.Equal(filepath.Join(s.dir, "tools", "cc"), p.CCompiler())
	s.Equal(filepath.Join(s.dir, "bin", "parac"), p.ParacCompiler())
}

func (s *LoaderSuite) TestSchemaViolations() {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing name", "description: x\n", ""},
		{"unknown key", "name: a\nfoo: bar\n", ""},
		{"unknown policy", "name: a\nruntime:\n  failure_policy: sometimes\n", "runtime.failure_policy"},
		{"failure code too large", "name: a\nruntime:\n  failure_code: 256\n", "runtime.failure_code"},
		{"bad version", "name: a\nversion: one\n", "version"},
		{"unknown target", "name: a\nbuild:\n  target: pdp11\n", "build.target"},
		{"unknown encoding", "name: a\nruntime:\n  diagnostic_encoding: ebcdic\n", "runtime.diagnostic_encoding"},
		{"sources not a list", "name: a\nbuild:\n  sources: src\n", "build.sources"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.parser.Parse([]byte(tt.yaml), s.dir)
			s.Require().Error(err)

			var cfgErr *parac.ConfigError
			s.Require().True(errors.As(err, &cfgErr), "got %T: %v", err, err)
			if tt.field != "" {
				s.Equal(tt.field, cfgErr.Field)
			}
			s.Equal(parac.CodeUserInput, parac.CodeOf(err))
		})
	}
}

func (s *LoaderSuite) TestFieldRules() {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"name with spaces", "name: my project\n", "name"},
		{"name with separator", "name: a/b\n", "name"},
		{"name with pipe", "name: a|b\n", "name"},
		{"entry symbol", "name: a\nbuild:\n  entry_symbol: 1main\n", "build.entry_symbol"},
		{"empty source pattern", "name: a\nbuild:\n  sources: [\"\"]\n", "build.sources[0]"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.parser.Parse([]byte(tt.yaml), s.dir)
			var cfgErr *parac.ConfigError
			s.Require().True(errors.As(err, &cfgErr), "got %T: %v", err, err)
			s.Equal(tt.field, cfgErr.Field)
		})
	}
}

func (s *LoaderSuite) TestInvalidYAML() {
	_, err := s.parser.Parse([]byte("name: [unterminated"), s.dir)
	s.Equal(parac.CodeUserInput, parac.CodeOf(err))

	_, err = s.parser.Parse([]byte(""), s.dir)
	s.Equal(parac.CodeUserInput, parac.CodeOf(err))
}

func (s *LoaderSuite) TestLoad() {
	path := filepath.Join(s.dir, project.DefaultFileName)
	s.Require().NoError(os.WriteFile(path, []byte("name: loaded\n"), 0o644))

	p, err := project.Load(path)
	s.Require().NoError(err)
	s.Equal("loaded", p.Name())
	s.Equal(s.dir, p.BaseDir())
}

func (s *LoaderSuite) TestLoad_NotFound() {
	_, err := project.Load(filepath.Join(s.dir, "missing.yaml"))

	var nf *parac.ConfigNotFoundError
	s.Require().True(errors.As(err, &nf))
	s.Equal(parac.CodeConfigNotFound, parac.CodeOf(err))
}

func (s *LoaderSuite) TestLoad_Directory() {
	_, err := project.Load(s.dir)
	s.Equal(parac.CodeIsDirectory, parac.CodeOf(err))
}

func (s *LoaderSuite) TestFind() {
	nested := filepath.Join(s.dir, "src", "pkg")
	s.Require().NoError(os.MkdirAll(nested, 0o755))
	path := filepath.Join(s.dir, project.DefaultFileName)
	s.Require().NoError(os.WriteFile(path, []byte("name: found\n"), 0o644))

	got, err := project.Find(nested)
	s.Require().NoError(err)
	s.Equal(path, got)
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func TestSchema(t *testing.T) {
	data, err := project.Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []any{"name"}, doc["required"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"name", "version", "compiler", "build", "runtime"} {
		assert.Contains(t, props, key)
	}
}
