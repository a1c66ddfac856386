package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/entities"
)

// SourceFile is a source file of a project.
type SourceFile struct {
	Path   string // Absolute path
	Module string // Dotted module name relative to the static part of its glob
}

// CheckCompilers verifies that the configured compilers exist. Paths without
// a separator are looked up on PATH. Unset compilers are not checked.
func CheckCompilers(p *entities.Project) error {
	for _, c := range []struct{ kind, path string }{
		{"parac", p.ParacCompiler()},
		{"cc", p.CCompiler()},
	} {
		if c.path == "" {
			continue
		}
		if !strings.ContainsAny(c.path, `/\`) {
			if _, err := exec.LookPath(c.path); err != nil {
				return &parac.CompilerNotFoundError{Kind: c.kind, Path: c.path, Err: err}
			}
			continue
		}
		info, err := os.Stat(c.path)
		if err != nil {
			return &parac.CompilerNotFoundError{Kind: c.kind, Path: c.path, Err: err}
		}
		if info.IsDir() {
			return &parac.CompilerNotFoundError{Kind: c.kind, Path: c.path, Err: errors.New("is a directory")}
		}
	}
	return nil
}

// DiscoverSources lists the files matching the project's source globs,
// sorted by path and without duplicates.
func DiscoverSources(p *entities.Project) ([]SourceFile, error) {
	seen := make(map[string]bool)
	var out []SourceFile
	for _, pattern := range p.Sources() {
		matches, root, err := glob(p.BaseDir(), pattern)
		if err != nil {
			return nil, &parac.ConfigError{Field: "build.sources", Err: err}
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			module, err := RelativeModuleName(filepath.Base(m), m, root)
			if err != nil {
				return nil, err
			}
			out = append(out, SourceFile{Path: m, Module: module})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ResolveArtifact returns the single compiled program matching the
// project's artifact glob.
func ResolveArtifact(p *entities.Project) (string, error) {
	pattern := p.Artifact()
	if pattern == "" {
		return "", &parac.ConfigError{Field: "build.artifact", Err: errors.New("no artifact configured")}
	}
	matches, _, err := glob(p.BaseDir(), pattern)
	if err != nil {
		return "", &parac.ConfigError{Field: "build.artifact", Err: err}
	}
	switch len(matches) {
	case 0:
		return "", &parac.FileAccessError{
			Path:   pattern,
			Reason: "no compiled program matches",
			Err:    &parac.Error{ErrCode: parac.CodeFileNotFound},
		}
	case 1:
		return matches[0], nil
	default:
		return "", &parac.FileAccessError{
			Path:   pattern,
			Reason: fmt.Sprintf("%d compiled programs match, expected one", len(matches)),
		}
	}
}

// glob matches a slash-separated pattern relative to baseDir, or an absolute
// pattern, against regular files. It returns absolute paths and the directory
// the static prefix of the pattern names.
func glob(baseDir, pattern string) ([]string, string, error) {
	pattern = filepath.ToSlash(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, "", fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	static, _ := doublestar.SplitPattern(pattern)

	if path.IsAbs(pattern) {
		matches, err := doublestar.FilepathGlob(filepath.FromSlash(pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, "", err
		}
		sort.Strings(matches)
		return matches, filepath.FromSlash(static), nil
	}

	if baseDir == "" {
		baseDir = "."
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, "", err
	}
	matches, err := doublestar.Glob(os.DirFS(baseDir), pattern, doublestar.WithFilesOnly())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(baseDir, filepath.FromSlash(m))
	}
	sort.Strings(out)
	return out, filepath.Join(baseDir, filepath.FromSlash(static)), nil
}
