package project

import (
	"os"
	"path/filepath"
	"strings"

	parac "github.com/parac-dev/parac-runtime"
)

const (
	invalidUnixNameChars    = "/<>\x00|:&"
	invalidWindowsNameChars = "<>:\"/\\|?*"
)

// CleanPath converts the separators in p to the ones of the current OS and
// expands a leading "./" to the working directory.
func CleanPath(p string) string {
	if filepath.Separator == '/' {
		p = strings.ReplaceAll(p, `\`, "/")
	} else {
		p = strings.ReplaceAll(p, "/", `\`)
	}
	sep := string(filepath.Separator)
	for strings.Contains(p, sep+sep) {
		p = strings.ReplaceAll(p, sep+sep, sep)
	}
	if strings.HasPrefix(p, "."+sep) {
		if wd, err := os.Getwd(); err == nil {
			p = wd + p[1:]
		}
	}
	return p
}

// ValidPathName reports whether path only contains characters allowed in
// file names. Control characters are never allowed. With windows set, or on
// Windows, the stricter Windows rules apply and a drive prefix is ignored.
func ValidPathName(path string, windows bool) bool {
	path = strings.ReplaceAll(CleanPath(path), string(filepath.Separator), "")

	invalid := invalidUnixNameChars
	if windows || filepath.Separator == '\\' {
		if len(path) >= 2 && path[1] == ':' {
			path = path[2:]
		}
		if strings.HasSuffix(path, " ") || strings.HasSuffix(path, ".") {
			return false
		}
		invalid = invalidWindowsNameChars
	}

	for _, c := range path {
		if c < 28 || strings.ContainsRune(invalid, c) {
			return false
		}
	}
	return true
}

// RelativeModuleName derives the dotted module name of a source file from
// its location below basePath: src/pkg/main.para below src is "pkg.main".
// fileName must be the last element of filePath.
func RelativeModuleName(fileName, filePath, basePath string) (string, error) {
	filePath = filepath.Clean(CleanPath(filePath))
	basePath = filepath.Clean(CleanPath(basePath))

	rel, err := filepath.Rel(basePath, filePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", parac.Errorf(parac.CodeUserInput, "%s is not inside %s", filePath, basePath)
	}
	if strings.ContainsRune(fileName, ' ') {
		return "", parac.Errorf(parac.CodeUserInput, "file name %q contains spaces", fileName)
	}
	if !ValidPathName(filePath, false) {
		return "", parac.Errorf(parac.CodeUserInput, "path %s contains invalid characters", filePath)
	}
	if !ValidPathName(basePath, false) {
		return "", parac.Errorf(parac.CodeUserInput, "path %s contains invalid characters", basePath)
	}

	elems := strings.Split(rel, string(filepath.Separator))
	if elems[len(elems)-1] != fileName {
		return "", parac.Errorf(parac.CodeUserInput, "file name %q does not match path %s", fileName, filePath)
	}

	stem, _, _ := strings.Cut(fileName, ".")
	return strings.Join(append(elems[:len(elems)-1], stem), "."), nil
}
