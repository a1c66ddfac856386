package ports

import "github.com/parac-dev/parac-runtime/domain/entities"

// ProjectParser parses raw YAML bytes into a Project.
type ProjectParser interface {
	// Parse unmarshals and validates YAML bytes. baseDir is the directory
	// relative paths in the document are resolved against.
	Parse(data []byte, baseDir string) (*entities.Project, error)
}
