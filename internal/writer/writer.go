// Package writer holds the output writers run at the end of a session.
// Each writer registers itself with the factory under its type name.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileName turns a session name into a safe file name stem.
func fileName(sessionName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(sessionName))
	if name == "" {
		return "session"
	}
	return name
}

// createOutput creates <root>/<session><ext>, making root if needed.
func createOutput(root, sessionName, ext string) (*os.File, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(root, fileName(sessionName)+ext)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file '%s': %w", path, err)
	}
	return file, nil
}

func orCurrentDir(path string) string {
	if path == "" {
		return "."
	}
	return path
}
