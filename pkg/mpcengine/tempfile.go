package mpcengine

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeTempSource writes source to a uniquely named file under dir,
// creating dir if necessary.
func writeTempSource(dir, source string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating work dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "program-*.mpc")
	if err != nil {
		return "", fmt.Errorf("creating program source file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(source); err != nil {
		return "", fmt.Errorf("writing program source: %w", err)
	}
	return filepath.Clean(f.Name()), nil
}
