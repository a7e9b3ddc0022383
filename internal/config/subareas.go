package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadSubAreaFile reads the sub-area list from path.
func ReadSubAreaFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open sub-area list: %w", err)
	}
	defer f.Close()

	return ReadSubAreas(f)
}

// ReadSubAreas reads one sub-area name per line.
// Names are trimmed; blank lines and lines starting with '#' are skipped.
// Order is preserved and duplicates are kept, so a sub-area listed twice
// is processed twice.
func ReadSubAreas(r io.Reader) ([]string, error) {
	var subAreas []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		subAreas = append(subAreas, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sub-area list: %w", err)
	}

	if len(subAreas) == 0 {
		return nil, ErrEmptySubAreaList
	}
	return subAreas, nil
}
