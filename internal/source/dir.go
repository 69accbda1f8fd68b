package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirSource reads stems from a local directory laid out the way the
// separation pipeline writes them: one file per stem, named after the
// stem. A non-empty session selects a subdirectory.
type DirSource struct {
	Dir string
}

func (d DirSource) Fetch(_ context.Context, session, name string) ([]byte, string, error) {
	dir := d.Dir
	if session != "" {
		dir = filepath.Join(dir, session)
	}
	for _, ext := range stemExts {
		data, err := os.ReadFile(filepath.Join(dir, name+ext))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", fmt.Errorf("reading stem %s: %w", name, err)
		}
		return data, ext, nil
	}
	return nil, "", ErrAbsent
}
