package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ensureLocalFilesystem refuses database paths on network mounts, where
// SQLite file locking is unreliable.
func ensureLocalFilesystem(path string) error {
	return ensureLocalFilesystemWith(path, networkFilesystem)
}

func ensureLocalFilesystemWith(path string, detect func(string) (string, bool, error)) error {
	dir, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}

	fsType, remote, err := detect(dir)
	if err != nil {
		// Unknown platforms and odd mounts are allowed through.
		return nil
	}
	if remote {
		return fmt.Errorf("database path %q is on network filesystem %q; "+
			"SQLite requires local disk, set state.path to a local file", path, fsType)
	}
	return nil
}

func existingAncestor(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent")
		}
		candidate = parent
	}
}
